// Package libav provides go-astiav (FFmpeg) backed implementations of the
// player's collaborator contracts: demuxing, video/audio decode, pixel
// conversion and resampling.
package libav

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/player"
)

// libav keeps process-global state (log handling); it is configured once,
// no matter how many sources get opened concurrently.
var initOnce sync.Once

func initLibAV(ctx context.Context) {
	initOnce.Do(func() {
		routeLogs(logger.FromCtx(ctx))
	})
}

type SourceConfig struct {
	// OutputSampleRate defines the PCM rate the resampler produces for
	// the audio sink; 0 means 44.1kHz (stereo S16 is always implied).
	OutputSampleRate int

	// AudioDisabled skips probing and decoding audio streams entirely.
	AudioDisabled bool
}

// OpenSource opens a local file or a URL and assembles the full
// collaborator set for the player. A source without a decodable video
// stream is a stream-fatal error; a source without audio (or with a broken
// audio chain) plays video-only.
func OpenSource(
	ctx context.Context,
	url string,
	cfg SourceConfig,
) (_ret *player.Source, _err error) {
	logger.Debugf(ctx, "OpenSource('%s')", url)
	defer func() { logger.Debugf(ctx, "/OpenSource('%s'): %v", url, _err) }()

	if url == "" {
		return nil, player.ErrSourceOpen{Err: fmt.Errorf("the provided URL is empty")}
	}
	initLibAV(ctx)

	closer := astikit.NewCloser()
	defer func() {
		if _err != nil {
			_ = closer.Close()
		}
	}()

	formatContext := astiav.AllocFormatContext()
	if formatContext == nil {
		return nil, player.ErrSourceOpen{Err: fmt.Errorf("unable to allocate a format context")}
	}
	closer.Add(formatContext.Free)

	if err := formatContext.OpenInput(url, nil, nil); err != nil {
		return nil, player.ErrSourceOpen{Err: fmt.Errorf("unable to open input by URL '%s': %w", url, err)}
	}
	closer.Add(formatContext.CloseInput)

	if err := formatContext.FindStreamInfo(nil); err != nil {
		return nil, player.ErrSourceOpen{Err: fmt.Errorf("unable to get stream info: %w", err)}
	}

	var videoStream, audioStream *astiav.Stream
	for _, stream := range formatContext.Streams() {
		switch stream.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if videoStream == nil {
				videoStream = stream
			}
		case astiav.MediaTypeAudio:
			if audioStream == nil && !cfg.AudioDisabled {
				audioStream = stream
			}
		}
	}
	if videoStream == nil {
		return nil, player.ErrSourceOpen{Err: player.ErrNoVideoStream}
	}

	videoStreamDecoder, err := newStreamDecoder(ctx, formatContext, videoStream)
	if err != nil {
		return nil, player.ErrSourceOpen{Err: fmt.Errorf("unable to initialize the video decoder: %w", err)}
	}
	closer.Add(videoStreamDecoder.close)

	dmx := newDemuxer(formatContext, videoStream, audioStream)
	dmx.addFlushFunc(videoStreamDecoder.flush)

	converter := newPixelConverter()
	closer.Add(converter.close)

	src := &player.Source{
		Demuxer:        dmx,
		VideoDecoder:   &videoDecoder{videoStreamDecoder},
		PixelConverter: converter,
		Info: player.SourceInfo{
			TickPeriod: tickPeriodOf(videoStream),
			FrameCount: frameCountOf(videoStream),
		},
		CloseFunc: func(ctx context.Context) error {
			return closer.Close()
		},
	}

	// a broken audio chain degrades to silent video instead of failing
	// the open
	if audioStream != nil {
		audioStreamDecoder, err := newStreamDecoder(ctx, formatContext, audioStream)
		if err != nil {
			logger.Warnf(ctx, "unable to initialize the audio decoder, continuing without audio: %v", err)
		} else {
			closer.Add(audioStreamDecoder.close)
			dmx.addFlushFunc(audioStreamDecoder.flush)
			src.AudioDecoder = &audioDecoder{audioStreamDecoder}
			resampler := newResampler(cfg.OutputSampleRate)
			closer.Add(resampler.close)
			src.Resampler = resampler
			src.Info.HasAudio = true
			logger.Debugf(ctx, "audio stream #%d: %s", audioStream.Index(), audioStream.CodecParameters().CodecID())
		}
	} else {
		logger.Debugf(ctx, "no audio stream found")
	}

	return src, nil
}

// tickPeriodOf derives the display refresh period from the stream's
// average frame rate; 0 when the container does not report one.
func tickPeriodOf(stream *astiav.Stream) time.Duration {
	avgFrameRate := stream.AvgFrameRate()
	if avgFrameRate.Num() <= 0 {
		return 0
	}
	return time.Duration(int64(time.Second) * int64(avgFrameRate.Den()) / int64(avgFrameRate.Num()))
}

func frameCountOf(stream *astiav.Stream) int64 {
	if n := stream.NbFrames(); n > 0 {
		return n
	}
	return -1
}

// ptsToMilliseconds rescales a libav timestamp into the engine's
// millisecond clock domain.
func ptsToMilliseconds(pts int64, timeBase astiav.Rational) int64 {
	if pts == astiav.NoPtsValue || timeBase.Den() == 0 {
		return playerNoPTS
	}
	return pts * 1000 * int64(timeBase.Num()) / int64(timeBase.Den())
}
