package player

import (
	"context"
	"errors"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/avclock"
	"github.com/xaionaro-go/playback/pkg/clock"
	"github.com/xaionaro-go/playback/pkg/framequeue"
)

// workerLoop is the producer (decode) side: it pulls packets from the
// demuxer, keeps the playback clock up to date, applies the skip policy
// and feeds decoded video frames into the queue and PCM into the audio
// sink. It holds no lock: the lifecycle controller guarantees the queue
// and the clock outlive the worker (Stop joins before teardown).
func (p *Player) workerLoop(
	ctx context.Context,
	src *Source,
	clk *avclock.Clock,
	queue *framequeue.FrameQueue,
) {
	logger.Debugf(ctx, "workerLoop")
	defer logger.Debugf(ctx, "/workerLoop")
	defer p.isPlaying.Store(false)

	for p.isPlaying.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.isPaused.Load() {
			clock.Sleep(p.config.PausePollInterval)
			continue
		}

		pkt, err := src.Demuxer.ReadPacket(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logger.Debugf(ctx, "the stream ended")
			p.eosReached.Store(true)
			return
		case errors.Is(err, context.Canceled):
			return
		default:
			// transient: back off and retry
			logger.Tracef(ctx, "unable to read a packet (will retry): %v", err)
			clock.Sleep(p.config.ReadRetryInterval)
			continue
		}

		switch pkt.MediaKind() {
		case MediaKindVideo:
			p.processVideoPacket(ctx, src, clk, queue, pkt)
		case MediaKindAudio:
			p.processAudioPacket(ctx, src, clk, pkt)
		default:
			pkt.Close()
		}
	}
}

func (p *Player) processVideoPacket(
	ctx context.Context,
	src *Source,
	clk *avclock.Clock,
	queue *framequeue.FrameQueue,
	pkt Packet,
) {
	defer pkt.Close()

	// The skip decision is made before decoding, and the clock is
	// advanced from the skipped packet's timestamp first. Without the
	// advance the video clock freezes while audio continues, and the
	// policy would keep skipping forever.
	clk.UpdateVideoPTS(ctx, pkt.PTS())
	if clk.ShouldSkipVideoFrame(ctx) {
		return
	}

	frames, err := src.VideoDecoder.Decode(ctx, pkt)
	if err != nil {
		// frame-local: drop this packet, keep playing
		logger.Errorf(ctx, "unable to decode a video packet (pts: %d): %v", pkt.PTS(), err)
		return
	}

	for _, raw := range frames {
		p.processVideoFrame(ctx, src, clk, queue, raw)
	}
}

func (p *Player) processVideoFrame(
	ctx context.Context,
	src *Source,
	clk *avclock.Clock,
	queue *framequeue.FrameQueue,
	raw RawVideoFrame,
) {
	defer raw.Close()

	width, height := raw.Bounds()
	if width == 0 || height == 0 || !raw.PixelFormatDefined() {
		// a decoder flush artifact, not a real frame
		logger.Tracef(ctx, "dropping a %dx%d frame with no defined pixel format", width, height)
		return
	}

	clk.UpdateVideoPTS(ctx, raw.PTS())

	displayable, err := src.PixelConverter.Convert(ctx, raw)
	if err != nil {
		logger.Errorf(ctx, "unable to convert a video frame (pts: %d): %v", raw.PTS(), err)
		return
	}

	queue.Push(ctx, displayable)
}

func (p *Player) processAudioPacket(
	ctx context.Context,
	src *Source,
	clk *avclock.Clock,
	pkt Packet,
) {
	defer pkt.Close()

	if !p.audioEnabled.Load() || p.audioFailed.Load() {
		return
	}
	if src.AudioDecoder == nil || src.Resampler == nil {
		return
	}

	frames, err := src.AudioDecoder.Decode(ctx, pkt)
	if err != nil {
		logger.Errorf(ctx, "unable to decode an audio packet (pts: %d): %v", pkt.PTS(), err)
		return
	}

	for _, raw := range frames {
		p.processAudioFrame(ctx, src, clk, raw)
	}
}

func (p *Player) processAudioFrame(
	ctx context.Context,
	src *Source,
	clk *avclock.Clock,
	raw RawAudioFrame,
) {
	defer raw.Close()

	clk.UpdateAudioPTS(ctx, raw.PTS())

	pcm, err := src.Resampler.Convert(ctx, raw)
	if err != nil {
		logger.Errorf(ctx, "unable to resample an audio frame (pts: %d): %v", raw.PTS(), err)
		return
	}
	if len(pcm) == 0 {
		return
	}

	applyVolumeS16LE(pcm, p.Volume())
	p.writePCM(ctx, pcm)
}

// writePCM pushes PCM into the sink, retrying on backpressure. A
// non-backpressure error kills the audio subsystem only: video keeps
// playing silently.
func (p *Player) writePCM(ctx context.Context, pcm []byte) {
	var err error
	for attempt := 0; attempt <= p.config.AudioWriteRetryCount; attempt++ {
		if attempt != 0 {
			clock.Sleep(p.config.AudioWriteRetryInterval)
		}
		err = p.audioSink.Write(ctx, pcm)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrSinkFull) {
			break
		}
		logger.Tracef(ctx, "the audio sink is full, retrying")
	}

	if errors.Is(err, ErrSinkFull) {
		// still transient; drop this chunk, the stream continues
		logger.Warnf(ctx, "the audio sink did not drain in %d attempts, dropping %d bytes of PCM", p.config.AudioWriteRetryCount+1, len(pcm))
		return
	}

	logger.Errorf(ctx, "fatal audio sink error, continuing without audio: %v", err)
	p.audioFailed.Store(true)
	p.locker.Do(ctx, func() {
		p.updateAudioPresentLocked()
	})
}
