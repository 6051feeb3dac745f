// Package audiosink adapts the audio playback subsystem to the player's
// AudioSink contract: a bounded PCM buffer in front of the platform audio
// backend, reporting fullness instead of blocking the decode worker.
package audiosink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audio/pkg/audio"
	"github.com/xaionaro-go/playback/pkg/player"
)

const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	DefaultBuffering  = time.Second
)

// Sink buffers interleaved S16LE PCM and feeds it to an audio.Stream.
// Write never blocks: when the buffer has no room for a whole chunk it
// returns player.ErrSinkFull and the caller decides whether to retry.
type Sink struct {
	backend    *audio.Player
	sampleRate int
	channels   int

	mu     sync.Mutex
	buf    *pcmBuffer
	stream audio.Stream
	closed bool
}

var _ player.AudioSink = (*Sink)(nil)

// New builds a sink on top of the automatically selected platform audio
// backend. buffering defines how much PCM the sink may hold ahead of the
// hardware; it is also the backpressure horizon.
func New(
	ctx context.Context,
	sampleRate int,
	buffering time.Duration,
) *Sink {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if buffering <= 0 {
		buffering = DefaultBuffering
	}
	bytesPerSecond := sampleRate * DefaultChannels * 2
	return &Sink{
		backend:    audio.NewPlayerAuto(ctx),
		sampleRate: sampleRate,
		channels:   DefaultChannels,
		buf:        newPCMBuffer(bytesPerSecond * int(buffering) / int(time.Second)),
	}
}

func (s *Sink) SampleRate() int {
	return s.sampleRate
}

// Write enqueues one PCM chunk. The playback stream is started lazily on
// the first chunk, so a video-only playback never touches the audio
// hardware.
func (s *Sink) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("the sink is closed")
	}
	if len(pcm) > s.buf.Capacity() {
		return fmt.Errorf("a PCM chunk of %d bytes cannot ever fit into a buffer of %d bytes", len(pcm), s.buf.Capacity())
	}

	if s.stream == nil {
		stream, err := s.backend.PlayPCM(
			ctx,
			audio.SampleRate(s.sampleRate),
			audio.Channel(s.channels),
			audio.PCMFormatS16LE,
			DefaultBuffering,
			s.buf,
		)
		if err != nil {
			return fmt.Errorf("unable to initialize an audio playback: %w", err)
		}
		logger.Debugf(ctx, "started an audio stream: %dHz, %d channels", s.sampleRate, s.channels)
		s.stream = stream
	}

	return s.buf.Write(pcm)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stream := s.stream
	s.stream = nil
	s.buf.Close()
	s.mu.Unlock()

	var result *multierror.Error
	if stream != nil {
		if err := stream.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the audio stream: %w", err))
		}
	}
	return result.ErrorOrNil()
}
