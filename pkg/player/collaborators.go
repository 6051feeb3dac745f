package player

import (
	"context"
	"time"

	"github.com/xaionaro-go/playback/pkg/frame"
)

type MediaKind int

const (
	MediaKindOther MediaKind = iota
	MediaKindVideo
	MediaKindAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	}
	return "other"
}

// Packet is one demuxed compressed unit. Ownership moves to whoever the
// packet was handed to; Close releases the underlying buffer.
type Packet interface {
	MediaKind() MediaKind

	// PTS is the presentation timestamp in milliseconds since stream
	// start; frame.NoPTS when the container provides none.
	PTS() int64

	Close()
}

// RawVideoFrame is an undecoded-side handle to one decoder output image,
// before pixel conversion.
type RawVideoFrame interface {
	Bounds() (width, height int)

	// PixelFormatDefined is false for decoder flush artifacts which must
	// be dropped instead of converted.
	PixelFormatDefined() bool

	PTS() int64
	Close()
}

// RawAudioFrame is one decoder output chunk of audio samples, before
// resampling.
type RawAudioFrame interface {
	SampleCount() int
	PTS() int64
	Close()
}

// Demuxer pulls compressed packets out of the container.
type Demuxer interface {
	// ReadPacket returns the next packet, io.EOF at end of stream, or an
	// error. Errors other than io.EOF are treated as transient and
	// retried with bounded backoff.
	ReadPacket(ctx context.Context) (Packet, error)

	// SeekToStart rewinds to the first frame (used by stop and by
	// auto-restart).
	SeekToStart(ctx context.Context) error
}

type VideoDecoder interface {
	Decode(ctx context.Context, pkt Packet) ([]RawVideoFrame, error)
}

type AudioDecoder interface {
	Decode(ctx context.Context, pkt Packet) ([]RawAudioFrame, error)
}

// PixelConverter converts decoder output into a displayable frame. The
// returned frame is an independent copy: the decoder is free to reuse its
// output buffer for the next frame while the copy crosses the thread
// boundary through the queue.
type PixelConverter interface {
	Convert(ctx context.Context, raw RawVideoFrame) (*frame.Frame, error)
}

// Resampler converts decoder output into interleaved PCM bytes in the
// sink's rate/format/channel layout.
type Resampler interface {
	Convert(ctx context.Context, raw RawAudioFrame) ([]byte, error)
}

// AudioSink plays PCM bytes. Write may apply backpressure by returning
// ErrSinkFull, which the producer retries; any other error is fatal for
// the audio subsystem only (playback degrades to silent video).
type AudioSink interface {
	Write(ctx context.Context, pcm []byte) error
	Close() error
}

// Renderer receives displayable frames. Publish is fire-and-forget and
// must not block the display tick; the renderer must not retain the frame
// after the next Publish. FlushCache is an expensive invalidation hook the
// consumer calls only every Nth tick.
type Renderer interface {
	Publish(ctx context.Context, f *frame.Frame) error
	FlushCache(ctx context.Context)
}

// SourceInfo carries the per-stream metadata the engine needs beyond the
// collaborator calls themselves.
type SourceInfo struct {
	HasAudio bool

	// TickPeriod is the display refresh period derived from the stream's
	// average frame rate; 0 when unknown (the player then falls back to
	// its configured default).
	TickPeriod time.Duration

	// FrameCount is the video stream's frame count; -1 when unknown.
	FrameCount int64
}

// Source bundles the per-stream collaborators produced by open().
type Source struct {
	Demuxer        Demuxer
	VideoDecoder   VideoDecoder
	AudioDecoder   AudioDecoder
	PixelConverter PixelConverter
	Resampler      Resampler
	Info           SourceInfo

	// CloseFunc releases whatever backs the collaborators; optional.
	CloseFunc func(ctx context.Context) error
}

func (s *Source) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc(ctx)
}
