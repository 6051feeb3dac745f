package libav

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/player"
)

// streamDecoder owns the codec context of a single stream and implements
// the send/receive cycle shared by the video and the audio paths.
type streamDecoder struct {
	stream       *astiav.Stream
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
}

func newStreamDecoder(
	ctx context.Context,
	formatContext *astiav.FormatContext,
	stream *astiav.Stream,
) (_ret *streamDecoder, _err error) {
	codecParameters := stream.CodecParameters()
	logger.Debugf(ctx, "newStreamDecoder: stream #%d: %s", stream.Index(), codecParameters.CodecID())
	defer func() { logger.Debugf(ctx, "/newStreamDecoder: stream #%d: %v", stream.Index(), _err) }()

	codec := astiav.FindDecoder(codecParameters.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("unable to find a decoder for codec '%s'", codecParameters.CodecID())
	}

	codecContext := astiav.AllocCodecContext(codec)
	if codecContext == nil {
		return nil, fmt.Errorf("unable to allocate a codec context")
	}

	if err := codecParameters.ToCodecContext(codecContext); err != nil {
		codecContext.Free()
		return nil, fmt.Errorf("unable to copy the codec parameters: %w", err)
	}

	if codecParameters.MediaType() == astiav.MediaTypeVideo {
		codecContext.SetFramerate(formatContext.GuessFrameRate(stream, nil))
	}

	if err := codecContext.Open(codec, nil); err != nil {
		codecContext.Free()
		return nil, fmt.Errorf("unable to open the codec context: %w", err)
	}

	return &streamDecoder{
		stream:       stream,
		codec:        codec,
		codecContext: codecContext,
	}, nil
}

func (d *streamDecoder) close() {
	d.codecContext.Free()
}

func (d *streamDecoder) flush() {
	d.codecContext.FlushBuffers()
}

// receiveFrames sends one packet and drains every frame the codec has
// ready. The returned frames come from the shared pool; the caller owns
// them.
func (d *streamDecoder) receiveFrames(
	ctx context.Context,
	pkt player.Packet,
) (_ret []*astiav.Frame, _err error) {
	lp, ok := pkt.(*packet)
	if !ok {
		return nil, fmt.Errorf("received a packet of an unexpected origin: %T", pkt)
	}

	if err := d.codecContext.SendPacket(lp.raw); err != nil {
		return nil, fmt.Errorf("unable to send the packet to the decoder: %w", err)
	}

	var result []*astiav.Frame
	defer func() {
		if _err != nil {
			for _, f := range result {
				framePool.Put(f)
			}
		}
	}()

	for {
		f := framePool.Get()
		err := d.codecContext.ReceiveFrame(f)
		switch {
		case err == nil:
			result = append(result, f)
		case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
			framePool.Put(f)
			return result, nil
		default:
			framePool.Put(f)
			return result, fmt.Errorf("unable to receive a frame from the decoder: %w", err)
		}
	}
}

type videoDecoder struct {
	*streamDecoder
}

var _ player.VideoDecoder = (*videoDecoder)(nil)

func (d *videoDecoder) Decode(
	ctx context.Context,
	pkt player.Packet,
) ([]player.RawVideoFrame, error) {
	frames, err := d.receiveFrames(ctx, pkt)
	if err != nil {
		return nil, err
	}
	result := make([]player.RawVideoFrame, 0, len(frames))
	for _, f := range frames {
		result = append(result, &rawVideoFrame{
			raw:   f,
			ptsMS: ptsToMilliseconds(f.Pts(), d.stream.TimeBase()),
		})
	}
	return result, nil
}

type audioDecoder struct {
	*streamDecoder
}

var _ player.AudioDecoder = (*audioDecoder)(nil)

func (d *audioDecoder) Decode(
	ctx context.Context,
	pkt player.Packet,
) ([]player.RawAudioFrame, error) {
	frames, err := d.receiveFrames(ctx, pkt)
	if err != nil {
		return nil, err
	}
	result := make([]player.RawAudioFrame, 0, len(frames))
	for _, f := range frames {
		result = append(result, &rawAudioFrame{
			raw:   f,
			ptsMS: ptsToMilliseconds(f.Pts(), d.stream.TimeBase()),
		})
	}
	return result, nil
}

type rawVideoFrame struct {
	raw   *astiav.Frame
	ptsMS int64
}

var _ player.RawVideoFrame = (*rawVideoFrame)(nil)

func (f *rawVideoFrame) Bounds() (width, height int) {
	return f.raw.Width(), f.raw.Height()
}

func (f *rawVideoFrame) PixelFormatDefined() bool {
	return f.raw.PixelFormat() != astiav.PixelFormatNone
}

func (f *rawVideoFrame) PTS() int64 { return f.ptsMS }

func (f *rawVideoFrame) Close() {
	if f.raw == nil {
		return
	}
	framePool.Put(f.raw)
	f.raw = nil
}

type rawAudioFrame struct {
	raw   *astiav.Frame
	ptsMS int64
}

var _ player.RawAudioFrame = (*rawAudioFrame)(nil)

func (f *rawAudioFrame) SampleCount() int {
	return f.raw.NbSamples()
}

func (f *rawAudioFrame) PTS() int64 { return f.ptsMS }

func (f *rawAudioFrame) Close() {
	if f.raw == nil {
		return
	}
	framePool.Put(f.raw)
	f.raw = nil
}
