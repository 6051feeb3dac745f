package libav

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/playback/pkg/player"
)

const playerNoPTS = frame.NoPTS

// packet wraps one compressed libav packet together with its media kind
// and its timestamp already rescaled into milliseconds.
type packet struct {
	raw   *astiav.Packet
	kind  player.MediaKind
	ptsMS int64
}

var _ player.Packet = (*packet)(nil)

func (p *packet) MediaKind() player.MediaKind { return p.kind }
func (p *packet) PTS() int64                  { return p.ptsMS }

func (p *packet) Close() {
	if p.raw == nil {
		return
	}
	packetPool.Put(p.raw)
	p.raw = nil
}

type demuxer struct {
	formatContext *astiav.FormatContext
	videoStream   *astiav.Stream
	audioStream   *astiav.Stream
	flushFuncs    []func()
}

var _ player.Demuxer = (*demuxer)(nil)

func newDemuxer(
	formatContext *astiav.FormatContext,
	videoStream *astiav.Stream,
	audioStream *astiav.Stream,
) *demuxer {
	return &demuxer{
		formatContext: formatContext,
		videoStream:   videoStream,
		audioStream:   audioStream,
	}
}

// addFlushFunc registers a decoder buffer flush to be performed on every
// seek, so no stale frames survive a rewind.
func (d *demuxer) addFlushFunc(fn func()) {
	d.flushFuncs = append(d.flushFuncs, fn)
}

func (d *demuxer) ReadPacket(ctx context.Context) (player.Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pkt := packetPool.Get()
		err := d.formatContext.ReadFrame(pkt)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEof):
			packetPool.Put(pkt)
			return nil, io.EOF
		default:
			packetPool.Put(pkt)
			return nil, fmt.Errorf("unable to read a frame: %w", err)
		}

		kind, stream := d.classify(pkt.StreamIndex())
		if kind == player.MediaKindOther {
			// a stream we do not play (subtitles, data, a second
			// video/audio track)
			packetPool.Put(pkt)
			continue
		}

		return &packet{
			raw:   pkt,
			kind:  kind,
			ptsMS: ptsToMilliseconds(pkt.Pts(), stream.TimeBase()),
		}, nil
	}
}

func (d *demuxer) classify(streamIndex int) (player.MediaKind, *astiav.Stream) {
	switch {
	case streamIndex == d.videoStream.Index():
		return player.MediaKindVideo, d.videoStream
	case d.audioStream != nil && streamIndex == d.audioStream.Index():
		return player.MediaKindAudio, d.audioStream
	}
	return player.MediaKindOther, nil
}

func (d *demuxer) SeekToStart(ctx context.Context) error {
	logger.Tracef(ctx, "SeekToStart")
	if err := d.formatContext.SeekFrame(-1, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("unable to seek to the beginning: %w", err)
	}
	for _, fn := range d.flushFuncs {
		fn()
	}
	return nil
}
