package player

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/xaionaro-go/playback/pkg/frame"
)

type fakePacket struct {
	kind   MediaKind
	pts    int64
	closed atomic.Bool
}

func (p *fakePacket) MediaKind() MediaKind { return p.kind }
func (p *fakePacket) PTS() int64           { return p.pts }
func (p *fakePacket) Close()               { p.closed.Store(true) }

type scriptedPacket struct {
	kind MediaKind
	pts  int64
}

func videoPacket(pts int64) scriptedPacket { return scriptedPacket{kind: MediaKindVideo, pts: pts} }
func audioPacket(pts int64) scriptedPacket { return scriptedPacket{kind: MediaKindAudio, pts: pts} }

// fakeDemuxer replays a scripted packet sequence; with endless set it
// keeps generating video packets forever instead of reaching the end.
type fakeDemuxer struct {
	mu      sync.Mutex
	script  []scriptedPacket
	pos     int
	endless bool

	readCount int
	seekCount int
}

var _ Demuxer = (*fakeDemuxer)(nil)

func (d *fakeDemuxer) ReadPacket(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.readCount++

	if d.pos >= len(d.script) {
		if !d.endless {
			return nil, io.EOF
		}
		d.pos++
		return &fakePacket{kind: MediaKindVideo, pts: int64(d.pos) * 33}, nil
	}

	next := d.script[d.pos]
	d.pos++
	return &fakePacket{kind: next.kind, pts: next.pts}, nil
}

func (d *fakeDemuxer) SeekToStart(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = 0
	d.seekCount++
	return nil
}

func (d *fakeDemuxer) reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCount
}

func (d *fakeDemuxer) seeks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seekCount
}

type fakeRawVideo struct {
	pts    int64
	width  int
	height int
	closed atomic.Bool
}

func (f *fakeRawVideo) Bounds() (int, int)       { return f.width, f.height }
func (f *fakeRawVideo) PixelFormatDefined() bool { return f.width != 0 }
func (f *fakeRawVideo) PTS() int64               { return f.pts }
func (f *fakeRawVideo) Close()                   { f.closed.Store(true) }

type fakeVideoDecoder struct {
	calls atomic.Int64
}

var _ VideoDecoder = (*fakeVideoDecoder)(nil)

func (d *fakeVideoDecoder) Decode(ctx context.Context, pkt Packet) ([]RawVideoFrame, error) {
	d.calls.Add(1)
	return []RawVideoFrame{
		&fakeRawVideo{pts: pkt.PTS(), width: 4, height: 4},
	}, nil
}

type fakeRawAudio struct {
	pts    int64
	closed atomic.Bool
}

func (f *fakeRawAudio) SampleCount() int { return 128 }
func (f *fakeRawAudio) PTS() int64       { return f.pts }
func (f *fakeRawAudio) Close()           { f.closed.Store(true) }

type fakeAudioDecoder struct {
	calls atomic.Int64
}

var _ AudioDecoder = (*fakeAudioDecoder)(nil)

func (d *fakeAudioDecoder) Decode(ctx context.Context, pkt Packet) ([]RawAudioFrame, error) {
	d.calls.Add(1)
	return []RawAudioFrame{
		&fakeRawAudio{pts: pkt.PTS()},
	}, nil
}

type fakeConverter struct {
	pool *frame.Pool
}

var _ PixelConverter = (*fakeConverter)(nil)

func newFakeConverter() *fakeConverter {
	return &fakeConverter{pool: frame.NewPool()}
}

func (c *fakeConverter) Convert(ctx context.Context, raw RawVideoFrame) (*frame.Frame, error) {
	width, height := raw.Bounds()
	f := c.pool.Get(width, height, frame.PixelFormatRGBA)
	f.PTS = raw.PTS()
	return f, nil
}

type fakeResampler struct{}

var _ Resampler = (*fakeResampler)(nil)

func (r *fakeResampler) Convert(ctx context.Context, raw RawAudioFrame) ([]byte, error) {
	return []byte{0x00, 0x40, 0x00, 0xC0}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

var _ AudioSink = (*fakeSink)(nil)

func (s *fakeSink) Write(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := make([]byte, len(pcm))
	copy(dup, pcm)
	s.writes = append(s.writes, dup)
	return s.err
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type fakeRenderer struct {
	mu        sync.Mutex
	published []int64
	flushes   int
}

var _ Renderer = (*fakeRenderer)(nil)

func (r *fakeRenderer) Publish(ctx context.Context, f *frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, f.PTS)
	return nil
}

func (r *fakeRenderer) FlushCache(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *fakeRenderer) publishedPTS() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.published...)
}

func (r *fakeRenderer) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// fakeSource bundles the fakes the way open() would.
func newFakeSource(d *fakeDemuxer, withAudio bool) (*Source, *fakeVideoDecoder, *fakeAudioDecoder) {
	videoDecoder := &fakeVideoDecoder{}
	src := &Source{
		Demuxer:        d,
		VideoDecoder:   videoDecoder,
		PixelConverter: newFakeConverter(),
		Info: SourceInfo{
			FrameCount: int64(len(d.script)),
		},
	}
	var audioDecoder *fakeAudioDecoder
	if withAudio {
		audioDecoder = &fakeAudioDecoder{}
		src.AudioDecoder = audioDecoder
		src.Resampler = &fakeResampler{}
		src.Info.HasAudio = true
	}
	return src, videoDecoder, audioDecoder
}
