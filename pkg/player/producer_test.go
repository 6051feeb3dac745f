package player

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipAvoidsDecoding(t *testing.T) {
	ctx := context.Background()

	// audio jumps far ahead first; every following video packet trails it
	// by more than the threshold and must be dropped without decoding
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(500),
		videoPacket(150), videoPacket(160), videoPacket(170),
	}}
	src, videoDecoder, _ := newFakeSource(d, true)

	p := New(&fakeRenderer{}, &fakeSink{}, OptionMaxConsecutiveSkips(100))
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	require.Equal(t, int64(0), videoDecoder.calls.Load())
	require.Equal(t, uint64(3), p.Clock(ctx).DropCount())

	// the clock kept advancing from the skipped packets' timestamps
	require.Equal(t, int64(170), p.Clock(ctx).VideoPTS())
	require.NoError(t, p.Close(ctx))
}

func TestNoSkipWithinThreshold(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(100),
		videoPacket(80), videoPacket(110), videoPacket(130),
	}}
	src, videoDecoder, _ := newFakeSource(d, true)

	p := New(&fakeRenderer{}, &fakeSink{})
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	require.Equal(t, int64(3), videoDecoder.calls.Load())
	require.Zero(t, p.Clock(ctx).DropCount())
	require.NoError(t, p.Close(ctx))
}

func TestAudioDisabledSkipsTheAudioPath(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(0), videoPacket(0), audioPacket(40), videoPacket(33),
	}}
	src, _, audioDecoder := newFakeSource(d, true)

	sink := &fakeSink{}
	p := New(&fakeRenderer{}, sink, OptionAudioEnabled(false))
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	require.Equal(t, int64(0), audioDecoder.calls.Load())
	require.Zero(t, sink.writeCount())
	require.NoError(t, p.Close(ctx))
}

func TestAudioWritesReachTheSink(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(0), audioPacket(40),
	}}
	src, _, audioDecoder := newFakeSource(d, true)

	sink := &fakeSink{}
	p := New(&fakeRenderer{}, sink, OptionVolume(100))
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	require.Equal(t, int64(2), audioDecoder.calls.Load())
	require.Equal(t, 2, sink.writeCount())
	require.Equal(t, []byte{0x00, 0x40, 0x00, 0xC0}, sink.writes[0])
	require.NoError(t, p.Close(ctx))
}

func TestVolumeIsAppliedToPCM(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(0),
	}}
	src, _, _ := newFakeSource(d, true)

	sink := &fakeSink{}
	p := New(&fakeRenderer{}, sink, OptionVolume(50))
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	// 0x4000 -> 0x2000, 0xC000 (-16384) -> 0xE000 (-8192)
	require.Equal(t, 1, sink.writeCount())
	require.Equal(t, []byte{0x00, 0x20, 0x00, 0xE0}, sink.writes[0])
	require.NoError(t, p.Close(ctx))
}

func TestSinkBackpressureIsRetriedThenDropped(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(0), audioPacket(40),
	}}
	src, _, _ := newFakeSource(d, true)

	sink := &fakeSink{err: ErrSinkFull}
	p := New(&fakeRenderer{}, sink,
		OptionAudioWriteRetryCount(2),
		OptionAudioWriteRetryInterval(0),
	)
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	// 1 + 2 retries per chunk; the chunk is dropped but the audio
	// subsystem stays alive, so the second chunk is attempted too
	require.Equal(t, 6, sink.writeCount())
	require.NoError(t, p.Close(ctx))
}

func TestFatalSinkErrorDegradesToSilentVideo(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		audioPacket(500),
		videoPacket(0), videoPacket(33),
	}}
	src, videoDecoder, _ := newFakeSource(d, true)

	sink := &fakeSink{err: errors.New("the audio device is gone")}
	r := &fakeRenderer{}
	p := New(r, sink)
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	// one failed write, no retries of a fatal error
	require.Equal(t, 1, sink.writeCount())

	// the drift policy disengaged together with the dead audio clock:
	// despite audio being far "ahead", the video frames were decoded
	require.Equal(t, int64(2), videoDecoder.calls.Load())
	require.Zero(t, p.Clock(ctx).DropCount())

	p.Tick(ctx)
	p.Tick(ctx)
	require.Equal(t, []int64{0, 33}, r.publishedPTS())
	require.NoError(t, p.Close(ctx))
}

func TestFlushArtifactsAreDropped(t *testing.T) {
	ctx := context.Background()
	d := &fakeDemuxer{script: []scriptedPacket{
		videoPacket(0),
	}}
	src, _, _ := newFakeSource(d, false)
	src.VideoDecoder = &flushArtifactDecoder{}

	r := &fakeRenderer{}
	p := New(r, nil)
	require.NoError(t, p.OpenSource(ctx, src))
	require.NoError(t, p.Start(ctx))
	waitForWorkerExit(t, p)

	p.Tick(ctx)
	p.Tick(ctx)
	require.Equal(t, []int64{33}, r.publishedPTS(), "only the well-formed frame survives")
	require.NoError(t, p.Close(ctx))
}

// flushArtifactDecoder emits a zero-sized frame before a real one, the way
// a drained codec does.
type flushArtifactDecoder struct{}

func (d *flushArtifactDecoder) Decode(ctx context.Context, pkt Packet) ([]RawVideoFrame, error) {
	return []RawVideoFrame{
		&fakeRawVideo{pts: pkt.PTS(), width: 0, height: 0},
		&fakeRawVideo{pts: 33, width: 4, height: 4},
	}, nil
}
