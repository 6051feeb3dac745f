package framequeue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/playback/pkg/frame"
)

func newTestFrame(pool *frame.Pool, pts int64) *frame.Frame {
	f := pool.Get(2, 2, frame.PixelFormatRGBA)
	f.PTS = pts
	return f
}

func TestPushPopFIFO(t *testing.T) {
	ctx := context.Background()
	pool := frame.NewPool()
	q := New(3)

	for _, pts := range []int64{0, 33, 66} {
		q.Push(ctx, newTestFrame(pool, pts))
	}
	require.Equal(t, 3, q.Len(ctx))

	for _, pts := range []int64{0, 33, 66} {
		f := q.Pop(ctx)
		require.NotNil(t, f)
		require.Equal(t, pts, f.PTS)
		f.Release(ctx)
	}
	require.Nil(t, q.Pop(ctx))
}

func TestPopEmptyDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	q := New(5)
	require.Nil(t, q.Pop(ctx))
	require.Equal(t, 0, q.Len(ctx))
}

func TestOverflowEvictsOldest(t *testing.T) {
	ctx := context.Background()
	pool := frame.NewPool()
	q := New(5)

	frames := make([]*frame.Frame, 0, 6)
	for _, pts := range []int64{0, 33, 66, 100, 133, 166} {
		f := newTestFrame(pool, pts)
		frames = append(frames, f)
		q.Push(ctx, f)
	}

	require.Equal(t, 5, q.Len(ctx))
	require.True(t, frames[0].IsReleased(), "the oldest frame should have been evicted and released")

	var got []int64
	for {
		f := q.Pop(ctx)
		if f == nil {
			break
		}
		got = append(got, f.PTS)
		f.Release(ctx)
	}
	require.Equal(t, []int64{33, 66, 100, 133, 166}, got)
}

func TestCapacityFallback(t *testing.T) {
	q := New(0)
	require.Equal(t, DefaultCapacity, q.Capacity())
}

func TestCloseReleasesQueuedFrames(t *testing.T) {
	ctx := context.Background()
	pool := frame.NewPool()
	q := New(5)

	frames := make([]*frame.Frame, 0, 3)
	for _, pts := range []int64{0, 33, 66} {
		f := newTestFrame(pool, pts)
		frames = append(frames, f)
		q.Push(ctx, f)
	}

	require.NoError(t, q.Close(ctx))
	for _, f := range frames {
		require.True(t, f.IsReleased())
	}

	// idempotent
	require.NoError(t, q.Close(ctx))
}

func TestPushIntoClosedReleasesTheFrame(t *testing.T) {
	ctx := context.Background()
	pool := frame.NewPool()
	q := New(5)
	require.NoError(t, q.Close(ctx))

	f := newTestFrame(pool, 33)
	q.Push(ctx, f)
	require.True(t, f.IsReleased())
	require.Equal(t, 0, q.Len(ctx))
}

func TestNotifyChan(t *testing.T) {
	ctx := context.Background()
	pool := frame.NewPool()
	q := New(5)

	q.Push(ctx, newTestFrame(pool, 0))
	q.Push(ctx, newTestFrame(pool, 33))

	select {
	case <-q.NotifyChan():
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-q.NotifyChan():
		t.Fatal("notifications should coalesce into at most one")
	default:
	}
}
