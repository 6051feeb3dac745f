package avclock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/playback/pkg/clock"
	"github.com/xaionaro-go/playback/pkg/frame"
)

func newSyncedClock() *Clock {
	c := New(DefaultConfig())
	c.SetAudioPresent(true)
	return c
}

func TestDriftUnsetUntilBothClocksObserved(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()

	_, ok := c.Drift()
	require.False(t, ok)

	c.UpdateVideoPTS(ctx, 100)
	_, ok = c.Drift()
	require.False(t, ok)
	require.False(t, c.ShouldSkipVideoFrame(ctx))
	require.False(t, c.ShouldRepeatVideoFrame(ctx))

	c.UpdateAudioPTS(ctx, 130)
	diff, ok := c.Drift()
	require.True(t, ok)
	require.Equal(t, int64(-30), diff)
}

func TestNoPTSIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()

	c.UpdateVideoPTS(ctx, 100)
	c.UpdateVideoPTS(ctx, frame.NoPTS)
	require.Equal(t, int64(100), c.VideoPTS())

	c.UpdateAudioPTS(ctx, frame.NoPTS)
	require.Equal(t, frame.NoPTS, c.AudioPTS())
}

func TestSkipWhenVideoTrailsAudio(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()

	c.UpdateAudioPTS(ctx, 200)

	// 50ms behind: skip
	c.UpdateVideoPTS(ctx, 150)
	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.Equal(t, uint64(1), c.DropCount())

	// exactly at the threshold: tolerated
	c.UpdateVideoPTS(ctx, 170)
	require.False(t, c.ShouldSkipVideoFrame(ctx))

	// within the threshold: tolerated
	c.UpdateVideoPTS(ctx, 210)
	require.False(t, c.ShouldSkipVideoFrame(ctx))
	require.Equal(t, uint64(1), c.DropCount())
}

func TestRepeatWhenVideoLeadsAudio(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()

	c.UpdateAudioPTS(ctx, 200)

	c.UpdateVideoPTS(ctx, 260)
	require.True(t, c.ShouldRepeatVideoFrame(ctx))
	require.Equal(t, uint64(1), c.RepeatCount())

	c.UpdateVideoPTS(ctx, 230)
	require.False(t, c.ShouldRepeatVideoFrame(ctx))

	c.UpdateVideoPTS(ctx, 210)
	require.False(t, c.ShouldRepeatVideoFrame(ctx))
	require.Equal(t, uint64(1), c.RepeatCount())
}

func TestPolicyInactiveWithoutAudio(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultConfig())

	c.UpdateAudioPTS(ctx, 500)
	c.UpdateVideoPTS(ctx, 100)

	require.False(t, c.ShouldSkipVideoFrame(ctx))
	require.False(t, c.ShouldRepeatVideoFrame(ctx))
	require.Zero(t, c.DropCount())
}

func TestPolicyInactiveWhenSyncDisabled(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()
	c.SetSyncEnabled(false)

	c.UpdateAudioPTS(ctx, 500)
	c.UpdateVideoPTS(ctx, 100)

	require.False(t, c.ShouldSkipVideoFrame(ctx))
	require.False(t, c.ShouldRepeatVideoFrame(ctx))
}

func TestSkipRunBound(t *testing.T) {
	ctx := context.Background()
	c := New(Config{
		SyncThreshold:       DefaultSyncThreshold,
		MaxConsecutiveSkips: 2,
	})
	c.SetAudioPresent(true)

	// video trails audio hopelessly; every evaluation says "skip", but
	// every third frame must be let through so the picture keeps moving
	c.UpdateAudioPTS(ctx, 10_000)
	c.UpdateVideoPTS(ctx, 100)

	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.False(t, c.ShouldSkipVideoFrame(ctx), "the skip-run bound should force a decode")
	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.Equal(t, uint64(3), c.DropCount())
}

func TestSkipRunResetsOnRecovery(t *testing.T) {
	ctx := context.Background()
	c := New(Config{
		SyncThreshold:       DefaultSyncThreshold,
		MaxConsecutiveSkips: 2,
	})
	c.SetAudioPresent(true)

	c.UpdateAudioPTS(ctx, 200)
	c.UpdateVideoPTS(ctx, 100)
	require.True(t, c.ShouldSkipVideoFrame(ctx))

	// caught up: the run counter starts over
	c.UpdateVideoPTS(ctx, 190)
	require.False(t, c.ShouldSkipVideoFrame(ctx))

	c.UpdateAudioPTS(ctx, 400)
	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.True(t, c.ShouldSkipVideoFrame(ctx))
	require.False(t, c.ShouldSkipVideoFrame(ctx))
}

func TestStartTime(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	oldClock := clock.Get()
	clock.Set(mock)
	defer clock.Set(oldClock)

	c := newSyncedClock()
	require.True(t, c.StartTime().IsZero())

	c.UpdateVideoPTS(ctx, 0)
	startedAt := c.StartTime()
	require.Equal(t, mock.Now(), startedAt)

	// the start moment is pinned to the first observation
	mock.Add(time.Minute)
	c.UpdateAudioPTS(ctx, 40)
	require.Equal(t, startedAt, c.StartTime())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	c := newSyncedClock()

	c.UpdateAudioPTS(ctx, 10_000)
	c.UpdateVideoPTS(ctx, 100)
	require.True(t, c.ShouldSkipVideoFrame(ctx))

	c.Reset(ctx)
	require.Equal(t, frame.NoPTS, c.VideoPTS())
	require.Equal(t, frame.NoPTS, c.AudioPTS())
	require.True(t, c.StartTime().IsZero())

	// the counters are cumulative across restarts
	require.Equal(t, uint64(1), c.DropCount())

	_, ok := c.Drift()
	require.False(t, ok)
	require.False(t, c.ShouldSkipVideoFrame(ctx))
}
