// Package avclock holds the shared playback-clock state of one stream: the
// last observed video and audio presentation timestamps and the
// drift-correction policy deciding when a video frame should be skipped or
// repeated to stay aligned with audio.
package avclock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/clock"
	"github.com/xaionaro-go/playback/pkg/frame"
)

const (
	DefaultSyncThreshold       = 30 * time.Millisecond
	DefaultMaxFrameDelay       = 100 * time.Millisecond
	DefaultMaxConsecutiveSkips = 2
)

type Config struct {
	// SyncThreshold is the maximal tolerated |video - audio| drift before
	// the skip/repeat policy engages.
	SyncThreshold time.Duration

	// MaxFrameDelay is a reserved upper bound on how late a frame may be
	// presented; it is not enforced independently of the skip policy.
	MaxFrameDelay time.Duration

	// MaxConsecutiveSkips bounds a skip run: after this many skips in a
	// row the next frame is decoded and displayed regardless of drift, so
	// that the picture keeps moving even under heavy lag.
	MaxConsecutiveSkips uint32
}

func DefaultConfig() Config {
	return Config{
		SyncThreshold:       DefaultSyncThreshold,
		MaxFrameDelay:       DefaultMaxFrameDelay,
		MaxConsecutiveSkips: DefaultMaxConsecutiveSkips,
	}
}

// Clock is written by the decoder worker and read by both the worker and
// the display tick. The fields are independent atomics instead of one
// mutex-protected struct: they are plain scalars read on every decoded
// frame, and a stale-by-one-write read is tolerable for the drift
// heuristic.
type Clock struct {
	config Config

	videoPTS atomic.Int64
	audioPTS atomic.Int64

	// unix nanoseconds of the first observed frame of either kind; 0
	// until then
	startTime atomic.Int64

	syncEnabled  atomic.Bool
	audioPresent atomic.Bool

	dropCount        atomic.Uint64
	repeatCount      atomic.Uint64
	consecutiveSkips atomic.Uint32
}

func New(cfg Config) *Clock {
	c := &Clock{config: cfg}
	if c.config.SyncThreshold <= 0 {
		c.config.SyncThreshold = DefaultSyncThreshold
	}
	if c.config.MaxFrameDelay <= 0 {
		c.config.MaxFrameDelay = DefaultMaxFrameDelay
	}
	c.videoPTS.Store(frame.NoPTS)
	c.audioPTS.Store(frame.NoPTS)
	c.syncEnabled.Store(true)
	return c
}

// UpdateVideoPTS stores the video presentation timestamp (milliseconds).
// It must be called even for frames the policy decided to skip, otherwise
// the video clock stalls while audio keeps advancing and the skip policy
// never disengages.
func (c *Clock) UpdateVideoPTS(ctx context.Context, pts int64) {
	if pts == frame.NoPTS {
		return
	}
	c.markStarted()
	c.videoPTS.Store(pts)
}

// UpdateAudioPTS stores the audio presentation timestamp (milliseconds).
func (c *Clock) UpdateAudioPTS(ctx context.Context, pts int64) {
	if pts == frame.NoPTS {
		return
	}
	c.markStarted()
	c.audioPTS.Store(pts)
}

func (c *Clock) markStarted() {
	c.startTime.CompareAndSwap(0, clock.Now().UnixNano())
}

func (c *Clock) VideoPTS() int64 {
	return c.videoPTS.Load()
}

func (c *Clock) AudioPTS() int64 {
	return c.audioPTS.Load()
}

// StartTime returns the moment the first timestamped frame of either kind
// was observed; the zero time if playback has not produced one, yet.
func (c *Clock) StartTime() time.Time {
	ns := c.startTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Drift returns videoPTS-audioPTS in milliseconds. The second return value
// is false while either timestamp is unset.
func (c *Clock) Drift() (int64, bool) {
	videoPTS := c.videoPTS.Load()
	audioPTS := c.audioPTS.Load()
	if videoPTS == frame.NoPTS || audioPTS == frame.NoPTS {
		return 0, false
	}
	return videoPTS - audioPTS, true
}

// ShouldSkipVideoFrame reports whether the next video packet should be
// discarded without decoding because video trails audio by more than the
// threshold. It is evaluated at packet read time and gates the enqueue; it
// is not a post-hoc discard.
func (c *Clock) ShouldSkipVideoFrame(ctx context.Context) bool {
	if !c.driftPolicyActive() {
		return false
	}
	diff, ok := c.Drift()
	if !ok {
		return false
	}
	if diff >= -c.syncThresholdMS() {
		c.consecutiveSkips.Store(0)
		return false
	}

	if bound := c.config.MaxConsecutiveSkips; bound > 0 {
		if c.consecutiveSkips.Load() >= bound {
			c.consecutiveSkips.Store(0)
			logger.Tracef(ctx, "video trails audio by %dms, but the skip-run bound (%d) was reached; decoding anyway", -diff, bound)
			return false
		}
		c.consecutiveSkips.Add(1)
	}
	c.dropCount.Add(1)
	logger.Tracef(ctx, "video trails audio by %dms (> %dms), skipping a frame", -diff, c.syncThresholdMS())
	return true
}

// ShouldRepeatVideoFrame reports whether the consumer should keep showing
// the previous image because video leads audio by more than the threshold.
func (c *Clock) ShouldRepeatVideoFrame(ctx context.Context) bool {
	if !c.driftPolicyActive() {
		return false
	}
	diff, ok := c.Drift()
	if !ok {
		return false
	}
	if diff <= c.syncThresholdMS() {
		return false
	}
	c.repeatCount.Add(1)
	logger.Tracef(ctx, "video leads audio by %dms (> %dms), repeating the previous frame", diff, c.syncThresholdMS())
	return true
}

func (c *Clock) driftPolicyActive() bool {
	return c.syncEnabled.Load() && c.audioPresent.Load()
}

func (c *Clock) syncThresholdMS() int64 {
	return c.config.SyncThreshold.Milliseconds()
}

func (c *Clock) SetSyncEnabled(enabled bool) {
	c.syncEnabled.Store(enabled)
}

// SetAudioPresent tells the drift policy whether there is an audio clock to
// align with. It is also cleared when audio output dies mid-play: a stalled
// audio timestamp would otherwise mis-trigger the repeat policy forever.
func (c *Clock) SetAudioPresent(present bool) {
	c.audioPresent.Store(present)
}

func (c *Clock) DropCount() uint64 {
	return c.dropCount.Load()
}

func (c *Clock) RepeatCount() uint64 {
	return c.repeatCount.Load()
}

// Reset re-arms the clock for a replay of the same stream (auto-restart):
// timestamps become unset again, the policy counters survive.
func (c *Clock) Reset(ctx context.Context) {
	logger.Debugf(ctx, "resetting the playback clock")
	c.videoPTS.Store(frame.NoPTS)
	c.audioPTS.Store(frame.NoPTS)
	c.startTime.Store(0)
	c.consecutiveSkips.Store(0)
}
