// Package player implements the playback synchronization engine: a decode
// worker producing frames into a bounded queue, a display tick consuming
// them, a shared playback clock with a skip/repeat drift policy, and the
// lifecycle control tying them together.
//
// Demultiplexing, codec work, pixel conversion, resampling and the actual
// audio/video output are external collaborators (see collaborators.go);
// libav-backed implementations live in the libav subpackage.
package player

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/playback/pkg/avclock"
	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/playback/pkg/framequeue"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

type Player struct {
	locker xsync.Mutex
	config Config

	renderer  Renderer
	audioSink AudioSink

	source *Source
	clock  *avclock.Clock
	queue  *framequeue.FrameQueue

	isPlaying    atomic.Bool
	isPaused     atomic.Bool
	audioEnabled atomic.Bool
	audioFailed  atomic.Bool
	eosReached   atomic.Bool
	volume       atomic.Int32

	workerCancel context.CancelFunc
	workerDone   chan struct{}

	// consumer-side state, touched only from Tick
	currentFrame *frame.Frame
	tickCount    uint64

	endChan chan struct{}
}

// New constructs a player publishing to the given renderer and audio sink.
// audioSink may be nil: playback is then video-only.
func New(
	renderer Renderer,
	audioSink AudioSink,
	opts ...Option,
) *Player {
	cfg := Options(opts).Config()
	p := &Player{
		config:    cfg,
		renderer:  renderer,
		audioSink: audioSink,
		endChan:   make(chan struct{}),
	}
	p.audioEnabled.Store(cfg.AudioEnabled && audioSink != nil)
	p.SetVolume(context.TODO(), cfg.Volume)
	return p
}

// OpenSource attaches a demuxed stream to the player, replacing (and
// closing) any previously opened one. Stream-fatal problems (no video
// stream, missing collaborators) are reported here and playback does not
// start.
func (p *Player) OpenSource(
	ctx context.Context,
	src *Source,
) (_err error) {
	logger.Debugf(ctx, "OpenSource")
	defer func() { logger.Debugf(ctx, "/OpenSource: %v", _err) }()

	if src == nil || src.Demuxer == nil || src.VideoDecoder == nil || src.PixelConverter == nil {
		return ErrSourceOpen{Err: ErrNoVideoStream}
	}

	if err := p.Stop(ctx); err != nil {
		return fmt.Errorf("unable to stop the previous playback: %w", err)
	}

	return xsync.DoR1(ctx, &p.locker, func() error {
		if p.source != nil {
			if err := p.source.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close the previous source: %v", err)
			}
		}
		p.releaseCurrentFrame(ctx)

		p.source = src
		p.clock = avclock.New(p.config.clockConfig())
		p.clock.SetSyncEnabled(p.config.SyncEnabled)
		p.clock.SetAudioPresent(src.Info.HasAudio && p.audioEnabled.Load())
		p.audioFailed.Store(false)
		p.eosReached.Store(false)
		return nil
	})
}

// TickPeriod returns the display cadence the owner should drive Tick at:
// the period derived from the source's average frame rate when known, the
// configured default otherwise.
func (p *Player) TickPeriod(ctx context.Context) time.Duration {
	return xsync.DoR1(ctx, &p.locker, func() time.Duration {
		if p.source != nil && p.source.Info.TickPeriod > 0 {
			return p.source.Info.TickPeriod
		}
		return p.config.TickPeriod
	})
}

// FrameCount returns the opened source's video frame count, or -1.
func (p *Player) FrameCount(ctx context.Context) int64 {
	return xsync.DoR1(ctx, &p.locker, func() int64 {
		if p.source == nil {
			return -1
		}
		return p.source.Info.FrameCount
	})
}

// Start rewinds to the first frame and spawns the decode worker.
func (p *Player) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	return xsync.DoR1(ctx, &p.locker, func() error {
		return p.startLocked(ctx)
	})
}

func (p *Player) startLocked(ctx context.Context) error {
	if p.source == nil {
		return ErrNoSource
	}
	if p.isPlaying.Load() {
		return ErrAlreadyPlaying
	}

	if err := p.source.Demuxer.SeekToStart(ctx); err != nil {
		return fmt.Errorf("unable to seek to the beginning: %w", err)
	}
	p.clock.Reset(ctx)
	p.eosReached.Store(false)

	if p.queue == nil {
		p.queue = framequeue.New(p.config.QueueCapacity)
	}

	// the worker must outlive the caller's request context (Start may be
	// invoked from a per-tick context on auto-restart)
	workerCtx, workerCancel := context.WithCancel(xcontext.DetachDone(ctx))
	p.workerCancel = workerCancel
	p.workerDone = make(chan struct{})
	p.isPlaying.Store(true)
	p.isPaused.Store(false)

	src, clk, queue, done := p.source, p.clock, p.queue, p.workerDone
	observability.Go(workerCtx, func(ctx context.Context) {
		defer close(done)
		p.workerLoop(ctx, src, clk, queue)
	})
	return nil
}

// Stop halts the decode worker and tears the frame queue down. It returns
// only after the worker terminated: no queue or clock mutation happens
// after Stop. Stopping a non-playing player is a no-op.
func (p *Player) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()

	var (
		done   chan struct{}
		cancel context.CancelFunc
	)
	p.locker.Do(ctx, func() {
		p.isPlaying.Store(false)
		done, cancel = p.workerDone, p.workerCancel
		p.workerDone, p.workerCancel = nil, nil
	})

	// joining outside of the lock, Tick must not get blocked behind it
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	return xsync.DoR1(ctx, &p.locker, func() error {
		if p.queue != nil {
			if err := p.queue.Close(ctx); err != nil {
				return fmt.Errorf("unable to close the frame queue: %w", err)
			}
			p.queue = nil
		}
		if p.source != nil {
			if err := p.source.Demuxer.SeekToStart(ctx); err != nil {
				logger.Warnf(ctx, "unable to rewind the source: %v", err)
			}
		}
		return nil
	})
}

// Pause suspends decoding without stopping the worker or releasing any
// resource. The worker observes it within one pause-poll interval.
func (p *Player) Pause(ctx context.Context) {
	logger.Debugf(ctx, "Pause")
	p.isPaused.Store(true)
}

func (p *Player) Resume(ctx context.Context) {
	logger.Debugf(ctx, "Resume")
	p.isPaused.Store(false)
}

func (p *Player) IsPlaying() bool {
	return p.isPlaying.Load()
}

func (p *Player) IsPaused() bool {
	return p.isPaused.Load()
}

// SetAudioEnabled toggles the audio path at runtime. While disabled (or
// after a fatal sink failure) audio packets are discarded undecoded and
// the drift policy is inactive, so a frozen audio clock cannot starve
// video.
func (p *Player) SetAudioEnabled(ctx context.Context, enabled bool) {
	logger.Debugf(ctx, "SetAudioEnabled(%v)", enabled)
	p.audioEnabled.Store(enabled && p.audioSink != nil)
	p.locker.Do(ctx, func() {
		p.updateAudioPresentLocked()
	})
}

// must be called with the locker held
func (p *Player) updateAudioPresentLocked() {
	if p.clock == nil {
		return
	}
	hasAudio := p.source != nil && p.source.Info.HasAudio
	p.clock.SetAudioPresent(hasAudio && p.audioEnabled.Load() && !p.audioFailed.Load())
}

func (p *Player) AudioEnabled() bool {
	return p.audioEnabled.Load()
}

// SetVolume sets the PCM gain in percent, clamped into [0, 100].
func (p *Player) SetVolume(ctx context.Context, volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	logger.Debugf(ctx, "SetVolume(%d)", volume)
	p.volume.Store(int32(volume))
}

func (p *Player) Volume() int {
	return int(p.volume.Load())
}

// Clock exposes the playback clock of the currently opened source (nil
// when nothing is open). Intended for observability and tests.
func (p *Player) Clock(ctx context.Context) *avclock.Clock {
	return xsync.DoR1(ctx, &p.locker, func() *avclock.Clock {
		return p.clock
	})
}

// EndChan returns a channel closed on the next end-of-stream transition
// (only when auto-restart is off).
func (p *Player) EndChan(ctx context.Context) <-chan struct{} {
	return xsync.DoR1(ctx, &p.locker, func() <-chan struct{} {
		return p.endChan
	})
}

// must be called with the locker held
func (p *Player) notifyEndLocked(ctx context.Context) {
	logger.Debugf(ctx, "notifyEnd")
	var oldEndChan chan struct{}
	p.endChan, oldEndChan = make(chan struct{}), p.endChan
	close(oldEndChan)
}

// must be called with the locker held
func (p *Player) releaseCurrentFrame(ctx context.Context) {
	if p.currentFrame == nil {
		return
	}
	p.currentFrame.Release(ctx)
	p.currentFrame = nil
}

// Close stops playback and releases everything. The player is unusable
// afterwards.
func (p *Player) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	var result *multierror.Error
	if err := p.Stop(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("unable to stop playback: %w", err))
	}
	p.locker.Do(ctx, func() {
		p.releaseCurrentFrame(ctx)
		if p.source != nil {
			if err := p.source.Close(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("unable to close the source: %w", err))
			}
			p.source = nil
		}
	})
	if p.audioSink != nil {
		if err := p.audioSink.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close the audio sink: %w", err))
		}
	}
	return result.ErrorOrNil()
}
