package player

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Tick is the consumer (display) side, to be invoked once per display
// period by the owning refresh cycle. It never blocks and never sleeps:
// when the queue is empty it simply keeps the previous image on screen.
func (p *Player) Tick(ctx context.Context) {
	p.locker.Do(ctx, func() {
		p.tickLocked(ctx)
	})
}

func (p *Player) tickLocked(ctx context.Context) {
	if p.queue == nil {
		return
	}

	f := p.queue.Pop(ctx)
	if f == nil {
		if p.isPlaying.Load() {
			// decode jitter; hold the current frame for one tick
			return
		}
		if p.eosReached.Swap(false) {
			p.onEndOfStream(ctx)
		}
		return
	}

	if p.clock != nil && p.clock.ShouldRepeatVideoFrame(ctx) {
		// consumed, not requeued: the frame was dequeued and is dropped;
		// the previously published image stays on screen
		f.Release(ctx)
		return
	}

	old := p.currentFrame
	p.currentFrame = f
	if err := p.renderer.Publish(ctx, f); err != nil {
		logger.Errorf(ctx, "unable to publish a frame (pts: %d): %v", f.PTS, err)
	}
	if old != nil {
		old.Release(ctx)
	}

	p.tickCount++
	if n := p.config.RendererCacheFlushInterval; n > 0 && p.tickCount%n == 0 {
		p.renderer.FlushCache(ctx)
	}
}

// onEndOfStream runs on the consumer side once the producer finished and
// the queue drained: either restart from the first frame or stop and
// notify the owner, per configuration.
//
// must be called with the locker held
func (p *Player) onEndOfStream(ctx context.Context) {
	logger.Debugf(ctx, "onEndOfStream (autoRestart: %v)", p.config.AutoRestart)

	if !p.config.AutoRestart {
		p.notifyEndLocked(ctx)
		return
	}

	if err := p.startLocked(ctx); err != nil {
		logger.Errorf(ctx, "unable to auto-restart playback: %v", err)
	}
}
