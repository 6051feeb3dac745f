// Package framequeue implements the bounded decoded-frame hand-off between
// the decoder worker and the display tick: a fixed-capacity ring with a
// drop-oldest overflow policy, a non-blocking producer side and a
// non-blocking consumer side.
package framequeue

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/xsync"
)

const DefaultCapacity = 5

// FrameQueue is a single-producer/single-consumer ring of decoded frames.
//
// Slots outside [readCursor, writeCursor) (mod capacity) are unoccupied;
// both cursors advance modulo capacity exactly once per successful
// push/pop. All state is protected by one mutex; the critical sections are
// O(1) and no blocking call ever happens under the lock.
type FrameQueue struct {
	locker      xsync.Mutex
	slots       []*frame.Frame
	readCursor  int
	writeCursor int
	count       int
	closed      bool

	notifyChan chan struct{}
}

func New(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FrameQueue{
		slots:      make([]*frame.Frame, capacity),
		notifyChan: make(chan struct{}, 1),
	}
}

// Push stores the frame, evicting the oldest queued frame first when the
// queue is full. It never blocks and never fails: when the consumer cannot
// keep up, smoothness is traded for producer progress. The queue takes
// ownership of the frame.
func (q *FrameQueue) Push(ctx context.Context, f *frame.Frame) {
	q.locker.Do(ctx, func() {
		if q.closed {
			logger.Warnf(ctx, "a push into a closed frame queue (pts: %d)", f.PTS)
			f.Release(ctx)
			return
		}
		if q.count == cap(q.slots) {
			evicted := q.slots[q.readCursor]
			q.slots[q.readCursor] = nil
			q.readCursor = (q.readCursor + 1) % cap(q.slots)
			q.count--
			logger.Tracef(ctx, "the frame queue is full, evicting the oldest frame (pts: %d)", evicted.PTS)
			evicted.Release(ctx)
		}
		q.slots[q.writeCursor] = f
		q.writeCursor = (q.writeCursor + 1) % cap(q.slots)
		q.count++
	})

	select {
	case q.notifyChan <- struct{}{}:
	default:
	}
}

// Pop returns the oldest queued frame, or nil immediately when the queue is
// empty: the consumer runs on a fixed external cadence and must never
// stall. Ownership of the returned frame moves to the caller.
func (q *FrameQueue) Pop(ctx context.Context) *frame.Frame {
	return xsync.DoR1(ctx, &q.locker, func() *frame.Frame {
		if q.count == 0 {
			return nil
		}
		f := q.slots[q.readCursor]
		q.slots[q.readCursor] = nil
		q.readCursor = (q.readCursor + 1) % cap(q.slots)
		q.count--
		return f
	})
}

// NotifyChan signals (with at-most-one pending notification) that a new
// frame was pushed. A tick-driven consumer may ignore it.
func (q *FrameQueue) NotifyChan() <-chan struct{} {
	return q.notifyChan
}

func (q *FrameQueue) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &q.locker, func() int {
		return q.count
	})
}

func (q *FrameQueue) Capacity() int {
	return cap(q.slots)
}

// Close releases every still-queued frame. The producer must be stopped
// (joined) before calling Close; see the player's lifecycle contract.
func (q *FrameQueue) Close(ctx context.Context) error {
	q.locker.Do(ctx, func() {
		if q.closed {
			return
		}
		q.closed = true
		for q.count > 0 {
			f := q.slots[q.readCursor]
			q.slots[q.readCursor] = nil
			q.readCursor = (q.readCursor + 1) % cap(q.slots)
			q.count--
			f.Release(ctx)
		}
	})
	return nil
}
