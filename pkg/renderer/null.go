package renderer

import (
	"context"
	"sync/atomic"

	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/playback/pkg/player"
)

// Null discards every frame; useful for headless runs and benchmarks.
type Null struct {
	PublishCount    atomic.Uint64
	FlushCacheCount atomic.Uint64
}

var _ player.Renderer = (*Null)(nil)

func (r *Null) Publish(ctx context.Context, f *frame.Frame) error {
	r.PublishCount.Add(1)
	return nil
}

func (r *Null) FlushCache(ctx context.Context) {
	r.FlushCacheCount.Add(1)
}
