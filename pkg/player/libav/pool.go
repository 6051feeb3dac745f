package libav

import (
	"runtime"
	"sync"

	"github.com/asticode/go-astiav"
)

type pool[T any] struct {
	sync.Pool
	ResetFunc func(*T)
}

func newPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
	freeFunc func(*T),
) *pool[T] {
	return &pool[T]{
		Pool: sync.Pool{
			New: func() any {
				v := allocFunc()
				runtime.SetFinalizer(v, func(v *T) {
					freeFunc(v)
				})
				return v
			},
		},
		ResetFunc: resetFunc,
	}
}

func (p *pool[T]) Get() *T {
	return p.Pool.Get().(*T)
}

func (p *pool[T]) Put(item *T) {
	p.ResetFunc(item)
	p.Pool.Put(item)
}

var packetPool = newPool(
	astiav.AllocPacket,
	func(p *astiav.Packet) { p.Unref() },
	func(p *astiav.Packet) { p.Free() },
)

var framePool = newPool(
	astiav.AllocFrame,
	func(f *astiav.Frame) { f.Unref() },
	func(f *astiav.Frame) { f.Free() },
)
