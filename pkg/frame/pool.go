package frame

import (
	"sync"
)

// Pool recycles frame pixel buffers. Within one stream all frames share
// dimensions and format, so the buffers are perfectly reusable; the pool
// avoids reallocating a multi-megabyte image on every decoded frame.
type Pool struct {
	pool sync.Pool
}

func NewPool() *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		return &Frame{pool: p}
	}
	return p
}

// Get returns a frame with a pixel buffer large enough for the requested
// geometry. The content of the buffer is undefined.
func (p *Pool) Get(width, height int, format PixelFormat) *Frame {
	f := p.pool.Get().(*Frame)
	f.PTS = NoPTS
	f.Width = width
	f.Height = height
	f.Format = format
	f.Stride = width * format.BytesPerPixel()
	size := f.Stride * height
	if cap(f.Pix) < size {
		f.Pix = make([]byte, size)
	}
	f.Pix = f.Pix[:size]
	f.released.Store(false)
	return f
}

func (p *Pool) put(f *Frame) {
	p.pool.Put(f)
}
