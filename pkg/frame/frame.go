package frame

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
)

// NoPTS is the "no value" presentation timestamp. The playback clock and
// the drift policy treat it as "not observed, yet".
const NoPTS = int64(math.MinInt64)

type PixelFormat int

const (
	PixelFormatUndefined PixelFormat = iota
	PixelFormatRGBA
	PixelFormatBGRA
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGRA:
		return "BGRA"
	}
	return "undefined"
}

func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA, PixelFormatBGRA:
		return 4
	}
	return 0
}

// Frame is one decoded video image together with its presentation timestamp
// (milliseconds, monotonic within a stream). A Frame is exclusively owned by
// whoever currently holds it; ownership moves on every hand-off (decoder
// output -> queue slot -> consumer). Use Clone if an independent copy is
// required instead of a move.
type Frame struct {
	PTS    int64
	Width  int
	Height int
	Format PixelFormat
	Stride int
	Pix    []byte

	pool     *Pool
	released atomic.Bool
}

// Image wraps the pixel buffer into an *image.RGBA header (no copy).
// The result is valid only until the frame is released.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Clone returns an independent deep copy of the frame, allocated from the
// same pool (if any).
func (f *Frame) Clone(ctx context.Context) *Frame {
	var dup *Frame
	if f.pool != nil {
		dup = f.pool.Get(f.Width, f.Height, f.Format)
	} else {
		dup = &Frame{
			Width:  f.Width,
			Height: f.Height,
			Format: f.Format,
			Stride: f.Stride,
			Pix:    make([]byte, len(f.Pix)),
		}
	}
	dup.PTS = f.PTS
	dup.Stride = f.Stride
	copy(dup.Pix, f.Pix)
	return dup
}

// Release returns the pixel buffer to the pool. Releasing the same frame
// twice is a programming error; it is reported and ignored to avoid
// corrupting the pool.
func (f *Frame) Release(ctx context.Context) {
	if f.released.Swap(true) {
		errmon.ObserveErrorCtx(ctx, fmt.Errorf("frame (pts: %d) is released the second time", f.PTS))
		return
	}
	if f.pool != nil {
		f.pool.put(f)
	}
}

// IsReleased reports whether Release was already called. It exists for
// assertions; holders of a live frame never need it.
func (f *Frame) IsReleased() bool {
	return f.released.Load()
}
