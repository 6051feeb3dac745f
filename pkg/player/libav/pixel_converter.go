package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/playback/pkg/player"
)

// pixelConverter scales/converts decoder output into RGBA and copies it
// into a pooled displayable frame. The scale context is created lazily and
// recreated whenever the input geometry or pixel format changes.
type pixelConverter struct {
	framePool *frame.Pool

	scaleContext *astiav.SoftwareScaleContext
	srcWidth     int
	srcHeight    int
	srcFormat    astiav.PixelFormat
}

var _ player.PixelConverter = (*pixelConverter)(nil)

func newPixelConverter() *pixelConverter {
	return &pixelConverter{
		framePool: frame.NewPool(),
	}
}

func (c *pixelConverter) close() {
	if c.scaleContext != nil {
		c.scaleContext.Free()
		c.scaleContext = nil
	}
}

func (c *pixelConverter) Convert(
	ctx context.Context,
	raw player.RawVideoFrame,
) (*frame.Frame, error) {
	lf, ok := raw.(*rawVideoFrame)
	if !ok {
		return nil, fmt.Errorf("received a frame of an unexpected origin: %T", raw)
	}

	src := lf.raw
	if err := c.ensureScaleContext(ctx, src); err != nil {
		return nil, err
	}

	dst := framePool.Get()
	defer framePool.Put(dst)
	if err := c.scaleContext.ScaleFrame(src, dst); err != nil {
		return nil, fmt.Errorf("unable to convert the frame to RGBA: %w", err)
	}

	width, height := dst.Width(), dst.Height()
	out := c.framePool.Get(width, height, frame.PixelFormatRGBA)
	out.PTS = raw.PTS()
	if err := dst.Data().ToImage(out.Image()); err != nil {
		out.Release(ctx)
		return nil, fmt.Errorf("unable to copy the pixel data: %w", err)
	}
	return out, nil
}

func (c *pixelConverter) ensureScaleContext(
	ctx context.Context,
	src *astiav.Frame,
) error {
	if c.scaleContext != nil &&
		c.srcWidth == src.Width() &&
		c.srcHeight == src.Height() &&
		c.srcFormat == src.PixelFormat() {
		return nil
	}

	if c.scaleContext != nil {
		logger.Debugf(ctx, "input geometry changed: %dx%d (%s) -> %dx%d (%s)",
			c.srcWidth, c.srcHeight, c.srcFormat,
			src.Width(), src.Height(), src.PixelFormat(),
		)
		c.scaleContext.Free()
		c.scaleContext = nil
	}

	scaleContext, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		src.Width(), src.Height(), astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("unable to create a scale context: %w", err)
	}

	c.scaleContext = scaleContext
	c.srcWidth = src.Width()
	c.srcHeight = src.Height()
	c.srcFormat = src.PixelFormat()
	return nil
}
