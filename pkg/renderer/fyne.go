// Package renderer contains Renderer implementations for the player: a
// fyne window renderer for the desktop frontend and a null renderer for
// headless use.
package renderer

import (
	"context"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/xaionaro-go/playback/pkg/frame"
	"github.com/xaionaro-go/playback/pkg/player"
)

// Fyne publishes frames into a fyne window. It keeps its own image buffer:
// the published frame is returned to the frame pool right after the next
// publish, while the canvas may still be reading the previous picture.
type Fyne struct {
	window      fyne.Window
	canvasImage *canvas.Image
	image       *image.RGBA
}

var _ player.Renderer = (*Fyne)(nil)

func NewFyne(window fyne.Window) *Fyne {
	return &Fyne{
		window: window,
	}
}

func (r *Fyne) Publish(ctx context.Context, f *frame.Frame) error {
	bounds := image.Rect(0, 0, f.Width, f.Height)
	if r.image == nil || r.image.Rect != bounds {
		r.image = image.NewRGBA(bounds)
		r.canvasImage = canvas.NewImageFromImage(r.image)
		r.canvasImage.FillMode = canvas.ImageFillContain
		r.canvasImage.ScaleMode = canvas.ImageScaleFastest
		r.window.SetContent(r.canvasImage)
	}
	copy(r.image.Pix, f.Pix)
	r.canvasImage.Refresh()
	return nil
}

func (r *Fyne) FlushCache(ctx context.Context) {
	if r.canvasImage == nil {
		return
	}
	r.window.Canvas().Refresh(r.canvasImage)
}
