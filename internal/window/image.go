package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"
)

// ImageWindow serves a saved screenshot of the window's client area. It is
// used for offline runs, uploads and tests.
type ImageWindow struct {
	title     string
	img       image.Image
	minimized bool

	activations atomic.Int32
}

// NewImageWindow wraps img. The client area is the whole image.
func NewImageWindow(title string, img image.Image) *ImageWindow {
	return &ImageWindow{title: title, img: img}
}

// SetMinimized marks the window minimized so captures fail.
func (w *ImageWindow) SetMinimized(v bool) { w.minimized = v }

// Activations returns how many times Activate was called.
func (w *ImageWindow) Activations() int { return int(w.activations.Load()) }

func (w *ImageWindow) Title() string { return w.title }

func (w *ImageWindow) ClientBounds() (image.Rectangle, error) {
	if w.img == nil {
		return image.Rectangle{}, errors.New("window has no image")
	}
	b := w.img.Bounds()
	return image.Rect(0, 0, b.Dx(), b.Dy()), nil
}

func (w *ImageWindow) Minimized() bool { return w.minimized }

func (w *ImageWindow) Activate() error {
	w.activations.Add(1)
	return nil
}

// Grab copies the client-relative rectangle r out of the screenshot.
func (w *ImageWindow) Grab(r image.Rectangle) (image.Image, error) {
	client, err := w.ClientBounds()
	if err != nil {
		return nil, err
	}
	if r.Empty() || !r.In(client) {
		return nil, fmt.Errorf("rectangle %v outside client area %v", r, client)
	}
	src := r.Add(w.img.Bounds().Min)
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), w.img, src.Min, draw.Src)
	return out, nil
}

// ImageLocator resolves titles against a fixed set of ImageWindows.
type ImageLocator struct {
	windows []*ImageWindow
}

// NewImageLocator returns a locator over the given windows, searched in order.
func NewImageLocator(windows ...*ImageWindow) *ImageLocator {
	return &ImageLocator{windows: windows}
}

// Locate returns the first window whose title contains title.
func (l *ImageLocator) Locate(ctx context.Context, title string) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, w := range l.windows {
		if MatchTitle(w.title, title) {
			return w, nil
		}
	}
	return nil, &NotFoundError{Title: title}
}
