// Package capture grabs field regions out of a located window.
package capture

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/raster"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// ErrMinimized is returned when the window is minimized and has nothing to grab.
var ErrMinimized = errors.New("window is minimized")

// ErrOutOfBounds is returned when a region does not fit in the client area.
var ErrOutOfBounds = errors.New("region outside client area")

// Error is a capture failure for a single region.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Capturer copies a window region into an owned RGB buffer.
type Capturer struct{}

// New returns a Capturer.
func New() *Capturer { return &Capturer{} }

// Capture reads rect, relative to the client area of win.
func (c *Capturer) Capture(win window.Window, rect fields.Rect) (*raster.Image, error) {
	if win == nil {
		return nil, &Error{Op: "window", Err: errors.New("nil window")}
	}
	if err := rect.Validate(); err != nil {
		return nil, &Error{Op: "region", Err: err}
	}
	if win.Minimized() {
		return nil, &Error{Op: "window", Err: ErrMinimized}
	}
	client, err := win.ClientBounds()
	if err != nil {
		return nil, &Error{Op: "bounds", Err: err}
	}
	if !rect.WithinBounds(client.Dx(), client.Dy()) {
		return nil, &Error{Op: "region", Err: fmt.Errorf("%w: %s in %dx%d", ErrOutOfBounds, rect, client.Dx(), client.Dy())}
	}
	img, err := win.Grab(rect.Image())
	if err != nil {
		return nil, &Error{Op: "grab", Err: err}
	}
	out := raster.FromImage(img)
	if err := out.Validate(); err != nil {
		return nil, &Error{Op: "grab", Err: err}
	}
	return out, nil
}
