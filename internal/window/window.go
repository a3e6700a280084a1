// Package window finds the application window the fields are read from and
// exposes its client area as pixels.
package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrNotFound is wrapped by every NotFoundError.
var ErrNotFound = errors.New("window not found")

// ErrUnsupported is returned by the system locator on platforms without a
// window backend.
var ErrUnsupported = errors.New("window lookup is not supported on this platform")

// NotFoundError reports that no visible window matched the title.
type NotFoundError struct {
	Title string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no window matching %q", e.Title)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Window is a handle to a located window.
//
// ClientBounds is in screen coordinates. Grab takes a rectangle relative to
// the client area origin and returns a copy of those pixels.
type Window interface {
	Title() string
	ClientBounds() (image.Rectangle, error)
	Minimized() bool
	Activate() error
	Grab(r image.Rectangle) (image.Image, error)
}

// Locator finds a window by title substring.
type Locator interface {
	Locate(ctx context.Context, title string) (Window, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, title string) (Window, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, title string) (Window, error) { return f(ctx, title) }

// MatchTitle reports whether query is a case-insensitive substring of title.
// An empty query never matches.
func MatchTitle(title, query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(q))
}
