//go:build windows

package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/kbinani/screenshot"
	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows          = user32.NewProc("EnumWindows")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procIsIconic             = user32.NewProc("IsIconic")
	procGetClientRect        = user32.NewProc("GetClientRect")
	procClientToScreen       = user32.NewProc("ClientToScreen")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procShowWindow           = user32.NewProc("ShowWindow")
)

const swRestore = 9

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

// Callbacks created by NewCallback are never released, so a single one is
// shared and enumeration is serialised.
var (
	enumMu       sync.Mutex
	enumHandles  []uintptr
	enumCallback = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		enumHandles = append(enumHandles, hwnd)
		return 1
	})
)

func topLevelWindows() ([]uintptr, error) {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumHandles = enumHandles[:0]
	r, _, err := procEnumWindows.Call(enumCallback, 0)
	if r == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	out := make([]uintptr, len(enumHandles))
	copy(out, enumHandles)
	return out, nil
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf))) //nolint:errcheck
	return windows.UTF16ToString(buf)
}

// SystemLocator enumerates visible top-level windows through user32.
type SystemLocator struct {
	logger *slog.Logger
}

// NewSystemLocator returns the platform locator.
func NewSystemLocator(logger *slog.Logger) *SystemLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemLocator{logger: logger}
}

// Locate returns the first visible window whose title contains title.
func (l *SystemLocator) Locate(ctx context.Context, title string) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := topLevelWindows()
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		if visible, _, _ := procIsWindowVisible.Call(h); visible == 0 {
			continue
		}
		text := windowText(h)
		if MatchTitle(text, title) {
			l.logger.Debug("window located", "title", text, "hwnd", h)
			return &systemWindow{hwnd: h, title: text}, nil
		}
	}
	return nil, &NotFoundError{Title: title}
}

type systemWindow struct {
	hwnd  uintptr
	title string
}

func (w *systemWindow) Title() string { return w.title }

func (w *systemWindow) ClientBounds() (image.Rectangle, error) {
	var r winRect
	if ok, _, err := procGetClientRect.Call(w.hwnd, uintptr(unsafe.Pointer(&r))); ok == 0 {
		return image.Rectangle{}, fmt.Errorf("GetClientRect: %w", err)
	}
	var origin winPoint
	if ok, _, err := procClientToScreen.Call(w.hwnd, uintptr(unsafe.Pointer(&origin))); ok == 0 {
		return image.Rectangle{}, fmt.Errorf("ClientToScreen: %w", err)
	}
	x, y := int(origin.X), int(origin.Y)
	return image.Rect(x, y, x+int(r.Right-r.Left), y+int(r.Bottom-r.Top)), nil
}

func (w *systemWindow) Minimized() bool {
	iconic, _, _ := procIsIconic.Call(w.hwnd)
	return iconic != 0
}

func (w *systemWindow) Activate() error {
	if w.Minimized() {
		procShowWindow.Call(w.hwnd, swRestore) //nolint:errcheck
	}
	if ok, _, _ := procSetForegroundWindow.Call(w.hwnd); ok == 0 {
		return errors.New("SetForegroundWindow refused")
	}
	return nil
}

// Grab captures r, relative to the client origin, from the screen.
func (w *systemWindow) Grab(r image.Rectangle) (image.Image, error) {
	client, err := w.ClientBounds()
	if err != nil {
		return nil, err
	}
	return screenshot.CaptureRect(r.Add(client.Min))
}
