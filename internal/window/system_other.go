//go:build !windows

package window

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// SystemLocator looks up live windows. Only Windows has a backend; elsewhere
// every lookup fails with ErrUnsupported.
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

func (l *SystemLocator) Locate(ctx context.Context, title string) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.logger.Debug("system window lookup unavailable", "os", runtime.GOOS, "title", title)
	return nil, fmt.Errorf("%w (%s)", ErrUnsupported, runtime.GOOS)
}
