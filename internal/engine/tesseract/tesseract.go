//go:build gosseract

// Package tesseract runs recognition in-process through libtesseract.
// Building it requires the tesseract and leptonica development headers and
// the "gosseract" build tag.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/bankocr/internal/engine"
)

// Engine implements engine.Engine with a fresh gosseract client per call.
type Engine struct {
	TessdataDir string

	clientFactory func() *gosseract.Client
	mu            sync.Mutex
}

// New returns an Engine. tessdataDir may be empty to use the library default.
func New(tessdataDir string) *Engine {
	return &Engine{TessdataDir: tessdataDir, clientFactory: gosseract.NewClient}
}

func (e *Engine) Recognize(ctx context.Context, img image.Image, hint engine.Hint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	// libtesseract initialisation is not safe to run concurrently.
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.clientFactory()
	defer c.Close()

	if e.TessdataDir != "" {
		c.TessdataPrefix = e.TessdataDir
	}
	if err := c.SetLanguage(hint.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if hint.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(hint.PageSegMode)); err != nil {
			return "", fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if hint.PreserveInterwordSpaces {
		if err := c.SetVariable(gosseract.SettableVariable("preserve_interword_spaces"), "1"); err != nil {
			return "", fmt.Errorf("set variable: %w", err)
		}
	}
	if hint.CharWhitelist != "" {
		if err := c.SetWhitelist(hint.CharWhitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %w", engine.ErrUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", engine.ErrNoText
	}
	return text, nil
}
