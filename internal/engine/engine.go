// Package engine defines the OCR engine boundary and the Tesseract
// command-line implementation.
package engine

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	// ErrNoText is returned when the engine produced only whitespace.
	ErrNoText = errors.New("no text recognized")
	// ErrUnavailable is returned when the engine cannot be started at all.
	ErrUnavailable = errors.New("ocr engine unavailable")
)

// Page segmentation modes understood by Tesseract.
const (
	PSMSingleBlock = 6
	PSMSingleLine  = 7
)

// Digits is the whitelist used for numeric fields.
const Digits = "0123456789"

// Hint carries per-call recognition settings.
type Hint struct {
	Languages               []string
	PageSegMode             int
	PreserveInterwordSpaces bool
	CharWhitelist           string
}

// LanguageArg joins the languages the way Tesseract expects ("eng+jpn").
// An empty list means English.
func (h Hint) LanguageArg() string {
	if len(h.Languages) == 0 {
		return "eng"
	}
	return strings.Join(h.Languages, "+")
}

// Engine recognizes the text in one preprocessed image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, hint Hint) (string, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, img image.Image, hint Hint) (string, error)

// Recognize calls f.
func (f Func) Recognize(ctx context.Context, img image.Image, hint Hint) (string, error) {
	return f(ctx, img, hint)
}
