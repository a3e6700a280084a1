package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/bankocr/internal/capture"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/raster"
	"github.com/MeKo-Tech/bankocr/internal/utils"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// RecognitionError is returned when the engine fails or reads nothing for a field.
type RecognitionError struct {
	Field fields.ID
	Err   error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognize %s: %v", e.Field, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Config holds recognizer settings shared by all fields.
type Config struct {
	PageSegMode int    // Tesseract page segmentation mode (default 6, single block)
	DebugDir    string // when set, captured and processed images are written here
}

// DefaultConfig returns the single-block page segmentation setup.
func DefaultConfig() Config {
	return Config{PageSegMode: engine.PSMSingleBlock}
}

// Stage identifies the step a field is in while being recognized.
type Stage string

const (
	StageCapturing     Stage = "capturing"
	StagePreprocessing Stage = "preprocessing"
	StageRecognizing   Stage = "recognizing"
)

// Recognizer reads a single field: capture, preprocess, one engine call.
type Recognizer struct {
	config   Config
	capturer *capture.Capturer
	engine   engine.Engine
	logger   *slog.Logger

	// OnStage, when set, is called as each stage starts.
	OnStage func(field fields.ID, stage Stage)
}

// New returns a Recognizer using eng for text recognition.
func New(eng engine.Engine, cfg Config, logger *slog.Logger) *Recognizer {
	if cfg.PageSegMode <= 0 {
		cfg.PageSegMode = engine.PSMSingleBlock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{config: cfg, capturer: capture.New(), engine: eng, logger: logger}
}

// HintFor builds the engine hint for a field.
func (r *Recognizer) HintFor(spec fields.Spec) engine.Hint {
	langs := spec.Languages
	if len(langs) == 0 {
		langs = fields.DefaultLanguages(spec.ID)
	}
	h := engine.Hint{
		Languages:               langs,
		PageSegMode:             r.config.PageSegMode,
		PreserveInterwordSpaces: true,
	}
	if spec.Kind == fields.KindDigits {
		h.CharWhitelist = engine.Digits
	}
	return h
}

// Recognize returns the raw engine text for one field. Capture and
// preprocess errors are returned unchanged; engine failures and blank
// output come back as *RecognitionError.
func (r *Recognizer) Recognize(ctx context.Context, spec fields.Spec, win window.Window, cfg preprocess.Config) (string, error) {
	r.stage(spec.ID, StageCapturing)
	img, err := r.capturer.Capture(win, spec.Rect)
	if err != nil {
		return "", err
	}
	r.dump(spec.ID, "captured", img)

	r.stage(spec.ID, StagePreprocessing)
	processed, err := preprocess.Apply(img, cfg)
	if err != nil {
		return "", err
	}
	r.dump(spec.ID, "processed", processed)

	r.stage(spec.ID, StageRecognizing)
	text, err := r.engine.Recognize(ctx, processed.ToImage(), r.HintFor(spec))
	if err != nil {
		return "", &RecognitionError{Field: spec.ID, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &RecognitionError{Field: spec.ID, Err: engine.ErrNoText}
	}
	return text, nil
}

func (r *Recognizer) stage(id fields.ID, s Stage) {
	if r.OnStage != nil {
		r.OnStage(id, s)
	}
}

func (r *Recognizer) dump(id fields.ID, suffix string, img *raster.Image) {
	if r.config.DebugDir == "" {
		return
	}
	path := filepath.Join(r.config.DebugDir, fmt.Sprintf("%s_%s.png", id, suffix))
	if err := utils.SavePNG(path, img.ToImage()); err != nil {
		r.logger.Warn("failed to write debug image", "path", path, "error", err)
	}
}

// IsRecognitionError reports whether err is a recognition failure.
func IsRecognitionError(err error) bool {
	var re *RecognitionError
	return errors.As(err, &re)
}
