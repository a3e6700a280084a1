//go:build gosseract

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/engine/tesseract"
)

func buildEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.OCR.Engine {
	case config.EngineCLI, "":
		return cfg.NewCLIEngine(logger), nil
	case config.EngineGosseract:
		logger.Debug("Using in-process tesseract", "tessdata_dir", cfg.OCR.TessdataDir)
		return tesseract.New(cfg.OCR.TessdataDir), nil
	default:
		return nil, fmt.Errorf("unknown ocr.engine: %s", cfg.OCR.Engine)
	}
}
