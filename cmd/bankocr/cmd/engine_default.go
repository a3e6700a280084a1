//go:build !gosseract

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/engine"
)

func buildEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.OCR.Engine {
	case config.EngineCLI, "":
		return cfg.NewCLIEngine(logger), nil
	case config.EngineGosseract:
		return nil, fmt.Errorf("ocr.engine %q is not available in this build; rebuild with -tags gosseract", cfg.OCR.Engine)
	default:
		return nil, fmt.Errorf("unknown ocr.engine: %s", cfg.OCR.Engine)
	}
}
