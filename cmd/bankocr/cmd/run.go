package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/recognizer"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// engineFactory builds the engine selected by ocr.engine.
type engineFactory func(cfg *config.Config, logger *slog.Logger) (engine.Engine, error)

// newEngine is replaced in tests.
var newEngine engineFactory = buildEngine

// addOCRFlags adds the engine and correction flags shared by every
// command that runs extractions.
func addOCRFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	cmd.Flags().String("engine", defaults.OCR.Engine, "OCR engine (cli, gosseract)")
	cmd.Flags().String("tesseract-path", defaults.OCR.TesseractPath, "tesseract executable for the cli engine")
	cmd.Flags().String("tessdata-dir", "", "directory containing traineddata files")
	cmd.Flags().Int("psm", defaults.OCR.PageSegMode, "Tesseract page segmentation mode")
	cmd.Flags().String("corrections", "", "YAML or text file (pattern = replacement, or TAB-separated) with additional correction rules")
	cmd.Flags().String("debug-dir", "", "save every preprocessed field image into this directory")

	bindFlag(cmd.Flags(), "engine", "ocr.engine")
	bindFlag(cmd.Flags(), "tesseract-path", "ocr.tesseract_path")
	bindFlag(cmd.Flags(), "tessdata-dir", "ocr.tessdata_dir")
	bindFlag(cmd.Flags(), "psm", "ocr.page_seg_mode")
	bindFlag(cmd.Flags(), "corrections", "corrections_file")
	bindFlag(cmd.Flags(), "debug-dir", "output.debug_dir")
}

// addOutputFlags adds the result formatting flags.
func addOutputFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	cmd.Flags().StringP("format", "f", defaults.Output.Format, "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "also write the result to this file")
	cmd.Flags().String("separator", defaults.Output.Separator, "separator between fields in text output")
	cmd.Flags().Bool("progress", false, "print per-field progress to stderr")

	bindFlag(cmd.Flags(), "format", "output.format")
	bindFlag(cmd.Flags(), "output", "output.file")
	bindFlag(cmd.Flags(), "separator", "output.separator")
}

// newRunner wires eng and loc into a pipeline runner. activate is combined
// with window.activate.
func newRunner(cfg *config.Config, eng engine.Engine, loc window.Locator, activate bool,
	obs pipeline.Observer,
) *pipeline.Runner {
	logger := slog.Default()
	opts := cfg.ToRunnerOptions(logger)
	opts.Activate = opts.Activate && activate
	opts.Observer = obs
	return pipeline.NewRunner(loc, recognizer.New(eng, cfg.ToRecognizerConfig(), logger), opts)
}

// newObserver logs every transition at debug level and, with --progress,
// prints finished fields to stderr.
func newObserver(cmd *cobra.Command) pipeline.Observer {
	obs := pipeline.NewMultiObserver(pipeline.NewLogObserver(slog.Default(), slog.LevelDebug))
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		obs.Add(pipeline.NewConsoleObserver(cmd.ErrOrStderr(), ""))
	}
	return obs
}

// extractAndReport runs one extraction and writes its result. A run without
// a result returns its error unchanged; failed fields yield ErrPartialResult
// after the result has been written.
func extractAndReport(ctx context.Context, cmd *cobra.Command, runner *pipeline.Runner, req pipeline.Request,
	opts pipeline.ReportOptions, obs pipeline.Observer,
) error {
	res, runErr := runner.Run(ctx, req)
	if res == nil {
		return runErr
	}
	if err := pipeline.Report(cmd.OutOrStdout(), res, opts, obs); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d fields failed", ErrPartialResult, len(failed), res.Len())
	}
	return nil
}
