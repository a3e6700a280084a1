package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bankocr/internal/utils"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// imageCmd reads the fields from saved window screenshots.
var imageCmd = &cobra.Command{
	Use:   "image <screenshot>...",
	Short: "Read the bank fields from saved window screenshots",
	Long: `Run the extraction on screenshots of the application's client area instead
of the live window. Field regions are taken relative to the top-left corner of
each image. Every screenshot produces one result.

Examples:
  bankocr image screenshot.png
  bankocr image a.png b.png --format csv --output results.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImage,
}

func init() {
	addOCRFlags(imageCmd)
	addOutputFlags(imageCmd)
	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := validConfig()
	if err != nil {
		return err
	}
	reportOpts, err := cfg.ToReportOptions()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg, slog.Default())
	if err != nil {
		return err
	}
	obs := newObserver(cmd)

	partial := 0
	for i, path := range args {
		img, meta, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		slog.Debug("Loaded screenshot", "path", path, "format", meta.Format, "width", meta.Width, "height", meta.Height)

		title := filepath.Base(path)
		req, err := cfg.ToRequestFor(title)
		if err != nil {
			return err
		}
		runner := newRunner(cfg, eng, window.NewImageLocator(window.NewImageWindow(title, img)), false, obs)

		reportOpts.Append = i > 0
		err = extractAndReport(cmd.Context(), cmd, runner, req, reportOpts, obs)
		switch {
		case errors.Is(err, ErrPartialResult):
			partial++
		case err != nil:
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if partial > 0 {
		return fmt.Errorf("%w in %d of %d screenshots", ErrPartialResult, partial, len(args))
	}
	return nil
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
