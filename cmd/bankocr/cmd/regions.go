package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bankocr/internal/utils"
)

// regionsCmd draws the configured field rectangles onto a screenshot.
var regionsCmd = &cobra.Command{
	Use:   "regions <screenshot>",
	Short: "Draw the configured field regions onto a screenshot",
	Long: `Outline every configured field region on a screenshot of the application's
client area so the layout can be checked before running an extraction.

Examples:
  bankocr regions screenshot.png
  bankocr regions screenshot.png --out layout.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRegions,
}

func init() {
	regionsCmd.Flags().String("out", "", "output image (default <screenshot>_regions.png)")
	regionsCmd.Flags().Int("thickness", 2, "outline thickness in pixels")
	rootCmd.AddCommand(regionsCmd)
}

func runRegions(cmd *cobra.Command, args []string) error {
	cfg, err := validConfig()
	if err != nil {
		return err
	}
	specs, err := cfg.FieldSpecs()
	if err != nil {
		return err
	}

	path := args[0]
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	regions := make([]utils.Region, 0, len(specs))
	for _, spec := range specs {
		regions = append(regions, utils.Region{Label: spec.ID.Label(), Rect: spec.Rect.Image()})

		status := "ok"
		if !spec.Rect.WithinBounds(meta.Width, meta.Height) {
			status = "outside image"
			slog.Warn("Region exceeds screenshot", "field", spec.ID.String(), "region", spec.Rect.String(),
				"width", meta.Width, "height", meta.Height)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-16s %s\n", spec.ID.Label(), spec.Rect.String(), status)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + "_regions.png"
	}
	thickness, _ := cmd.Flags().GetInt("thickness")
	if err := utils.SavePNG(out, utils.DrawRegions(img, regions, thickness)); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
