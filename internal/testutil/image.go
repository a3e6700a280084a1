package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

// TextImageConfig holds configuration for generating a single text box.
type TextImageConfig struct {
	Text       string
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTextImageConfig returns black 7x13 text on white.
func DefaultTextImageConfig() TextImageConfig {
	return TextImageConfig{
		Text:       "0001",
		Width:      120,
		Height:     24,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage renders config.Text left-aligned and vertically centred.
func GenerateTextImage(config TextImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	drawText(img, image.Pt(4, 0), config.Height, config.Text, config.Foreground, config.FontFace)
	return img
}

func drawText(dst draw.Image, origin image.Point, boxHeight int, text string, fg color.Color, face font.Face) {
	if face == nil {
		face = basicfont.Face7x13
	}
	drawer := &font.Drawer{Dst: dst, Src: &image.Uniform{fg}, Face: face}
	textHeight := face.Metrics().Ascent.Ceil()
	drawer.Dot = fixed.P(origin.X, origin.Y+(boxHeight+textHeight)/2)
	drawer.DrawString(text)
}

// FieldBox is one labelled field drawn on a fake application window.
type FieldBox struct {
	ID   fields.ID
	Rect fields.Rect
	Text string
}

// DefaultLayout returns the rectangles used by the synthetic window.
func DefaultLayout() map[fields.ID]fields.Rect {
	return map[fields.ID]fields.Rect{
		fields.BankCode:   {X: 120, Y: 20, Width: 100, Height: 24},
		fields.BankName:   {X: 120, Y: 60, Width: 240, Height: 24},
		fields.BranchCode: {X: 120, Y: 100, Width: 100, Height: 24},
		fields.BranchName: {X: 120, Y: 140, Width: 240, Height: 24},
	}
}

// DefaultSpecs returns field specs for DefaultLayout in extraction order.
func DefaultSpecs() []fields.Spec {
	layout := DefaultLayout()
	specs := make([]fields.Spec, 0, len(fields.All))
	for _, id := range fields.All {
		specs = append(specs, fields.NewSpec(id, layout[id]))
	}
	return specs
}

// WindowScreenshot draws a 400x190 light-gray form with a white, bordered
// input box per field containing its text.
func WindowScreenshot(boxes []FieldBox) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 400, 190))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{236, 236, 236, 255}}, image.Point{}, draw.Src)
	border := color.RGBA{120, 120, 120, 255}
	for _, b := range boxes {
		r := b.Rect.Image()
		draw.Draw(img, r, &image.Uniform{border}, image.Point{}, draw.Src)
		draw.Draw(img, r.Inset(1), &image.Uniform{color.White}, image.Point{}, draw.Src)
		drawText(img, image.Pt(r.Min.X+4, r.Min.Y), r.Dy(), b.Text, color.Black, basicfont.Face7x13)
		drawText(img, image.Pt(8, r.Min.Y), r.Dy(), b.ID.Label(), color.Black, basicfont.Face7x13)
	}
	return img
}

// DefaultWindowScreenshot draws the default layout with sample values.
func DefaultWindowScreenshot() *image.RGBA {
	layout := DefaultLayout()
	texts := map[fields.ID]string{
		fields.BankCode:   "0005",
		fields.BankName:   "MUFG BANK",
		fields.BranchCode: "001",
		fields.BranchName: "HONTEN",
	}
	boxes := make([]FieldBox, 0, len(fields.All))
	for _, id := range fields.All {
		boxes = append(boxes, FieldBox{ID: id, Rect: layout[id], Text: texts[id]})
	}
	return WindowScreenshot(boxes)
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()
	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}
