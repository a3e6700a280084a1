package utils

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Region is a labelled rectangle drawn by DrawRegions.
type Region struct {
	Label string
	Rect  image.Rectangle
}

// RegionColors cycles through distinguishable outline colours.
var RegionColors = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
}

// CropImageRect crops an image to the given rectangle.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawRegions returns a copy of img with every region outlined and its
// label written above the top-left corner.
func DrawRegions(img image.Image, regions []Region, thickness int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	face := basicfont.Face7x13
	for i, r := range regions {
		col := RegionColors[i%len(RegionColors)]
		DrawRect(out, r.Rect, col, thickness)
		if r.Label == "" {
			continue
		}
		y := r.Rect.Min.Y - 2
		if y-face.Metrics().Ascent.Ceil() < 0 {
			y = r.Rect.Max.Y + face.Metrics().Ascent.Ceil() + 1
		}
		d := &font.Drawer{Dst: out, Src: image.NewUniform(col), Face: face, Dot: fixed.P(r.Rect.Min.X, y)}
		d.DrawString(r.Label)
	}
	return out
}
