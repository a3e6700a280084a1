// Package preprocess turns a captured field region into a two-tone image
// sized for OCR.
//
// The steps run in a fixed order: border crop, grayscale, optional blur,
// binarization, morphological noise removal and scaling. Apply never
// mutates its input.
package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/bankocr/internal/raster"
)

// Error reports which preprocessing step failed.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("preprocess %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Apply runs the full preprocessing sequence and returns a new 1-channel
// image containing only 0 (ink) and 255 (paper).
func Apply(img *raster.Image, cfg Config) (*raster.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, &Error{Step: "input", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Step: "config", Err: err}
	}

	src := img.ToImage()
	if !cfg.Crop.IsZero() {
		c := cfg.Crop
		r := image.Rect(c.Left, c.Top, img.Width-c.Right, img.Height-c.Bottom)
		if r.Dx() <= 0 || r.Dy() <= 0 {
			return nil, &Error{Step: "crop", Err: fmt.Errorf("crop %+v leaves nothing of %dx%d", c, img.Width, img.Height)}
		}
		src = imaging.Crop(src, r)
	}

	grayImg := imaging.Grayscale(src)
	if cfg.BlurSigma > 0 {
		grayImg = imaging.Blur(grayImg, cfg.BlurSigma)
	}
	gray := toGray(grayImg)

	var bin *raster.Image
	switch cfg.ThresholdMode {
	case ThresholdFixed:
		bin = binarizeGlobal(gray, cfg.FixedThreshold)
	case ThresholdOtsu:
		bin = binarizeGlobal(gray, OtsuThreshold(gray.Pix))
	case ThresholdAdaptive:
		bin = binarizeAdaptive(gray, cfg.AdaptiveBlockSize, cfg.AdaptiveC)
	}

	bin = Morphology(bin, cfg.MorphOp, cfg.KernelSize)

	w, h := OutputSize(bin.Width, bin.Height, cfg)
	out, err := scale(bin, w, h, cfg.Interpolation)
	if err != nil {
		return nil, &Error{Step: "scale", Err: err}
	}
	return out, nil
}

// OutputSize returns the dimensions Apply produces for a w x h image after
// cropping. TargetHeight, when set, takes precedence over ScaleFactor and
// the width is capped at MaxWidth keeping the aspect ratio.
func OutputSize(w, h int, cfg Config) (int, int) {
	s := cfg.ScaleFactor
	if cfg.TargetHeight > 0 {
		s = float64(cfg.TargetHeight) / float64(h)
		if cfg.MaxWidth > 0 && float64(w)*s > float64(cfg.MaxWidth) {
			s = float64(cfg.MaxWidth) / float64(w)
		}
	}
	return outputDim(float64(w) * s), outputDim(float64(h) * s)
}

// Output limits; scale rejects anything above maxOutputPixels.
const (
	maxOutputSide   = 1 << 20
	maxOutputPixels = 64 << 20
)

func outputDim(f float64) int {
	if math.IsNaN(f) || f > maxOutputSide {
		return maxOutputSide
	}
	return max(1, int(math.Round(f)))
}

func scale(bin *raster.Image, w, h int, interp Interpolation) (*raster.Image, error) {
	if w == bin.Width && h == bin.Height {
		return bin, nil
	}
	if w <= 0 || h <= 0 || w > maxOutputPixels/h {
		return nil, fmt.Errorf("scaled image %dx%d too large", w, h)
	}

	filter := imaging.NearestNeighbor
	if interp == InterpArea {
		filter = imaging.Box
	}
	out := toGray(imaging.Resize(bin.ToImage(), w, h, filter))
	if interp == InterpArea {
		for i, v := range out.Pix {
			if v >= 128 {
				out.Pix[i] = paper
			} else {
				out.Pix[i] = ink
			}
		}
	}
	return out, nil
}
