package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/bankocr/internal/raster"
)

const (
	paper uint8 = 255
	ink   uint8 = 0
)

// OtsuThreshold picks the gray level that maximises between-class variance
// of the image's 256-bin histogram. Pixels strictly above it are paper.
func OtsuThreshold(gray []uint8) int {
	if len(gray) == 0 {
		return 0
	}

	const bins = 256
	var histogram [bins]int
	for _, v := range gray {
		histogram[v]++
	}
	total := len(gray)

	var sumAll float64
	for i := range bins {
		sumAll += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	best := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return best
}

func binarizeGlobal(gray *raster.Image, t int) *raster.Image {
	out := raster.NewGray(gray.Width, gray.Height)
	for i, v := range gray.Pix {
		if int(v) > t {
			out.Pix[i] = paper
		} else {
			out.Pix[i] = ink
		}
	}
	return out
}

// adaptiveSigma matches the Gaussian weighting conventionally used for a
// block of the given size.
func adaptiveSigma(blockSize int) float64 {
	return 0.3*(float64(blockSize-1)*0.5-1) + 0.8
}

// binarizeAdaptive compares every pixel with its Gaussian-weighted local
// mean minus c.
func binarizeAdaptive(gray *raster.Image, blockSize int, c float64) *raster.Image {
	g := gray.ToImage()
	mean := imaging.Blur(g, adaptiveSigma(blockSize))
	out := raster.NewGray(gray.Width, gray.Height)
	for y := 0; y < gray.Height; y++ {
		for x := 0; x < gray.Width; x++ {
			i := y*gray.Width + x
			local := float64(mean.Pix[y*mean.Stride+x*4])
			if float64(gray.Pix[i]) > math.Round(local)-c {
				out.Pix[i] = paper
			} else {
				out.Pix[i] = ink
			}
		}
	}
	return out
}

// toGray takes the first channel of an imaging result whose channels are equal.
func toGray(img *image.NRGBA) *raster.Image {
	b := img.Bounds()
	out := raster.NewGray(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Width+x] = row[x*4]
		}
	}
	return out
}
