package preprocess

import "github.com/MeKo-Tech/bankocr/internal/raster"

// Morphology applies op with a square kernel to the ink (0) pixels of a
// binary image. Kernel size 1 and MorphNone return a copy.
func Morphology(bin *raster.Image, op MorphOp, kernelSize int) *raster.Image {
	if op == MorphNone || kernelSize <= 1 {
		return bin.Clone()
	}
	w, h := bin.Width, bin.Height
	// Work on an ink mask (ink = 1) so dilate grows strokes.
	mask := make([]uint8, len(bin.Pix))
	for i, v := range bin.Pix {
		if v == ink {
			mask[i] = 1
		}
	}

	switch op {
	case MorphOpening:
		mask = dilateMask(erodeMask(mask, w, h, kernelSize), w, h, kernelSize)
	case MorphClosing:
		mask = erodeMask(dilateMask(mask, w, h, kernelSize), w, h, kernelSize)
	}

	out := raster.NewGray(w, h)
	for i, m := range mask {
		if m == 1 {
			out.Pix[i] = ink
		} else {
			out.Pix[i] = paper
		}
	}
	return out
}

// dilateMask sets a pixel when any in-bounds neighbour under the kernel is set.
func dilateMask(mask []uint8, width, height, kernelSize int) []uint8 {
	result := make([]uint8, len(mask))
	half := kernelSize / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var maxVal uint8
			for ky := -half; ky <= half && maxVal == 0; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < width && ny >= 0 && ny < height && mask[ny*width+nx] == 1 {
						maxVal = 1
						break
					}
				}
			}
			result[y*width+x] = maxVal
		}
	}
	return result
}

// erodeMask keeps a pixel only when every in-bounds neighbour under the
// kernel is set.
func erodeMask(mask []uint8, width, height, kernelSize int) []uint8 {
	result := make([]uint8, len(mask))
	half := kernelSize / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			minVal := uint8(1)
			for ky := -half; ky <= half && minVal == 1; ky++ {
				for kx := -half; kx <= half; kx++ {
					nx, ny := x+kx, y+ky
					if nx >= 0 && nx < width && ny >= 0 && ny < height && mask[ny*width+nx] == 0 {
						minVal = 0
						break
					}
				}
			}
			result[y*width+x] = minVal
		}
	}
	return result
}
