// Package raster holds the owned pixel buffers passed between pipeline stages.
//
// A stage that receives an *Image owns it until it hands a new *Image to the
// next stage; stages never write into a buffer they did not allocate.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Image is a tightly packed 8-bit pixel buffer with 1 (gray) or 3 (RGB) channels.
type Image struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

// ErrEmpty is returned when an image has no pixels.
var ErrEmpty = errors.New("image is empty")

// NewGray allocates a single-channel image filled with zeros.
func NewGray(w, h int) *Image {
	return &Image{Pix: make([]uint8, w*h), Width: w, Height: h, Channels: 1}
}

// FromImage copies img into a new 3-channel RGB buffer. Alpha is discarded.
func FromImage(img image.Image) *Image {
	if img == nil {
		return &Image{Channels: 3}
	}
	b := img.Bounds()
	out := &Image{Pix: make([]uint8, b.Dx()*b.Dy()*3), Width: b.Dx(), Height: b.Dy(), Channels: 3}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Pix[i] = c.R
			out.Pix[i+1] = c.G
			out.Pix[i+2] = c.B
			i += 3
		}
	}
	return out
}

// FromGray copies an *image.Gray into a new single-channel buffer.
func FromGray(g *image.Gray) *Image {
	b := g.Bounds()
	out := NewGray(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		copy(out.Pix[y*out.Width:], row)
	}
	return out
}

// Validate checks that the buffer is non-empty and consistent with its metadata.
func (m *Image) Validate() error {
	if m == nil {
		return errors.New("image is nil")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrEmpty, m.Width, m.Height)
	}
	if m.Channels != 1 && m.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(m.Pix), m.Width*m.Height*m.Channels)
	}
	return nil
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Pix: pix, Width: m.Width, Height: m.Height, Channels: m.Channels}
}

// At returns the value of channel c at (x, y).
func (m *Image) At(x, y, c int) uint8 {
	return m.Pix[(y*m.Width+x)*m.Channels+c]
}

// ToImage wraps a copy of the buffer in a standard library image:
// *image.Gray for one channel, *image.NRGBA for three.
func (m *Image) ToImage() image.Image {
	r := image.Rect(0, 0, m.Width, m.Height)
	if m.Channels == 1 {
		g := image.NewGray(r)
		copy(g.Pix, m.Pix)
		return g
	}
	out := image.NewNRGBA(r)
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		out.Pix[j] = m.Pix[i]
		out.Pix[j+1] = m.Pix[i+1]
		out.Pix[j+2] = m.Pix[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}

// IsBinary reports whether a single-channel image only holds 0 and 255.
func (m *Image) IsBinary() bool {
	if m.Channels != 1 {
		return false
	}
	for _, v := range m.Pix {
		if v != 0 && v != 255 {
			return false
		}
	}
	return true
}
