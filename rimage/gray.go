// Package rimage provides the single-channel image storage and resampling
// primitives used by the fiducial pipeline.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Gray is a single-channel float32 image. Intensities are kept in whatever
// range the producer used (0-255 for images converted from image.Image,
// 0/1 for binary images).
type Gray struct {
	data          []float32
	width, height int
}

// NewGray returns a zeroed Gray image of the given dimensions.
func NewGray(width, height int) *Gray {
	return &Gray{
		data:   make([]float32, width*height),
		width:  width,
		height: height,
	}
}

// GrayFromImage converts any image.Image into a Gray using the standard
// luma coefficients.
func GrayFromImage(img image.Image) *Gray {
	bounds := img.Bounds()
	g := NewGray(bounds.Dx(), bounds.Dy())
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			g.data[y*g.width+x] = float32(c.Y)
		}
	}
	return g
}

func (g *Gray) kxy(x, y int) int {
	return y*g.width + x
}

// Width returns the horizontal dimension in pixels.
func (g *Gray) Width() int {
	return g.width
}

// Height returns the vertical dimension in pixels.
func (g *Gray) Height() int {
	return g.height
}

// Bounds returns the image bounds.
func (g *Gray) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// In reports whether (x,y) lies inside the image.
func (g *Gray) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// GetXY returns the intensity at (x,y). The caller must stay in bounds.
func (g *Gray) GetXY(x, y int) float32 {
	return g.data[g.kxy(x, y)]
}

// SetXY sets the intensity at (x,y). The caller must stay in bounds.
func (g *Gray) SetXY(x, y int, v float32) {
	g.data[g.kxy(x, y)] = v
}

// Clear zeroes every pixel, keeping the backing storage.
func (g *Gray) Clear() {
	for i := range g.data {
		g.data[i] = 0
	}
}

// Reshape resizes the image to the given dimensions, reusing the backing
// storage when it is large enough. Contents are undefined afterwards.
func (g *Gray) Reshape(width, height int) {
	n := width * height
	if cap(g.data) < n {
		g.data = make([]float32, n)
	}
	g.data = g.data[:n]
	g.width = width
	g.height = height
}

// Mean returns the average intensity of the image.
func (g *Gray) Mean() float64 {
	var sum float64
	for _, v := range g.data {
		sum += float64(v)
	}
	return sum / float64(len(g.data))
}

// ToImage converts to a stdlib image.Gray, clamping intensities to [0,255].
func (g *Gray) ToImage() *image.Gray {
	out := image.NewGray(g.Bounds())
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			v := g.GetXY(x, y)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return out
}

// SameSize compares two Gray images for equal dimensions.
func SameSize(a, b *Gray) bool {
	return a.width == b.width && a.height == b.height
}

// Threshold fills dst with 1 where the source intensity is strictly below
// the given value and 0 elsewhere, so dark marker pixels become 1. dst is
// reshaped to match src.
func Threshold(src, dst *Gray, value float64) error {
	if src == nil || dst == nil {
		return errors.New("source and destination images must not be nil")
	}
	dst.Reshape(src.width, src.height)
	for i, v := range src.data {
		if float64(v) < value {
			dst.data[i] = 1
		} else {
			dst.data[i] = 0
		}
	}
	return nil
}
