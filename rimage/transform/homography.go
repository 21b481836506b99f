// Package transform provides the projective and lens-distortion geometry
// used to rectify fiducial candidates: homography estimation and
// refinement, pinhole camera models, and point-transform composition.
package transform

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix used to transform a plane from the perspective
// of one 2D camera to the perspective of another. It is defined up to an
// overall scale. Indices are [row][column].
type Homography [3][3]float64

// NewHomography creates a Homography from a row-major slice of 9 values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	h := Homography{
		{vals[0], vals[1], vals[2]},
		{vals[3], vals[4], vals[5]},
		{vals[6], vals[7], vals[8]},
	}
	return &h, nil
}

// At returns the value of the homography at the given index.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Apply transforms the given point according to the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Transform is Apply in PointTransform form.
func (h *Homography) Transform(x, y float64) (float64, float64) {
	pt := h.Apply(r2.Point{X: x, Y: y})
	return pt.X, pt.Y
}

// Mat returns the homography as a gonum dense matrix.
func (h *Homography) Mat() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}

// Inverse returns the inverse homography, i.e. the transform from the
// destination plane back to the source plane.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Mat()); err != nil {
		return nil, errors.Wrap(err, "homography is not invertible")
	}
	return NewHomography(append([]float64{}, inv.RawMatrix().Data...))
}
