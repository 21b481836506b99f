// Package fiducial locates planar square fiducial markers in a camera
// image and recovers each marker's identity, in-plane orientation, and 3D
// pose relative to the camera.
package fiducial

import "github.com/golang/geo/r2"

// Quadrilateral is a four-cornered marker candidate. Corner A pairs with
// the rectified patch origin and the sequence A,B,C,D traces the outline
// visually clockwise on screen, which is counter-clockwise in the
// mathematical y-up convention. All winding checks in this package refer to
// the mathematical convention.
type Quadrilateral struct {
	A, B, C, D r2.Point
}

// Corners returns the corner points in label order.
func (q *Quadrilateral) Corners() [4]r2.Point {
	return [4]r2.Point{q.A, q.B, q.C, q.D}
}

// rotateCornersOnce shifts the corner labels one step: (A,B,C,D) <- (B,C,D,A).
func (q *Quadrilateral) rotateCornersOnce() {
	q.A, q.B, q.C, q.D = q.B, q.C, q.D, q.A
}

// NormalizeOrientation relabels the corners so that corner A corresponds to
// canonical corner 0 of the unrotated pattern, given the decoder's rotation
// index: the number of quarter turns, in the visual clockwise sense, by
// which the pattern was rotated when read. Visual clockwise is
// counter-clockwise on the coordinate grid, so the labels are shifted
// (4-rotation)%4 times rather than rotation times; applying the rotation
// index directly would yield correctly identified but wrongly oriented
// markers for every rotation other than 0.
func (q *Quadrilateral) NormalizeOrientation(rotation int) {
	steps := (((4-rotation)%4)+4) % 4
	for i := 0; i < steps; i++ {
		q.rotateCornersOnce()
	}
}

// ApplyTransform maps every corner through tf in place.
func (q *Quadrilateral) ApplyTransform(tf func(x, y float64) (float64, float64)) {
	q.A.X, q.A.Y = tf(q.A.X, q.A.Y)
	q.B.X, q.B.Y = tf(q.B.X, q.B.Y)
	q.C.X, q.C.Y = tf(q.C.X, q.C.Y)
	q.D.X, q.D.Y = tf(q.D.X, q.D.Y)
}
