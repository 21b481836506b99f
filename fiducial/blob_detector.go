package fiducial

import (
	"image"

	"github.com/golang/geo/r2"

	"github.com/markervision/fiducial/rimage"
	"github.com/markervision/fiducial/rimage/transform"
)

// BlobQuadDetector proposes quadrilateral candidates by finding connected
// dark components in the binary image and taking their extreme corners
// (minima and maxima of x+y and x-y). It works well for roughly upright
// convex squares with clean segmentation; heavily rotated or occluded
// markers need a contour-based detector behind the same interface.
type BlobQuadDetector struct {
	// MinArea is the smallest component size, in pixels, kept as a candidate.
	MinArea int

	distToUndist transform.PointTransform
}

// NewBlobQuadDetector returns a detector that ignores components smaller
// than minArea pixels.
func NewBlobQuadDetector(minArea int) *BlobQuadDetector {
	return &BlobQuadDetector{MinArea: minArea}
}

// Sides returns 4; this detector only proposes quadrilaterals.
func (d *BlobQuadDetector) Sides() int {
	return 4
}

// Clockwise returns false: corners are emitted counter-clockwise in the
// mathematical sense (visually clockwise).
func (d *BlobQuadDetector) Clockwise() bool {
	return false
}

// SetLensDistortion stores the distorted-to-undistorted map so emitted
// corners land in the undistorted frame.
func (d *BlobQuadDetector) SetLensDistortion(width, height int, distToUndist, undistToDist transform.PointTransform) {
	d.distToUndist = distToUndist
}

// Detect finds connected dark components and emits their extreme corners.
func (d *BlobQuadDetector) Detect(gray, binary *rimage.Gray) []Quadrilateral {
	width, height := binary.Width(), binary.Height()
	visited := make([]bool, width*height)
	var quads []Quadrilateral
	var queue []image.Point

	for sy := 0; sy < height; sy++ {
		for sx := 0; sx < width; sx++ {
			if visited[sy*width+sx] || binary.GetXY(sx, sy) == 0 {
				continue
			}

			// flood fill one component, tracking its extreme corners
			area := 0
			topLeft := image.Point{sx, sy}     // min x+y
			bottomRight := image.Point{sx, sy} // max x+y
			topRight := image.Point{sx, sy}    // max x-y
			bottomLeft := image.Point{sx, sy}  // min x-y

			visited[sy*width+sx] = true
			queue = append(queue[:0], image.Point{sx, sy})
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				area++

				if p.X+p.Y < topLeft.X+topLeft.Y {
					topLeft = p
				}
				if p.X+p.Y > bottomRight.X+bottomRight.Y {
					bottomRight = p
				}
				if p.X-p.Y > topRight.X-topRight.Y {
					topRight = p
				}
				if p.X-p.Y < bottomLeft.X-bottomLeft.Y {
					bottomLeft = p
				}

				for _, n := range [4]image.Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
					if n.X < 0 || n.Y < 0 || n.X >= width || n.Y >= height {
						continue
					}
					k := n.Y*width + n.X
					if visited[k] || binary.GetXY(n.X, n.Y) == 0 {
						continue
					}
					visited[k] = true
					queue = append(queue, n)
				}
			}

			if area < d.MinArea {
				continue
			}
			q := Quadrilateral{
				A: r2.Point{X: float64(topLeft.X), Y: float64(topLeft.Y)},
				B: r2.Point{X: float64(topRight.X), Y: float64(topRight.Y)},
				C: r2.Point{X: float64(bottomRight.X), Y: float64(bottomRight.Y)},
				D: r2.Point{X: float64(bottomLeft.X), Y: float64(bottomLeft.Y)},
			}
			if degenerateQuad(&q) {
				continue
			}
			if d.distToUndist != nil {
				q.ApplyTransform(d.distToUndist)
			}
			quads = append(quads, q)
		}
	}
	return quads
}

// degenerateQuad reports whether any two corners coincide, which happens
// for thin or tiny components.
func degenerateQuad(q *Quadrilateral) bool {
	c := q.Corners()
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if c[i].Sub(c[j]).Norm() < 1 {
				return true
			}
		}
	}
	return false
}
