package rimage

import "math"

// SamplePolicy selects how a Gray image is sampled at non-integer
// coordinates.
type SamplePolicy int

const (
	// NearestNeighbor rounds to the closest pixel.
	NearestNeighbor SamplePolicy = iota
	// Bilinear blends the four surrounding pixels by area.
	Bilinear
)

// clampInt limits v to [0, max-1].
func clampInt(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

// getExtended reads a pixel, extending edge values for out-of-bounds
// coordinates.
func (g *Gray) getExtended(x, y int) float32 {
	return g.GetXY(clampInt(x, g.width), clampInt(y, g.height))
}

// Sample reads the image at a real-valued coordinate under the given
// policy. Out-of-bounds samples take the value of the nearest edge pixel,
// never an undefined one.
func (g *Gray) Sample(x, y float64, policy SamplePolicy) float32 {
	if policy == NearestNeighbor {
		return g.getExtended(int(math.Round(x)), int(math.Round(y)))
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := float32(x - float64(x0))
	fy := float32(y - float64(y0))

	v00 := g.getExtended(x0, y0)
	v10 := g.getExtended(x0+1, y0)
	v01 := g.getExtended(x0, y0+1)
	v11 := g.getExtended(x0+1, y0+1)

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}
