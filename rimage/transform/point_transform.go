package transform

import "math"

// PointTransform maps a 2D point from one coordinate frame to another.
type PointTransform func(x, y float64) (float64, float64)

// IdentityTransform returns its input unchanged.
func IdentityTransform(x, y float64) (float64, float64) {
	return x, y
}

// ComposeTransforms chains two point transforms, applying first and then
// second.
func ComposeTransforms(first, second PointTransform) PointTransform {
	return func(x, y float64) (float64, float64) {
		u, v := first(x, y)
		return second(u, v)
	}
}

// NewCachedPointTransform precomputes tf over the integer pixel grid of a
// width x height image and answers lookups by rounding to the nearest grid
// entry. It trades memory for per-frame compute when the same transform is
// evaluated across many frames; coordinates outside the grid fall through
// to the wrapped transform.
func NewCachedPointTransform(tf PointTransform, width, height int) PointTransform {
	cache := make([]float64, 2*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u, v := tf(float64(x), float64(y))
			k := 2 * (y*width + x)
			cache[k] = u
			cache[k+1] = v
		}
	}
	return func(x, y float64) (float64, float64) {
		xi := int(math.Round(x))
		yi := int(math.Round(y))
		if xi < 0 || yi < 0 || xi >= width || yi >= height {
			return tf(x, y)
		}
		k := 2 * (yi*width + xi)
		return cache[k], cache[k+1]
	}
}
