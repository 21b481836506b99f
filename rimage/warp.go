package rimage

import "github.com/pkg/errors"

// Warp fills every pixel (x,y) of dst with the source image sampled at
// tf(x,y). The transform maps destination coordinates into source
// coordinates; samples falling outside src extend the nearest edge pixel.
//
// This is purely mechanical resampling. Callers are responsible for handing
// in the fully composed transform (perspective plus any lens distortion);
// warping with a bare homography while lens distortion is active will bake
// the distortion back into the output.
func Warp(src, dst *Gray, tf func(x, y float64) (float64, float64), policy SamplePolicy) error {
	if src == nil || dst == nil {
		return errors.New("source and destination images must not be nil")
	}
	if tf == nil {
		return errors.New("warp requires a transform")
	}
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			sx, sy := tf(float64(x), float64(y))
			dst.SetXY(x, y, src.Sample(sx, sy, policy))
		}
	}
	return nil
}
