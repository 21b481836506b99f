package transform

import (
	"math"

	"github.com/pkg/errors"
)

// FullViewAdjustment rescales a distorted camera's undistorted frame so
// that every pixel of the original field of view lands inside the original
// image bounds: the distorted border is traced through the undistortion
// map, and the bounding box of the result is mapped onto the image
// rectangle. No pixels are discarded and no in-view point produces an
// out-of-bounds coordinate.
//
// It returns the intrinsics of the adjusted undistorted frame together
// with the point transforms between that frame and the true (distorted)
// pixel frame. The adjustment depends only on the camera model, so callers
// should compute it once per camera configuration, never per frame.
func FullViewAdjustment(model *PinholeCameraModel) (*PinholeCameraIntrinsics, PointTransform, PointTransform, error) {
	if model == nil || model.PinholeCameraIntrinsics == nil {
		return nil, nil, nil, NewNoIntrinsicsError("cannot adjust an undefined camera")
	}
	if err := model.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return nil, nil, nil, err
	}
	if !model.HasDistortion() {
		return model.PinholeCameraIntrinsics, IdentityTransform, IdentityTransform, nil
	}

	undistort := model.UndistortionMap()
	distort := model.DistortionMap()
	width, height := model.Width, model.Height

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		u, v := undistort(x, y)
		minX = math.Min(minX, u)
		maxX = math.Max(maxX, u)
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	// the extreme undistorted coordinates come from the image border
	for x := 0; x < width; x++ {
		grow(float64(x), 0)
		grow(float64(x), float64(height-1))
	}
	for y := 0; y < height; y++ {
		grow(0, float64(y))
		grow(float64(width-1), float64(y))
	}

	if !isFinite(minX) || !isFinite(minY) || !isFinite(maxX) || !isFinite(maxY) ||
		maxX-minX < 1e-9 || maxY-minY < 1e-9 {
		return nil, nil, nil, errors.New("distortion model produced a degenerate undistorted view")
	}

	sx := float64(width-1) / (maxX - minX)
	sy := float64(height-1) / (maxY - minY)

	adjusted := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     model.Fx * sx,
		Fy:     model.Fy * sy,
		Ppx:    (model.Ppx - minX) * sx,
		Ppy:    (model.Ppy - minY) * sy,
	}
	if err := adjusted.CheckValid(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "full view adjustment produced invalid intrinsics")
	}

	undistToDist := PointTransform(func(x, y float64) (float64, float64) {
		return distort(x/sx+minX, y/sy+minY)
	})
	distToUndist := PointTransform(func(x, y float64) (float64, float64) {
		u, v := undistort(x, y)
		return (u - minX) * sx, (v - minY) * sy
	})
	return adjusted, undistToDist, distToUndist, nil
}
