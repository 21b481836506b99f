package fiducial

import (
	"github.com/markervision/fiducial/rimage"
	"github.com/markervision/fiducial/rimage/transform"
)

// Binarizer converts a gray image into a binary image where marker (dark)
// pixels are 1 and background pixels are 0. Implementations must be
// deterministic and keep no state that outlives the call.
type Binarizer interface {
	Binarize(src, dst *rimage.Gray) error
}

// QuadDetector proposes quadrilateral marker candidates from a gray image
// and its binarized counterpart.
//
// Detectors must emit corners in the winding documented on Quadrilateral
// (counter-clockwise in the mathematical sense). When lens distortion is
// configured via SetLensDistortion, emitted corners must already be in the
// undistorted frame; the pipeline projects them back to the distorted frame
// only after orientation normalization.
type QuadDetector interface {
	// Sides returns the number of polygon sides the detector is configured
	// to find. The fiducial pipeline requires 4.
	Sides() int
	// Clockwise reports whether output corners wind clockwise in the
	// mathematical sense. The fiducial pipeline requires false.
	Clockwise() bool
	// SetLensDistortion hands the detector the maps between the distorted
	// input frame and the adjusted undistorted frame. Either map may be nil
	// to clear a previous configuration.
	SetLensDistortion(width, height int, distToUndist, undistToDist transform.PointTransform)
	Detect(gray, binary *rimage.Gray) []Quadrilateral
}

// DecodeResult reports a successful pattern decode.
type DecodeResult struct {
	// Index identifies which registered pattern matched.
	Index int
	// SideLength is the length of the marker's physical side in world units.
	SideLength float64
	// Rotation is the number of quarter turns, visually clockwise, between
	// the pattern's canonical orientation and its as-imaged orientation.
	Rotation int
}

// Decoder reads a rectified square patch and matches it against known
// marker patterns. The boolean result is false when no pattern matches;
// that is the expected outcome for non-marker quadrilaterals, not an error.
// The patch is pipeline-owned scratch: implementations must not retain it
// past the call.
type Decoder interface {
	Decode(patch *rimage.Gray) (DecodeResult, bool)
}

// PoseSolver estimates the rigid transform from the marker's own frame to
// the camera frame, given corner observations in undistorted pixels and the
// marker's physical side length. The canonical marker corners are
// {(-0.5,0.5),(0.5,0.5),(0.5,-0.5),(-0.5,-0.5)} in marker units, scaled by
// sideLength after solving.
type PoseSolver interface {
	EstimatePose(q Quadrilateral, sideLength float64) (Pose, error)
}
