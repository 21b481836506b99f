package fiducial

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/markervision/fiducial/rimage"
	"github.com/markervision/fiducial/rimage/transform"
)

// FoundFiducial is one accepted marker detection.
type FoundFiducial struct {
	// Index identifies the decoded pattern.
	Index int
	// Location holds the four corner points in original (distorted) image
	// coordinates, orientation-normalized so corner A is canonical corner 0.
	Location Quadrilateral
	// SideLength is the marker's physical side length in world units.
	SideLength float64
	// TargetToCamera places the marker frame into the camera frame.
	TargetToCamera Pose
}

// Detector runs the per-frame fiducial pipeline: binarize, propose
// quadrilaterals, rectify each candidate into a square patch, decode the
// pattern, normalize orientation, and solve the 3D pose.
//
// A Detector owns its scratch buffers (rectified patch, binary image,
// correspondence set), so candidates within a frame are processed strictly
// sequentially and a single Detector must not be shared across goroutines.
// Independent Detector instances may process separate frames concurrently.
// Configure must be called before Process and never interleaved with it.
type Detector struct {
	binarizer Binarizer
	quads     QuadDetector
	decoder   Decoder
	logger    golog.Logger

	// scratch reused across candidates within a frame
	patch  *rimage.Gray
	binary *rimage.Gray
	src    [4]r2.Point
	dst    [4]r2.Point

	policy rimage.SamplePolicy

	// set by Configure
	model        *transform.PinholeCameraModel
	poseSolver   PoseSolver
	undistToDist transform.PointTransform
	found        []FoundFiducial
}

// NewDetector validates the collaborators and allocates a detector whose
// rectified patch is patchSize x patchSize pixels. Misconfigured
// collaborators (wrong side count, wrong winding) are setup-time errors,
// never checked again per frame.
func NewDetector(
	binarizer Binarizer,
	quads QuadDetector,
	decoder Decoder,
	patchSize int,
	logger golog.Logger,
) (*Detector, error) {
	if binarizer == nil || quads == nil || decoder == nil {
		return nil, errors.New("detector requires a binarizer, a quad detector, and a decoder")
	}
	if logger == nil {
		return nil, errors.New("detector requires a logger")
	}
	if quads.Sides() != 4 {
		return nil, errors.Errorf("quad detector not configured to detect quadrilaterals, detects %d sides", quads.Sides())
	}
	if quads.Clockwise() {
		return nil, errors.New("output polygons need to be counter-clockwise")
	}
	if patchSize < 4 {
		return nil, errors.Errorf("rectified patch must be at least 4 pixels wide, got %d", patchSize)
	}
	d := &Detector{
		binarizer: binarizer,
		quads:     quads,
		decoder:   decoder,
		logger:    logger,
		patch:     rimage.NewGray(patchSize, patchSize),
		binary:    rimage.NewGray(1, 1),
		policy:    rimage.NearestNeighbor,
	}
	w := float64(patchSize)
	// canonical square corners; the quad detector's counter-clockwise output
	// pairs with this order because visual clockwise is math counter-clockwise
	d.src = [4]r2.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: w}, {X: 0, Y: w}}
	return d, nil
}

// SetSamplePolicy selects the interpolation used when rectifying patches.
// The default is nearest neighbor.
func (d *Detector) SetSamplePolicy(policy rimage.SamplePolicy) {
	d.policy = policy
}

// SetPoseSolver replaces the default planar pose solver. Must be called
// after Configure, which installs the default.
func (d *Detector) SetPoseSolver(solver PoseSolver) {
	d.poseSolver = solver
}

// Configure supplies the camera model and rebuilds the distortion mappings.
// With lens distortion present the intrinsics are first adjusted to the
// "full view" undistorted frame (discarding no pixels), the quad detector
// is told to emit undistorted corners, and the pose solver is built on the
// adjusted intrinsics. cacheMaps memoizes the per-pixel distortion maps,
// trading memory for per-frame compute.
//
// Configure is a configuration-time operation: calling it while a frame is
// being processed is not safe.
func (d *Detector) Configure(model *transform.PinholeCameraModel, cacheMaps bool) error {
	if model == nil || model.PinholeCameraIntrinsics == nil {
		return transform.NewNoIntrinsicsError("detector cannot be configured without intrinsics")
	}
	if err := model.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}

	intrinsics, undistToDist, distToUndist, err := transform.FullViewAdjustment(model)
	if err != nil {
		return errors.Wrap(err, "full view adjustment failed")
	}
	if model.HasDistortion() {
		if cacheMaps {
			undistToDist = transform.NewCachedPointTransform(undistToDist, intrinsics.Width, intrinsics.Height)
			distToUndist = transform.NewCachedPointTransform(distToUndist, intrinsics.Width, intrinsics.Height)
		}
		d.quads.SetLensDistortion(intrinsics.Width, intrinsics.Height, distToUndist, undistToDist)
	} else {
		d.quads.SetLensDistortion(intrinsics.Width, intrinsics.Height, nil, nil)
	}

	solver, err := NewQuadPoseSolver(intrinsics)
	if err != nil {
		return err
	}

	d.model = model
	d.poseSolver = solver
	d.undistToDist = undistToDist
	d.binary.Reshape(intrinsics.Width, intrinsics.Height)
	return nil
}

// Process examines one frame for fiducials. The previous frame's results
// are cleared first; per-candidate geometric and decoding failures are
// absorbed (the candidate is dropped) and never surface as errors.
func (d *Detector) Process(img *rimage.Gray) error {
	if d.model == nil {
		return errors.New("detector must be configured with a camera model before processing")
	}
	if img == nil {
		return errors.New("input image must not be nil")
	}

	if err := d.binarizer.Binarize(img, d.binary); err != nil {
		return errors.Wrap(err, "binarization failed")
	}
	candidates := d.quads.Detect(img, d.binary)
	d.found = d.found[:0]
	d.logger.Debugf("processing %d candidate quadrilaterals", len(candidates))

	for i := range candidates {
		d.processCandidate(img, candidates[i])
	}
	return nil
}

// Found returns the fiducials accepted by the most recent Process call.
// The slice is reused across frames; callers must not retain it.
func (d *Detector) Found() []FoundFiducial {
	return d.found
}

// processCandidate runs one quadrilateral through rectification, decoding,
// orientation normalization and pose recovery, appending to the results on
// success.
func (d *Detector) processCandidate(img *rimage.Gray, q Quadrilateral) {
	d.dst = q.Corners()

	h, err := transform.EstimateExactHomography(d.src[:], d.dst[:])
	if err != nil {
		d.logger.Debugw("rejected candidate: initial homography", "error", err)
		return
	}
	refined, err := transform.RefineHomography(h, d.src[:], d.dst[:])
	if err != nil {
		d.logger.Debugw("rejected candidate: homography refinement", "error", err)
		return
	}

	// the rectifier must always see the composed transform; sampling through
	// the bare homography under active lens distortion would bake the
	// distortion back into the patch
	squareToInput := transform.ComposeTransforms(refined.Transform, d.undistToDist)
	if err := rimage.Warp(img, d.patch, squareToInput, d.policy); err != nil {
		d.logger.Debugw("rejected candidate: rectification", "error", err)
		return
	}

	result, ok := d.decoder.Decode(d.patch)
	if !ok {
		// expected outcome for non-marker quadrilaterals
		return
	}

	q.NormalizeOrientation(result.Rotation)

	pose, err := d.poseSolver.EstimatePose(q, result.SideLength)
	if err != nil {
		d.logger.Warnw("rejected candidate: pose estimation", "error", err)
		return
	}

	// report corners in original image coordinates
	location := q
	location.ApplyTransform(d.undistToDist)

	d.found = append(d.found, FoundFiducial{
		Index:          result.Index,
		Location:       location,
		SideLength:     result.SideLength,
		TargetToCamera: pose,
	})
}
