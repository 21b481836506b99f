package fiducial

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/markervision/fiducial/rimage"
	"github.com/markervision/fiducial/rimage/transform"
)

type stubQuadDetector struct {
	sides     int
	clockwise bool
	quads     []Quadrilateral
}

func (s *stubQuadDetector) Sides() int      { return s.sides }
func (s *stubQuadDetector) Clockwise() bool { return s.clockwise }
func (s *stubQuadDetector) SetLensDistortion(width, height int, distToUndist, undistToDist transform.PointTransform) {
}
func (s *stubQuadDetector) Detect(gray, binary *rimage.Gray) []Quadrilateral { return s.quads }

type stubDecoder struct {
	result DecodeResult
	ok     bool
}

func (s stubDecoder) Decode(patch *rimage.Gray) (DecodeResult, bool) { return s.result, s.ok }

type failingPoseSolver struct{}

func (failingPoseSolver) EstimatePose(q Quadrilateral, sideLength float64) (Pose, error) {
	return Pose{}, errors.New("geometry rejected")
}

// markerImage is a white 200x200 frame with a solid black square spanning
// pixels 60..140, the image a unit marker produces at distance 2.5 with the
// test camera.
func markerImage() *rimage.Gray {
	img := whiteImage(200, 200)
	fillRect(img, 60, 60, 140, 140)
	return img
}

func solidDecoder(t *testing.T) *ImagePatternDecoder {
	t.Helper()
	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	solid := make([]bool, 16)
	for i := range solid {
		solid[i] = true
	}
	_, err = decoder.AddPattern(solid, 1.0)
	test.That(t, err, test.ShouldBeNil)
	return decoder
}

func TestDetectorEndToEnd(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), solidDecoder(t), 64, logger)
	test.That(t, err, test.ShouldBeNil)

	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)
	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)

	found := detector.Found()
	test.That(t, len(found), test.ShouldEqual, 1)
	test.That(t, found[0].Index, test.ShouldEqual, 0)
	test.That(t, found[0].SideLength, test.ShouldAlmostEqual, 1.0, 1e-12)

	corners := found[0].Location.Corners()
	expected := [4]r2.Point{{X: 60, Y: 60}, {X: 140, Y: 60}, {X: 140, Y: 140}, {X: 60, Y: 140}}
	for i := range corners {
		test.That(t, corners[i].X, test.ShouldAlmostEqual, expected[i].X, 0.5)
		test.That(t, corners[i].Y, test.ShouldAlmostEqual, expected[i].Y, 0.5)
	}

	pose := found[0].TargetToCamera
	test.That(t, pose.Translation.X, test.ShouldAlmostEqual, 0, 0.05)
	test.That(t, pose.Translation.Y, test.ShouldAlmostEqual, 0, 0.05)
	test.That(t, pose.Translation.Z, test.ShouldAlmostEqual, 2.5, 0.05)
}

func TestDetectorOrientationNormalization(t *testing.T) {
	logger := golog.NewTestLogger(t)
	decoder := stubDecoder{result: DecodeResult{Index: 7, SideLength: 2.0, Rotation: 1}, ok: true}
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), decoder, 64, logger)
	test.That(t, err, test.ShouldBeNil)

	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)
	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)

	found := detector.Found()
	test.That(t, len(found), test.ShouldEqual, 1)
	test.That(t, found[0].Index, test.ShouldEqual, 7)
	test.That(t, found[0].SideLength, test.ShouldAlmostEqual, 2.0, 1e-12)
	// a pattern seen rotated once shifts the corner labels three steps, so
	// the reported corner A is the bottom-left of the imaged square
	test.That(t, found[0].Location.A.X, test.ShouldAlmostEqual, 60, 0.5)
	test.That(t, found[0].Location.A.Y, test.ShouldAlmostEqual, 140, 0.5)
}

func TestDetectorFrameIsolation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), solidDecoder(t), 64, logger)
	test.That(t, err, test.ShouldBeNil)
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)

	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)
	test.That(t, len(detector.Found()), test.ShouldEqual, 1)

	// a frame with no markers clears the previous frame's results
	test.That(t, detector.Process(whiteImage(200, 200)), test.ShouldBeNil)
	test.That(t, len(detector.Found()), test.ShouldEqual, 0)
}

func TestDetectorPoseFailureDropsCandidate(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), solidDecoder(t), 64, logger)
	test.That(t, err, test.ShouldBeNil)
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)
	detector.SetPoseSolver(failingPoseSolver{})

	// an unsolvable pose drops the candidate without failing the frame
	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)
	test.That(t, len(detector.Found()), test.ShouldEqual, 0)
}

func TestDetectorDecoderRejection(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), stubDecoder{ok: false}, 64, logger)
	test.That(t, err, test.ShouldBeNil)
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)

	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)
	test.That(t, len(detector.Found()), test.ShouldEqual, 0)
}

func TestDetectorWithDistortion(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), solidDecoder(t), 64, logger)
	test.That(t, err, test.ShouldBeNil)

	distortion, err := transform.NewBrownConrady([]float64{0.02, -0.005})
	test.That(t, err, test.ShouldBeNil)
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera(), Distortion: distortion}
	test.That(t, detector.Configure(model, true), test.ShouldBeNil)

	// mild distortion leaves the solid square detectable; reported corners
	// stay in the original image frame
	test.That(t, detector.Process(markerImage()), test.ShouldBeNil)
	found := detector.Found()
	test.That(t, len(found), test.ShouldEqual, 1)
	test.That(t, found[0].Location.A.X, test.ShouldAlmostEqual, 60, 2)
	test.That(t, found[0].Location.A.Y, test.ShouldAlmostEqual, 60, 2)
}

func TestNewDetectorValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	decoder := solidDecoder(t)

	_, err := NewDetector(nil, NewBlobQuadDetector(400), decoder, 64, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDetector(MeanBinarizer{}, nil, decoder, 64, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), nil, 64, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), decoder, 64, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewDetector(MeanBinarizer{}, &stubQuadDetector{sides: 5}, decoder, 64, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "quadrilaterals")

	_, err = NewDetector(MeanBinarizer{}, &stubQuadDetector{sides: 4, clockwise: true}, decoder, 64, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "counter-clockwise")

	_, err = NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), decoder, 2, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDetectorUnconfigured(t *testing.T) {
	logger := golog.NewTestLogger(t)
	detector, err := NewDetector(MeanBinarizer{}, NewBlobQuadDetector(400), solidDecoder(t), 64, logger)
	test.That(t, err, test.ShouldBeNil)

	err = detector.Process(markerImage())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "configured")

	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: testCamera()}
	test.That(t, detector.Configure(model, false), test.ShouldBeNil)
	test.That(t, detector.Process(nil), test.ShouldNotBeNil)

	badModel := &transform.PinholeCameraModel{}
	test.That(t, detector.Configure(badModel, false), test.ShouldNotBeNil)
}
