package fiducial

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/markervision/fiducial/rimage/transform"
)

// Pose is the rigid transform placing the marker's coordinate frame into
// the camera's coordinate frame. Translation units follow the marker's
// physical side length.
type Pose struct {
	Rotation    quat.Number
	Translation r3.Vector
}

// TransformPoint maps a point from the marker frame into the camera frame.
func (p Pose) TransformPoint(v r3.Vector) r3.Vector {
	qv := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(p.Rotation, qv), quat.Conj(p.Rotation))
	return r3.Vector{
		X: rotated.Imag + p.Translation.X,
		Y: rotated.Jmag + p.Translation.Y,
		Z: rotated.Kmag + p.Translation.Z,
	}
}

// canonical marker corners in marker units, paired with quad corners
// A,B,C,D. The marker's center is its origin and y points up.
var canonicalMarkerCorners = [4]r2.Point{
	{X: -0.5, Y: 0.5},
	{X: 0.5, Y: 0.5},
	{X: 0.5, Y: -0.5},
	{X: -0.5, Y: -0.5},
}

// QuadPoseSolver recovers a planar pose from four corner observations by
// decomposing the marker-to-image homography against the camera intrinsics:
// H = K [r1 r2 t] up to scale for points on the marker plane.
type QuadPoseSolver struct {
	intrinsics *transform.PinholeCameraIntrinsics
}

// NewQuadPoseSolver returns a solver for the given intrinsics, which must
// describe the (undistorted) frame the corner observations live in.
func NewQuadPoseSolver(intrinsics *transform.PinholeCameraIntrinsics) (*QuadPoseSolver, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &QuadPoseSolver{intrinsics: intrinsics}, nil
}

// EstimatePose solves the marker-to-camera rigid transform for a quad whose
// corners are in undistorted pixels, then scales the translation by the
// marker's physical side length. Degenerate geometry returns an error; the
// caller should drop the candidate and keep processing.
func (s *QuadPoseSolver) EstimatePose(q Quadrilateral, sideLength float64) (Pose, error) {
	if sideLength <= 0 {
		return Pose{}, errors.Errorf("side length must be positive, got %f", sideLength)
	}

	// homography from marker plane to normalized image coordinates
	corners := q.Corners()
	src := make([]r2.Point, 4)
	dst := make([]r2.Point, 4)
	for i := 0; i < 4; i++ {
		src[i] = canonicalMarkerCorners[i]
		dst[i] = r2.Point{
			X: (corners[i].X - s.intrinsics.Ppx) / s.intrinsics.Fx,
			Y: (corners[i].Y - s.intrinsics.Ppy) / s.intrinsics.Fy,
		}
	}
	g, err := transform.EstimateExactHomography(src, dst)
	if err != nil {
		return Pose{}, errors.Wrap(err, "pose homography estimation failed")
	}

	g1 := r3.Vector{X: g.At(0, 0), Y: g.At(1, 0), Z: g.At(2, 0)}
	g2 := r3.Vector{X: g.At(0, 1), Y: g.At(1, 1), Z: g.At(2, 1)}
	g3 := r3.Vector{X: g.At(0, 2), Y: g.At(1, 2), Z: g.At(2, 2)}

	norm := g1.Norm() + g2.Norm()
	if norm < 1e-12 {
		return Pose{}, errors.New("pose homography has collapsed rotation columns")
	}
	lambda := 2 / norm
	// the marker must sit in front of the camera
	if g3.Z*lambda < 0 {
		lambda = -lambda
	}

	r1 := g1.Mul(lambda)
	r2col := g2.Mul(lambda)
	r3col := r1.Cross(r2col)
	rot, err := orthonormalize(r1, r2col, r3col)
	if err != nil {
		return Pose{}, err
	}

	translation := g3.Mul(lambda * sideLength)
	return Pose{Rotation: matToQuat(rot), Translation: translation}, nil
}

// orthonormalize projects the approximate rotation columns onto the nearest
// true rotation matrix via SVD.
func orthonormalize(c1, c2, c3 r3.Vector) (*mat.Dense, error) {
	m := mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, errors.New("SVD of the rotation estimate failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// flip the least significant direction to stay in SO(3)
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var tmp mat.Dense
		tmp.Mul(&u, d)
		r.Mul(&tmp, v.T())
	}
	return &r, nil
}

// matToQuat converts a rotation matrix to a unit quaternion using
// Shepperd's method.
func matToQuat(r *mat.Dense) quat.Number {
	tr := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (r.At(2, 1) - r.At(1, 2)) / s,
			Jmag: (r.At(0, 2) - r.At(2, 0)) / s,
			Kmag: (r.At(1, 0) - r.At(0, 1)) / s,
		}
	case r.At(0, 0) > r.At(1, 1) && r.At(0, 0) > r.At(2, 2):
		s := math.Sqrt(1+r.At(0, 0)-r.At(1, 1)-r.At(2, 2)) * 2
		q = quat.Number{
			Real: (r.At(2, 1) - r.At(1, 2)) / s,
			Imag: s / 4,
			Jmag: (r.At(0, 1) + r.At(1, 0)) / s,
			Kmag: (r.At(0, 2) + r.At(2, 0)) / s,
		}
	case r.At(1, 1) > r.At(2, 2):
		s := math.Sqrt(1+r.At(1, 1)-r.At(0, 0)-r.At(2, 2)) * 2
		q = quat.Number{
			Real: (r.At(0, 2) - r.At(2, 0)) / s,
			Imag: (r.At(0, 1) + r.At(1, 0)) / s,
			Jmag: s / 4,
			Kmag: (r.At(1, 2) + r.At(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1+r.At(2, 2)-r.At(0, 0)-r.At(1, 1)) * 2
		q = quat.Number{
			Real: (r.At(1, 0) - r.At(0, 1)) / s,
			Imag: (r.At(0, 2) + r.At(2, 0)) / s,
			Jmag: (r.At(1, 2) + r.At(2, 1)) / s,
			Kmag: s / 4,
		}
	}
	return q
}
