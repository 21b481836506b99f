package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// singularValueRatioLimit is the smallest acceptable ratio between the
// seventh and the largest singular value of the DLT design matrix. Below it
// the correspondence set does not pin down a unique homography.
const singularValueRatioLimit = 1e-9

// EstimateExactHomography computes the homography mapping the four src
// points onto the four dst points with a normalized direct linear
// transform. It errors when the correspondences are numerically degenerate
// (e.g. three near-collinear target points); callers should reject the
// candidate in that case.
func EstimateExactHomography(src, dst []r2.Point) (*Homography, error) {
	if len(src) != 4 || len(dst) != 4 {
		return nil, errors.Errorf("need exactly 4 point correspondences, got %d and %d", len(src), len(dst))
	}

	srcNorm, tSrc := normalizePoints(src)
	dstNorm, tDst := normalizePoints(dst)
	if srcNorm == nil || dstNorm == nil {
		return nil, errors.New("degenerate correspondences: points are coincident")
	}

	a := mat.NewDense(8, 9, nil)
	for i := 0; i < 4; i++ {
		p := srcNorm[i]
		q := dstNorm[i]
		a.SetRow(2*i, []float64{
			-p.X, -p.Y, -1, 0, 0, 0, q.X * p.X, q.X * p.Y, q.X,
		})
		a.SetRow(2*i+1, []float64{
			0, 0, 0, -p.X, -p.Y, -1, q.Y * p.X, q.Y * p.Y, q.Y,
		})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return nil, errors.New("SVD of the homography design matrix failed")
	}
	values := svd.Values(nil)
	// an exact solution always zeroes the eighth singular value; a collapsing
	// seventh means the solution space has dimension > 1
	if values[6] < singularValueRatioLimit*values[0] {
		return nil, errors.New("degenerate correspondences: homography is not uniquely determined")
	}

	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// undo the normalization: H = inv(Tdst) * Hn * Tsrc
	var tDstInv, tmp, hFull mat.Dense
	if err := tDstInv.Inverse(tDst); err != nil {
		return nil, errors.Wrap(err, "could not invert normalization transform")
	}
	tmp.Mul(hn, tSrc)
	hFull.Mul(&tDstInv, &tmp)

	if err := checkInvertible(&hFull); err != nil {
		return nil, err
	}

	// fix the scale ambiguity
	scale := hFull.At(2, 2)
	if math.Abs(scale) > 1e-12 {
		hFull.Scale(1/scale, &hFull)
	}

	return NewHomography(append([]float64{}, hFull.RawMatrix().Data...))
}

// checkInvertible rejects matrices whose smallest singular value has
// collapsed relative to the largest, which maps every source point onto a
// line or point.
func checkInvertible(h *mat.Dense) error {
	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDNone); !ok {
		return errors.New("SVD of the homography failed")
	}
	values := svd.Values(nil)
	if values[2] < singularValueRatioLimit*values[0] {
		return errors.New("degenerate correspondences: homography collapses the plane")
	}
	return nil
}

// normalizePoints translates points to their centroid and scales their mean
// distance to sqrt(2), as described in Multiple View Geometry, Alg 4.2. It
// returns the transformed points and the 3x3 transform that produced them,
// or nil points when the set is coincident.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := len(pts)
	mu := r2.Point{}
	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		x2 := (pt.X - mu.X) * (pt.X - mu.X)
		y2 := (pt.Y - mu.Y) * (pt.Y - mu.Y)
		d += math.Sqrt(x2+y2) / float64(nPoints)
	}
	if d < 1e-12 {
		return nil, nil
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	t := mat.NewDense(3, 3, transformData)

	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, t
}
