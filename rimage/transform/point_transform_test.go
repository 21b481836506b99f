package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestComposeTransforms(t *testing.T) {
	double := PointTransform(func(x, y float64) (float64, float64) { return 2 * x, 2 * y })
	shift := PointTransform(func(x, y float64) (float64, float64) { return x + 1, y - 1 })

	tf := ComposeTransforms(double, shift)
	x, y := tf(3, 4)
	test.That(t, x, test.ShouldEqual, 7.0)
	test.That(t, y, test.ShouldEqual, 7.0)
}

func TestComposeWithIdentityEqualsHomography(t *testing.T) {
	// with no lens distortion the composed square-to-input transform must
	// behave exactly like the homography alone
	dst := []r2.Point{{X: 30, Y: 40}, {X: 180, Y: 35}, {X: 175, Y: 160}, {X: 25, Y: 150}}
	h, err := EstimateExactHomography(canonicalSquare, dst)
	test.That(t, err, test.ShouldBeNil)

	composed := ComposeTransforms(h.Transform, IdentityTransform)
	for yi := 0; yi <= 64; yi += 8 {
		for xi := 0; xi <= 64; xi += 8 {
			hx, hy := h.Transform(float64(xi), float64(yi))
			cx, cy := composed(float64(xi), float64(yi))
			test.That(t, cx, test.ShouldEqual, hx)
			test.That(t, cy, test.ShouldEqual, hy)
		}
	}
}

func TestCachedPointTransform(t *testing.T) {
	distortion, err := NewBrownConrady([]float64{0.05, -0.01})
	test.That(t, err, test.ShouldBeNil)
	model := &PinholeCameraModel{testIntrinsics(), distortion}
	tf := model.DistortionMap()

	cached := NewCachedPointTransform(tf, 64, 48)
	// on the grid the cache must agree exactly with the wrapped transform
	for y := 0; y < 48; y += 7 {
		for x := 0; x < 64; x += 7 {
			ex, ey := tf(float64(x), float64(y))
			cx, cy := cached(float64(x), float64(y))
			test.That(t, cx, test.ShouldEqual, ex)
			test.That(t, cy, test.ShouldEqual, ey)
		}
	}
	// off the grid it falls through to the transform
	ex, ey := tf(1000, 1000)
	cx, cy := cached(1000, 1000)
	test.That(t, cx, test.ShouldEqual, ex)
	test.That(t, cy, test.ShouldEqual, ey)
}
