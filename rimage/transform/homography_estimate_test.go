package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

var canonicalSquare = []r2.Point{{X: 0, Y: 0}, {X: 64, Y: 0}, {X: 64, Y: 64}, {X: 0, Y: 64}}

func TestEstimateExactHomographyMapsCorners(t *testing.T) {
	dst := []r2.Point{{X: 120.5, Y: 80.25}, {X: 260, Y: 95}, {X: 250, Y: 210}, {X: 110, Y: 190}}
	h, err := EstimateExactHomography(canonicalSquare, dst)
	test.That(t, err, test.ShouldBeNil)
	for i, c := range canonicalSquare {
		mapped := h.Apply(c)
		test.That(t, mapped.X, test.ShouldAlmostEqual, dst[i].X, 0.5)
		test.That(t, mapped.Y, test.ShouldAlmostEqual, dst[i].Y, 0.5)
	}
}

func TestEstimateExactHomographyWrongCount(t *testing.T) {
	_, err := EstimateExactHomography(canonicalSquare[:3], canonicalSquare[:3])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exactly 4")
}

func TestEstimateExactHomographyCollinear(t *testing.T) {
	// four collinear "corners" must fail, never crash or produce a silently
	// wrong matrix
	dst := []r2.Point{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}, {X: 40, Y: 40}}
	_, err := EstimateExactHomography(canonicalSquare, dst)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "degenerate")
}

func TestEstimateExactHomographyCoincident(t *testing.T) {
	p := r2.Point{X: 5, Y: 5}
	_, err := EstimateExactHomography(canonicalSquare, []r2.Point{p, p, p, p})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimateExactHomographyCollinearTriple(t *testing.T) {
	// three of four target corners on one line force a plane-collapsing map
	dst := []r2.Point{{X: 0, Y: 0}, {X: 50, Y: 50}, {X: 100, Y: 100}, {X: 20, Y: 80}}
	_, err := EstimateExactHomography(canonicalSquare, dst)
	test.That(t, err, test.ShouldNotBeNil)
}
