package rimage

import (
	"testing"

	"go.viam.com/test"
)

func TestWarpIdentity(t *testing.T) {
	src := gradientImage(5, 5)
	dst := NewGray(5, 5)
	err := Warp(src, dst, func(x, y float64) (float64, float64) { return x, y }, NearestNeighbor)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			test.That(t, dst.GetXY(x, y), test.ShouldEqual, src.GetXY(x, y))
		}
	}
}

func TestWarpTranslation(t *testing.T) {
	src := gradientImage(5, 5)
	dst := NewGray(5, 5)
	err := Warp(src, dst, func(x, y float64) (float64, float64) { return x + 1, y }, NearestNeighbor)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dst.GetXY(0, 0), test.ShouldEqual, src.GetXY(1, 0))
	// samples past the right edge extend the border pixel
	test.That(t, dst.GetXY(4, 2), test.ShouldEqual, src.GetXY(4, 2))
}

func TestWarpArgs(t *testing.T) {
	src := gradientImage(2, 2)
	err := Warp(src, nil, func(x, y float64) (float64, float64) { return x, y }, NearestNeighbor)
	test.That(t, err, test.ShouldNotBeNil)
	err = Warp(src, NewGray(2, 2), nil, NearestNeighbor)
	test.That(t, err, test.ShouldNotBeNil)
}
