package fiducial

import (
	"testing"

	"go.viam.com/test"

	"github.com/markervision/fiducial/rimage"
)

// lShapedGrid is a 4x4 pattern with no rotational symmetry.
func lShapedGrid() []bool {
	grid := make([]bool, 16)
	grid[0] = true  // (0,0)
	grid[4] = true  // (0,1)
	grid[8] = true  // (0,2)
	grid[12] = true // (0,3)
	grid[13] = true // (1,3)
	return grid
}

// patchFromGrid renders a grid into a patch with one 8x8 block per cell.
func patchFromGrid(grid []bool, n int) *rimage.Gray {
	patch := rimage.NewGray(n*8, n*8)
	for y := 0; y < patch.Height(); y++ {
		for x := 0; x < patch.Width(); x++ {
			if grid[(y/8)*n+(x/8)] {
				patch.SetXY(x, y, 0)
			} else {
				patch.SetXY(x, y, 255)
			}
		}
	}
	return patch
}

func TestImagePatternDecoderRotations(t *testing.T) {
	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	idx, err := decoder.AddPattern(lShapedGrid(), 2.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 0)

	grid := lShapedGrid()
	for r := 0; r < 4; r++ {
		result, ok := decoder.Decode(patchFromGrid(grid, 4))
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, result.Index, test.ShouldEqual, 0)
		test.That(t, result.Rotation, test.ShouldEqual, r)
		test.That(t, result.SideLength, test.ShouldAlmostEqual, 2.5, 1e-12)
		grid = rotateGridClockwise(grid, 4)
	}
}

func TestImagePatternDecoderNoMatch(t *testing.T) {
	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	_, err = decoder.AddPattern(lShapedGrid(), 1.0)
	test.That(t, err, test.ShouldBeNil)

	// checkerboard shares few cells with the L pattern
	other := make([]bool, 16)
	for i := range other {
		other[i] = (i/4+i%4)%2 == 0
	}
	_, ok := decoder.Decode(patchFromGrid(other, 4))
	test.That(t, ok, test.ShouldBeFalse)
}

func TestImagePatternDecoderMultiplePatterns(t *testing.T) {
	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	_, err = decoder.AddPattern(lShapedGrid(), 1.0)
	test.That(t, err, test.ShouldBeNil)

	solid := make([]bool, 16)
	for i := range solid {
		solid[i] = true
	}
	idx, err := decoder.AddPattern(solid, 3.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 1)

	result, ok := decoder.Decode(patchFromGrid(solid, 4))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, result.Index, test.ShouldEqual, 1)
	test.That(t, result.SideLength, test.ShouldAlmostEqual, 3.0, 1e-12)
}

func TestImagePatternDecoderArgs(t *testing.T) {
	_, err := NewImagePatternDecoder(1, 0.1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewImagePatternDecoder(4, 1.5)
	test.That(t, err, test.ShouldNotBeNil)

	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	_, err = decoder.AddPattern(make([]bool, 3), 1.0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = decoder.AddPattern(lShapedGrid(), -1)
	test.That(t, err, test.ShouldNotBeNil)

	_, ok := decoder.Decode(nil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestAddPatternImage(t *testing.T) {
	decoder, err := NewImagePatternDecoder(4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	img := patchFromGrid(lShapedGrid(), 4)
	idx, err := decoder.AddPatternImage(img, 128, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 0)

	result, ok := decoder.Decode(img)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, result.Rotation, test.ShouldEqual, 0)
}
