package fiducial

import (
	"github.com/pkg/errors"

	"github.com/markervision/fiducial/rimage"
)

// ImagePatternDecoder matches rectified patches against a set of
// registered binary-grid patterns. Each pattern is compared at the four
// quarter-turn orientations; the reported rotation index counts visual
// clockwise quarter turns between the pattern's canonical orientation and
// the orientation it was imaged at.
type ImagePatternDecoder struct {
	gridSize int
	// maxErrorFraction is the largest tolerated fraction of mismatched
	// cells for a successful decode.
	maxErrorFraction float64
	patterns         []registeredPattern
}

type registeredPattern struct {
	// rotated[r] holds the pattern grid after r visual clockwise quarter turns
	rotated    [4][]bool
	sideLength float64
}

// NewImagePatternDecoder creates a decoder that reduces patches to
// gridSize x gridSize cells and accepts matches with at most
// maxErrorFraction of the cells wrong.
func NewImagePatternDecoder(gridSize int, maxErrorFraction float64) (*ImagePatternDecoder, error) {
	if gridSize < 2 {
		return nil, errors.Errorf("pattern grid must be at least 2x2, got %d", gridSize)
	}
	if maxErrorFraction < 0 || maxErrorFraction >= 1 {
		return nil, errors.Errorf("max error fraction must be in [0,1), got %f", maxErrorFraction)
	}
	return &ImagePatternDecoder{gridSize: gridSize, maxErrorFraction: maxErrorFraction}, nil
}

// AddPattern registers a binary pattern grid (true = dark cell) with the
// marker's physical side length in world units. It returns the index that
// Decode will report for this pattern.
func (d *ImagePatternDecoder) AddPattern(grid []bool, sideLength float64) (int, error) {
	if len(grid) != d.gridSize*d.gridSize {
		return 0, errors.Errorf("pattern grid must have %d cells, got %d", d.gridSize*d.gridSize, len(grid))
	}
	if sideLength <= 0 {
		return 0, errors.Errorf("side length must be positive, got %f", sideLength)
	}
	p := registeredPattern{sideLength: sideLength}
	p.rotated[0] = append([]bool{}, grid...)
	for r := 1; r < 4; r++ {
		p.rotated[r] = rotateGridClockwise(p.rotated[r-1], d.gridSize)
	}
	d.patterns = append(d.patterns, p)
	return len(d.patterns) - 1, nil
}

// AddPatternImage registers a pattern from a gray image by thresholding it:
// pixels darker than threshold become dark cells.
func (d *ImagePatternDecoder) AddPatternImage(img *rimage.Gray, threshold, sideLength float64) (int, error) {
	if img == nil {
		return 0, errors.New("pattern image must not be nil")
	}
	grid := make([]bool, d.gridSize*d.gridSize)
	binarizeCells(img, d.gridSize, func(cell int, dark bool) {
		grid[cell] = dark
	}, threshold)
	return d.AddPattern(grid, sideLength)
}

// Decode reduces the patch to a cell grid and matches it against every
// registered pattern at every rotation, returning the best match under the
// error threshold. False means no pattern matched.
func (d *ImagePatternDecoder) Decode(patch *rimage.Gray) (DecodeResult, bool) {
	if patch == nil || len(d.patterns) == 0 {
		return DecodeResult{}, false
	}

	observed := make([]bool, d.gridSize*d.gridSize)
	minV, maxV := patch.GetXY(0, 0), patch.GetXY(0, 0)
	for y := 0; y < patch.Height(); y++ {
		for x := 0; x < patch.Width(); x++ {
			v := patch.GetXY(x, y)
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	binarizeCells(patch, d.gridSize, func(cell int, dark bool) {
		observed[cell] = dark
	}, float64(minV+maxV)/2)

	bestErrors := len(observed) + 1
	best := DecodeResult{}
	for idx, p := range d.patterns {
		for r := 0; r < 4; r++ {
			mismatches := 0
			for i := range observed {
				if observed[i] != p.rotated[r][i] {
					mismatches++
				}
			}
			if mismatches < bestErrors {
				bestErrors = mismatches
				best = DecodeResult{Index: idx, SideLength: p.sideLength, Rotation: r}
			}
		}
	}
	if float64(bestErrors) > d.maxErrorFraction*float64(len(observed)) {
		return DecodeResult{}, false
	}
	return best, true
}

// binarizeCells averages the image over a gridSize x gridSize partition and
// reports each cell as dark when its mean intensity is at or below the
// threshold.
func binarizeCells(img *rimage.Gray, gridSize int, report func(cell int, dark bool), threshold float64) {
	cellW := float64(img.Width()) / float64(gridSize)
	cellH := float64(img.Height()) / float64(gridSize)
	for gy := 0; gy < gridSize; gy++ {
		for gx := 0; gx < gridSize; gx++ {
			x0, x1 := int(float64(gx)*cellW), int(float64(gx+1)*cellW)
			y0, y1 := int(float64(gy)*cellH), int(float64(gy+1)*cellH)
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}
			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(img.GetXY(x, y))
				}
			}
			mean := sum / float64((x1-x0)*(y1-y0))
			report(gy*gridSize+gx, mean <= threshold)
		}
	}
}

// rotateGridClockwise rotates a row-major square grid one quarter turn in
// the visual clockwise direction: the new cell (x,y) takes the old cell
// (y, n-1-x).
func rotateGridClockwise(grid []bool, n int) []bool {
	out := make([]bool, len(grid))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[y*n+x] = grid[(n-1-x)*n+y]
		}
	}
	return out
}
