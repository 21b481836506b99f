package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// refineMaxIterations caps the Levenberg-Marquardt loop.
	refineMaxIterations = 100
	// refineTolerance is the relative error improvement below which the
	// refinement is considered converged.
	refineTolerance = 1e-4
)

// RefineHomography polishes an initial homography estimate against the same
// four correspondences with Levenberg-Marquardt, minimizing the symmetric
// transfer error (forward and backward reprojection, which is robust to the
// asymmetry of a one-way residual). The lower-right element is pinned to 1
// to remove the scale ambiguity.
//
// It errors when the optimizer diverges or the estimate becomes singular.
// Refinement is mandatory for fiducial candidates: the 4-point linear solve
// is sensitive to corner-localization noise and the decoder needs sub-pixel
// rectification accuracy, so callers must reject the candidate on failure
// rather than fall back to the unrefined matrix.
func RefineHomography(initial *Homography, src, dst []r2.Point) (*Homography, error) {
	if initial == nil {
		return nil, errors.New("no initial homography to refine")
	}
	if len(src) != 4 || len(dst) != 4 {
		return nil, errors.Errorf("need exactly 4 point correspondences, got %d and %d", len(src), len(dst))
	}
	if math.Abs(initial.At(2, 2)) < 1e-12 {
		return nil, errors.New("cannot refine a homography with a vanishing scale element")
	}

	// eight free parameters, h22 pinned to 1
	params := make([]float64, 8)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == 2 && j == 2 {
				continue
			}
			params[3*i+j] = initial.At(i, j) / initial.At(2, 2)
		}
	}

	residuals := make([]float64, 16)
	if err := transferResiduals(params, src, dst, residuals); err != nil {
		return nil, err
	}
	errPrev := sumSquares(residuals)
	if !isFinite(errPrev) {
		return nil, errors.New("initial homography produces non-finite residuals")
	}

	lambda := 1e-3
	jac := mat.NewDense(16, 8, nil)
	trial := make([]float64, 8)
	trialRes := make([]float64, 16)

	for iter := 0; iter < refineMaxIterations; iter++ {
		if err := numericJacobian(params, src, dst, residuals, jac); err != nil {
			return nil, err
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		rVec := mat.NewVecDense(16, residuals)
		var g mat.VecDense
		g.MulVec(jac.T(), rVec)

		improved := false
		for attempt := 0; attempt < 8; attempt++ {
			var damped mat.Dense
			damped.CloneFrom(&jtj)
			for i := 0; i < 8; i++ {
				damped.Set(i, i, damped.At(i, i)+lambda*(1+jtj.At(i, i)))
			}
			var step mat.VecDense
			if err := step.SolveVec(&damped, &g); err != nil {
				lambda *= 10
				continue
			}
			for i := 0; i < 8; i++ {
				trial[i] = params[i] - step.AtVec(i)
			}
			if err := transferResiduals(trial, src, dst, trialRes); err != nil {
				lambda *= 10
				continue
			}
			errTrial := sumSquares(trialRes)
			if !isFinite(errTrial) {
				return nil, errors.New("homography refinement diverged")
			}
			if errTrial < errPrev {
				copy(params, trial)
				copy(residuals, trialRes)
				lambda = math.Max(lambda/10, 1e-12)
				converged := errPrev-errTrial <= refineTolerance*(errPrev+1e-30)
				errPrev = errTrial
				if converged {
					return homographyFromParams(params), nil
				}
				improved = true
				break
			}
			lambda *= 10
		}
		if !improved {
			// no damping level yields progress; the estimate is at a minimum
			return homographyFromParams(params), nil
		}
	}
	return homographyFromParams(params), nil
}

func homographyFromParams(p []float64) *Homography {
	return &Homography{
		{p[0], p[1], p[2]},
		{p[3], p[4], p[5]},
		{p[6], p[7], 1},
	}
}

// transferResiduals writes the 16 symmetric transfer residuals (forward and
// backward x/y errors per correspondence) for the parametrized homography.
func transferResiduals(p []float64, src, dst []r2.Point, out []float64) error {
	h := homographyFromParams(p)
	hInv, err := h.Inverse()
	if err != nil {
		return errors.Wrap(err, "homography became singular during refinement")
	}
	for i := 0; i < 4; i++ {
		fwd := h.Apply(src[i])
		bwd := hInv.Apply(dst[i])
		out[4*i] = fwd.X - dst[i].X
		out[4*i+1] = fwd.Y - dst[i].Y
		out[4*i+2] = bwd.X - src[i].X
		out[4*i+3] = bwd.Y - src[i].Y
	}
	return nil
}

// numericJacobian fills jac with central-difference partials of the
// residual vector with respect to each parameter.
func numericJacobian(p []float64, src, dst []r2.Point, base []float64, jac *mat.Dense) error {
	perturbed := make([]float64, len(p))
	resPlus := make([]float64, len(base))
	resMinus := make([]float64, len(base))
	for j := range p {
		step := 1e-7 * (math.Abs(p[j]) + 1)
		copy(perturbed, p)
		perturbed[j] = p[j] + step
		if err := transferResiduals(perturbed, src, dst, resPlus); err != nil {
			return err
		}
		perturbed[j] = p[j] - step
		if err := transferResiduals(perturbed, src, dst, resMinus); err != nil {
			return err
		}
		for i := range base {
			jac.Set(i, j, (resPlus[i]-resMinus[i])/(2*step))
		}
	}
	return nil
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
