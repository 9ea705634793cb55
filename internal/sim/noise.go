package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// noiseModel draws per-tick position noise. The east and north axes are
// correlated, mimicking multipath around a fixed survey point; the
// vertical axis is independent at twice the horizontal sigma, the usual
// GNSS vertical-to-horizontal error ratio.
type noiseModel struct {
	lower *mat.TriDense
	std   distuv.Normal
	sigma float64
}

func newNoiseModel(sigmaM, corr float64) (*noiseModel, error) {
	m := &noiseModel{
		std:   distuv.Normal{Mu: 0, Sigma: 1},
		sigma: sigmaM,
	}
	if sigmaM < 0 {
		return nil, fmt.Errorf("noise sigma %g must not be negative", sigmaM)
	}
	if sigmaM == 0 {
		return m, nil
	}

	s2 := sigmaM * sigmaM
	cov := mat.NewSymDense(2, []float64{
		s2, corr * s2,
		corr * s2, s2,
	})
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("noise covariance not positive definite (sigma %g, corr %g)", sigmaM, corr)
	}
	m.lower = &mat.TriDense{}
	chol.LTo(m.lower)
	return m, nil
}

// Sample returns one east/north/up noise draw in metres.
func (m *noiseModel) Sample() (east, north, up float64) {
	if m.sigma == 0 {
		return 0, 0, 0
	}
	z := mat.NewVecDense(2, []float64{m.std.Rand(), m.std.Rand()})
	var horizontal mat.VecDense
	horizontal.MulVec(m.lower, z)
	return horizontal.AtVec(0), horizontal.AtVec(1), 2 * m.sigma * m.std.Rand()
}
