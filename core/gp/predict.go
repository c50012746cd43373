package gp

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// negVarianceLogFloor: clamped variances below this magnitude indicate more
// than harmless rounding and are logged.
const negVarianceLogFloor = -1e-8

// RawPredict computes the latent-function predictive distribution at xnew,
// before any observation noise. The mean is M x P. With fullCov the variance
// is the full M x M covariance; otherwise it is the M x 1 diagonal, computed
// without materializing the M x M matrix.
//
// Diagonal variances are clamped at zero: analytic cancellation can leave
// small negative floating-point results.
func (m *Model) RawPredict(xnew *mat.Dense, fullCov bool) (*mat.Dense, *mat.Dense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, nil, err
	}
	return m.rawPredictLocked(xnew, fullCov)
}

func (m *Model) rawPredictLocked(xnew *mat.Dense, fullCov bool) (*mat.Dense, *mat.Dense, error) {
	nTest, _ := xnew.Dims()
	_, p := m.y.Dims()

	// kx is N x M: covariance between training inputs and new inputs.
	kx := m.kern.CovMatrix(m.x, xnew)

	// wiKx = WoodburyInv * kx, shared by both variance paths.
	var wiKx mat.Dense
	wiKx.Mul(m.posterior.WoodburyInv, kx)

	mean := mat.NewDense(nTest, p, nil)
	mean.Mul(kx.T(), m.posterior.WoodburyVector)

	if fullCov {
		// var = K(xnew, xnew) - kx^T WoodburyInv kx
		cov := m.kern.CovMatrix(xnew, xnew)
		var reduction mat.Dense
		reduction.Mul(kx.T(), &wiKx)
		cov.Sub(cov, &reduction)
		return mean, cov, nil
	}

	// Diagonal only: kdiag_i - sum_j wiKx[j][i] * kx[j][i], the algebraic
	// diagonal of the expression above without the M x M product.
	kdiag := m.kern.CovDiag(xnew)
	variance := mat.NewDense(nTest, 1, nil)
	nTrain, _ := kx.Dims()
	for i := 0; i < nTest; i++ {
		v := kdiag.AtVec(i)
		for j := 0; j < nTrain; j++ {
			v -= wiKx.At(j, i) * kx.At(j, i)
		}
		if v < 0 {
			if v < negVarianceLogFloor {
				slog.Debug("clamping negative predictive variance",
					slog.Int("point", i),
					slog.Float64("variance", v))
			}
			v = 0
		}
		variance.Set(i, 0, v)
	}
	return mean, variance, nil
}

// Predict computes the predictive distribution in observation space: the
// latent prediction pushed through the likelihood's noise model.
func (m *Model) Predict(xnew *mat.Dense, fullCov bool) (*mat.Dense, *mat.Dense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, nil, err
	}
	mean, variance, err := m.rawPredictLocked(xnew, fullCov)
	if err != nil {
		return nil, nil, err
	}
	outMean, outVar := m.lik.PredictiveValues(mean, variance, fullCov, m.md)
	return outMean, outVar, nil
}

// DefaultQuantiles bound the central 95% predictive interval.
var DefaultQuantiles = []float64{2.5, 97.5}

// PredictQuantiles returns one M x P matrix per requested quantile level
// (percentages). An empty levels slice requests DefaultQuantiles.
func (m *Model) PredictQuantiles(xnew *mat.Dense, levels []float64) ([]*mat.Dense, error) {
	if len(levels) == 0 {
		levels = DefaultQuantiles
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	mean, variance, err := m.rawPredictLocked(xnew, false)
	if err != nil {
		return nil, err
	}
	return m.lik.PredictiveQuantiles(mean, variance, levels, m.md), nil
}
