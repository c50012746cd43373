package gp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/inference"
)

// SampleLatent draws size joint samples of the latent function at xnew,
// returned as an M x size matrix (one column per draw). Requires a single
// output column.
//
// With fullCov the draws come from the full multivariate normal via a
// Cholesky factor of the predictive covariance (stabilized by the default
// jitter policy, since predictive covariances are often near-singular). With
// fullCov false the covariance is treated as diagonal: per-point independent
// draws, a deliberately smaller joint distribution.
func (m *Model) SampleLatent(xnew *mat.Dense, size int, fullCov bool) (*mat.Dense, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gp: SampleLatent: size must be positive, got %d", size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	if _, p := m.y.Dims(); p != 1 {
		return nil, &inference.ShapeMismatchError{
			Op:   "gp.SampleLatent",
			Want: "single output column",
			Got:  fmt.Sprintf("%d output columns", p),
		}
	}

	mean, variance, err := m.rawPredictLocked(xnew, fullCov)
	if err != nil {
		return nil, err
	}
	nTest, _ := xnew.Dims()
	samples := mat.NewDense(nTest, size, nil)

	if !fullCov {
		for i := 0; i < nTest; i++ {
			mu := mean.At(i, 0)
			sd := math.Sqrt(variance.At(i, 0))
			for s := 0; s < size; s++ {
				samples.Set(i, s, mu+sd*m.rng.NormFloat64())
			}
		}
		return samples, nil
	}

	sym := mat.NewSymDense(nTest, nil)
	for i := 0; i < nTest; i++ {
		for j := i; j < nTest; j++ {
			// Average the off-diagonal pair; rounding can leave the
			// computed covariance slightly asymmetric.
			sym.SetSym(i, j, 0.5*(variance.At(i, j)+variance.At(j, i)))
		}
	}
	chol, _, err := inference.StableCholesky("gp.SampleLatent", sym, inference.DefaultJitterConfig())
	if err != nil {
		return nil, err
	}
	var l mat.TriDense
	chol.LTo(&l)

	z := mat.NewVecDense(nTest, nil)
	f := mat.NewVecDense(nTest, nil)
	for s := 0; s < size; s++ {
		for i := 0; i < nTest; i++ {
			z.SetVec(i, m.rng.NormFloat64())
		}
		f.MulVec(&l, z)
		for i := 0; i < nTest; i++ {
			samples.Set(i, s, mean.At(i, 0)+f.AtVec(i))
		}
	}
	return samples, nil
}

// SampleObservations draws latent samples and pushes them through the
// likelihood's observation model (adding noise for Gaussian likelihoods,
// thresholding for Bernoulli, and so on).
func (m *Model) SampleObservations(xnew *mat.Dense, size int, fullCov bool) (*mat.Dense, error) {
	latent, err := m.SampleLatent(xnew, size, fullCov)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lik.Samples(m.rng, latent, m.md), nil
}
