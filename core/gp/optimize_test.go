package gp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// sineFixture samples a smooth function with known noise so the optimizer
// has structure to recover.
func sineFixture(n int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		xi := float64(i) / float64(n-1) * 6
		x.Set(i, 0, xi)
		y.Set(i, 0, math.Sin(xi)+0.1*rng.NormFloat64())
	}
	return x, y
}

func TestOptimizeImprovesLogMarginal(t *testing.T) {
	x, y := sineFixture(20, 1)
	// Deliberately mis-set hyperparameters.
	m, err := New(x, y, kernels.NewRBF(0.2, 3.0), likelihoods.NewGaussian(1.0))
	require.NoError(t, err)

	report, err := m.Optimize(DefaultOptimizeConfig())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.FinalLogML, report.InitialLogML)
	assert.Greater(t, report.FinalLogML-report.InitialLogML, 1.0,
		"mis-set hyperparameters should leave large headroom")

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "exact", report.Strategy)
	assert.NotEmpty(t, report.Status)
	assert.Greater(t, report.FuncEvaluations, 0)

	// Positivity constraints must hold at the optimum.
	for name, v := range report.Parameters {
		assert.Greater(t, v, 0.0, "parameter %s", name)
	}

	// The model is left fresh at the optimized point.
	lml, err := m.LogLikelihood()
	require.NoError(t, err)
	assert.InDelta(t, report.FinalLogML, lml, 1e-12)
}

func TestOptimizeRespectsFixedParameters(t *testing.T) {
	x, y := sineFixture(15, 2)
	k := kernels.NewRBF(1.0, 1.0)
	k.Lengthscale().Fix()
	m, err := New(x, y, k, likelihoods.NewGaussian(0.5))
	require.NoError(t, err)

	_, err = m.Optimize(DefaultOptimizeConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, k.Lengthscale().Value(), "fixed parameter must not move")
}

func TestOptimizeNoFreeParameters(t *testing.T) {
	x, y := sineFixture(10, 3)
	k := kernels.NewRBF(1.0, 1.0)
	lik := likelihoods.NewGaussian(0.1)
	for _, p := range append(k.Params(), lik.Params()...) {
		p.Fix()
	}
	m, err := New(x, y, k, lik)
	require.NoError(t, err)

	_, err = m.Optimize(DefaultOptimizeConfig())
	require.Error(t, err)
}
