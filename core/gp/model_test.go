package gp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/inference"
	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// fixtureModel builds the reference three-point regression model:
// X = [0 1 2]^T, Y = [0 1 0]^T, RBF(1, 1), Gaussian noise 0.1.
func fixtureModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 0})
	m, err := New(x, y, kernels.NewRBF(1.0, 1.0), likelihoods.NewGaussian(0.1), opts...)
	require.NoError(t, err)
	return m
}

const refLogMarginal = -3.493578023553

func TestNewShapeMismatch(t *testing.T) {
	x := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 0})
	_, err := New(x, y, kernels.NewRBF(1, 1), likelihoods.NewGaussian(0.1))

	var shapeErr *inference.ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}

func TestLogLikelihoodBeforeFirstInference(t *testing.T) {
	m := fixtureModel(t)
	_, err := m.LogLikelihood()

	var staleErr *StaleStateError
	require.ErrorAs(t, err, &staleErr)
}

func TestLogLikelihoodReferenceValue(t *testing.T) {
	m := fixtureModel(t)
	require.NoError(t, m.Refresh())

	lml, err := m.LogLikelihood()
	require.NoError(t, err)
	assert.InDelta(t, refLogMarginal, lml, 1e-6)
}

func TestDefaultStrategySelection(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	testCases := []struct {
		name     string
		lik      likelihoods.Likelihood
		strategy string
	}{
		{"gaussian", likelihoods.NewGaussian(0.1), "exact"},
		{"mixed_noise", likelihoods.NewMixedNoise(0.1, 0.2), "exact"},
		{"bernoulli", likelihoods.NewBernoulli(), "ep"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := New(x, y, kernels.NewRBF(1, 1), tc.lik)
			require.NoError(t, err)
			diag := m.Diagnostics()
			assert.Equal(t, tc.strategy, diag.Strategy)
			assert.True(t, diag.StrategyDefault)
		})
	}
}

func TestExplicitStrategyOverride(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	m, err := New(x, y, kernels.NewRBF(1, 1), likelihoods.NewGaussian(0.1),
		WithInference(inference.NewEP()))
	require.NoError(t, err)

	diag := m.Diagnostics()
	assert.Equal(t, "ep", diag.Strategy)
	assert.False(t, diag.StrategyDefault)
}

func TestHyperparameterChangeTriggersRecompute(t *testing.T) {
	m := fixtureModel(t)
	require.NoError(t, m.Refresh())
	before, err := m.LogLikelihood()
	require.NoError(t, err)

	rbf := m.Kernel().(*kernels.RBF)
	rbf.Lengthscale().SetValue(2.0)
	m.MarkStale()

	after, err := m.LogLikelihood()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Equal(t, 2, m.Diagnostics().Refreshes)
}

func TestRefreshIsCachedWhileFresh(t *testing.T) {
	m := fixtureModel(t)
	require.NoError(t, m.Refresh())
	require.NoError(t, m.Refresh())
	assert.Equal(t, 1, m.Diagnostics().Refreshes)
}

func TestSetDataInvalidatesPosterior(t *testing.T) {
	m := fixtureModel(t)
	require.NoError(t, m.Refresh())

	x := mat.NewDense(2, 1, []float64{0, 3})
	y := mat.NewDense(2, 1, []float64{1, -1})
	require.NoError(t, m.SetData(x, y))

	lml, err := m.LogLikelihood()
	require.NoError(t, err)
	assert.NotEqual(t, refLogMarginal, lml)
	assert.Equal(t, 2, m.Diagnostics().Refreshes)

	bad := mat.NewDense(3, 1, []float64{0, 1, 2})
	err = m.SetData(bad, y)
	var shapeErr *inference.ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}

func TestGradientRoutingAfterRefresh(t *testing.T) {
	m := fixtureModel(t)
	require.NoError(t, m.Refresh())

	for _, p := range m.Kernel().Params() {
		assert.NotZero(t, p.Gradient(), "kernel param %s has no gradient", p.Name())
	}
	for _, p := range m.Likelihood().Params() {
		assert.NotZero(t, p.Gradient(), "likelihood param %s has no gradient", p.Name())
	}
}

func TestNumericalInstabilitySurfaces(t *testing.T) {
	// Duplicate inputs with zero-ish noise produce a singular covariance;
	// with an undersized jitter budget the failure must surface as a typed
	// error rather than a silent fallback.
	x := mat.NewDense(2, 1, []float64{1, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	strategy := &inference.Exact{Jitter: inference.JitterConfig{
		InitialScale: 1e-300,
		Growth:       1,
		MaxAttempts:  2,
	}}
	m, err := New(x, y, kernels.NewRBF(1, 1), likelihoods.NewGaussian(1e-300),
		WithInference(strategy))
	require.NoError(t, err)

	err = m.Refresh()
	var instErr *inference.NumericalInstabilityError
	require.ErrorAs(t, err, &instErr)
}
