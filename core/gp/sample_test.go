package gp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

func TestSampleLatentShapes(t *testing.T) {
	m := fixtureModel(t, WithSeed(7))
	xnew := mat.NewDense(4, 1, []float64{-1, 0.5, 1.5, 3})

	for _, fullCov := range []bool{true, false} {
		samples, err := m.SampleLatent(xnew, 10, fullCov)
		require.NoError(t, err)
		r, c := samples.Dims()
		assert.Equal(t, 4, r)
		assert.Equal(t, 10, c)
	}
}

func TestSampleLatentSeedDeterminism(t *testing.T) {
	xnew := mat.NewDense(3, 1, []float64{0.25, 1, 1.75})

	a, err := fixtureModel(t, WithSeed(42)).SampleLatent(xnew, 5, true)
	require.NoError(t, err)
	b, err := fixtureModel(t, WithSeed(42)).SampleLatent(xnew, 5, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b), "identical seeds must give identical draws")

	c, err := fixtureModel(t, WithSeed(43)).SampleLatent(xnew, 5, true)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, c), "different seeds must give different draws")
}

// TestSampleLatentFullVsDiagonalJoint: with full covariance, draws at two
// strongly correlated points move together; with the diagonal treatment they
// are independent. The sample correlation across many draws must reflect
// that.
func TestSampleLatentFullVsDiagonalJoint(t *testing.T) {
	m := fixtureModel(t, WithSeed(11))
	// Two points far from the data, close to each other: high prior
	// correlation, little posterior reduction.
	xnew := mat.NewDense(2, 1, []float64{10, 10.1})
	const draws = 2000

	corr := func(samples *mat.Dense) float64 {
		var m0, m1 float64
		for s := 0; s < draws; s++ {
			m0 += samples.At(0, s)
			m1 += samples.At(1, s)
		}
		m0 /= draws
		m1 /= draws
		var c00, c11, c01 float64
		for s := 0; s < draws; s++ {
			d0 := samples.At(0, s) - m0
			d1 := samples.At(1, s) - m1
			c00 += d0 * d0
			c11 += d1 * d1
			c01 += d0 * d1
		}
		return c01 / math.Sqrt(c00*c11)
	}

	full, err := m.SampleLatent(xnew, draws, true)
	require.NoError(t, err)
	assert.Greater(t, corr(full), 0.9, "joint draws must be correlated")

	diag, err := m.SampleLatent(xnew, draws, false)
	require.NoError(t, err)
	assert.Less(t, math.Abs(corr(diag)), 0.2, "diagonal draws must be near-independent")
}

func TestSampleObservationsAddsNoise(t *testing.T) {
	m := fixtureModel(t, WithSeed(3))
	xnew := mat.NewDense(2, 1, []float64{0.5, 1.5})
	const draws = 4000

	latent, err := m.SampleLatent(xnew, draws, false)
	require.NoError(t, err)
	obs, err := m.SampleObservations(xnew, draws, false)
	require.NoError(t, err)

	// Observation draws carry an extra 0.1 noise variance on top of the
	// latent spread.
	rowVar := func(s *mat.Dense, i int) float64 {
		var mean float64
		for j := 0; j < draws; j++ {
			mean += s.At(i, j)
		}
		mean /= draws
		var v float64
		for j := 0; j < draws; j++ {
			d := s.At(i, j) - mean
			v += d * d
		}
		return v / draws
	}
	for i := 0; i < 2; i++ {
		assert.InDelta(t, rowVar(latent, i)+0.1, rowVar(obs, i), 0.03)
	}
}

func TestSampleObservationsBernoulliBinary(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	m, err := New(x, y, kernels.NewRBF(1, 1), likelihoods.NewBernoulli(), WithSeed(9))
	require.NoError(t, err)

	obs, err := m.SampleObservations(mat.NewDense(2, 1, []float64{-1.5, 1.5}), 50, false)
	require.NoError(t, err)
	r, c := obs.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := obs.At(i, j)
			require.True(t, v == 0 || v == 1, "observation %g is not binary", v)
		}
	}
}

func TestSampleLatentRejectsMultiOutput(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	m, err := New(x, y, kernels.NewRBF(1, 1), likelihoods.NewGaussian(0.1))
	require.NoError(t, err)

	_, err = m.SampleLatent(mat.NewDense(1, 1, []float64{0.5}), 3, true)
	require.Error(t, err)
}

func TestSampleLatentRejectsNonPositiveSize(t *testing.T) {
	m := fixtureModel(t)
	_, err := m.SampleLatent(mat.NewDense(1, 1, []float64{0.5}), 0, true)
	require.Error(t, err)
}
