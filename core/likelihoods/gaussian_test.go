package likelihoods

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGaussianPredictiveValuesAddsNoise(t *testing.T) {
	l := NewGaussian(0.25)
	mean := mat.NewDense(3, 1, []float64{1, 2, 3})
	variance := mat.NewDense(3, 1, []float64{0.1, 0.2, 0.3})

	outMean, outVar := l.PredictiveValues(mean, variance, false, nil)
	for i := 0; i < 3; i++ {
		if outMean.At(i, 0) != mean.At(i, 0) {
			t.Errorf("mean[%d] changed: %g", i, outMean.At(i, 0))
		}
		want := variance.At(i, 0) + 0.25
		if math.Abs(outVar.At(i, 0)-want) > 1e-12 {
			t.Errorf("variance[%d] = %g, want %g", i, outVar.At(i, 0), want)
		}
	}

	// Inputs must not be mutated.
	if variance.At(0, 0) != 0.1 {
		t.Errorf("input variance mutated: %g", variance.At(0, 0))
	}
}

func TestGaussianPredictiveValuesFullCov(t *testing.T) {
	l := NewGaussian(0.5)
	mean := mat.NewDense(2, 1, []float64{0, 0})
	cov := mat.NewDense(2, 2, []float64{1.0, 0.3, 0.3, 1.0})

	_, outCov := l.PredictiveValues(mean, cov, true, nil)
	if math.Abs(outCov.At(0, 0)-1.5) > 1e-12 || math.Abs(outCov.At(1, 1)-1.5) > 1e-12 {
		t.Errorf("diagonal = %g, %g, want 1.5", outCov.At(0, 0), outCov.At(1, 1))
	}
	if outCov.At(0, 1) != 0.3 {
		t.Errorf("off-diagonal changed: %g", outCov.At(0, 1))
	}
}

func TestGaussianQuantilesSymmetric(t *testing.T) {
	l := NewGaussian(0.1)
	mean := mat.NewDense(2, 1, []float64{1, -1})
	variance := mat.NewDense(2, 1, []float64{0.4, 0.9})

	qs := l.PredictiveQuantiles(mean, variance, []float64{2.5, 97.5}, nil)
	if len(qs) != 2 {
		t.Fatalf("got %d quantile matrices, want 2", len(qs))
	}
	for i := 0; i < 2; i++ {
		lo, hi := qs[0].At(i, 0), qs[1].At(i, 0)
		if lo >= hi {
			t.Errorf("row %d: lower quantile %g >= upper %g", i, lo, hi)
		}
		mid := (lo + hi) / 2
		if math.Abs(mid-mean.At(i, 0)) > 1e-9 {
			t.Errorf("row %d: interval midpoint %g, want %g", i, mid, mean.At(i, 0))
		}
		want := 1.959963984540054 * math.Sqrt(variance.At(i, 0)+0.1)
		if math.Abs(hi-mean.At(i, 0)-want) > 1e-9 {
			t.Errorf("row %d: half width %g, want %g", i, hi-mean.At(i, 0), want)
		}
	}
}

func TestGaussianSamplesSeedDeterminism(t *testing.T) {
	l := NewGaussian(0.3)
	latent := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	a := l.Samples(rand.New(rand.NewSource(5)), latent, nil)
	b := l.Samples(rand.New(rand.NewSource(5)), latent, nil)
	if !mat.Equal(a, b) {
		t.Error("samples differ across identical seeds")
	}
}

func TestGaussianMomentMatchFiniteDifference(t *testing.T) {
	l := NewGaussian(0.2)
	const h = 1e-5
	for _, tc := range []struct{ y, m, v float64 }{
		{0.5, 0.0, 1.0},
		{-1.0, 0.7, 0.3},
		{2.0, 2.0, 0.05},
	} {
		logZ, d1, d2 := l.MomentMatch(tc.y, tc.m, tc.v)

		lp, _, _ := l.MomentMatch(tc.y, tc.m+h, tc.v)
		lm, _, _ := l.MomentMatch(tc.y, tc.m-h, tc.v)
		if want := (lp - lm) / (2 * h); math.Abs(d1-want) > 1e-6 {
			t.Errorf("dLogZ = %g, finite difference = %g", d1, want)
		}
		if want := (lp - 2*logZ + lm) / (h * h); math.Abs(d2-want) > 1e-4 {
			t.Errorf("d2LogZ = %g, finite difference = %g", d2, want)
		}
	}
}

func TestMixedNoiseGroups(t *testing.T) {
	l := NewMixedNoise(0.1, 0.4)
	md := Metadata{OutputIndexKey: []int{0, 1, 1, 0}}

	noise := l.NoiseVariance(4, md)
	want := []float64{0.1, 0.4, 0.4, 0.1}
	for i, w := range want {
		if math.Abs(noise.AtVec(i)-w) > 1e-12 {
			t.Errorf("noise[%d] = %g, want %g", i, noise.AtVec(i), w)
		}
	}

	diag := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	grads := l.ExactGradients(diag, md)
	if math.Abs(grads[0]-5) > 1e-12 || math.Abs(grads[1]-5) > 1e-12 {
		t.Errorf("group gradients = %v, want [5 5]", grads)
	}
}

func TestMixedNoiseDefaultsToFirstGroup(t *testing.T) {
	l := NewMixedNoise(0.7, 0.1)
	noise := l.NoiseVariance(3, nil)
	for i := 0; i < 3; i++ {
		if math.Abs(noise.AtVec(i)-0.7) > 1e-12 {
			t.Errorf("noise[%d] = %g, want 0.7", i, noise.AtVec(i))
		}
	}
}
