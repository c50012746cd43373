package inference

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// threePointFixture is the 1-D reference problem used across the inference
// tests: X = [0 1 2]^T, Y = [0 1 0]^T, RBF(variance=1, lengthscale=1),
// Gaussian noise variance 0.1.
func threePointFixture() (*mat.Dense, *mat.Dense, *kernels.RBF, *likelihoods.Gaussian) {
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 0})
	return x, y, kernels.NewRBF(1.0, 1.0), likelihoods.NewGaussian(0.1)
}

// Reference values computed independently via a direct Cholesky solve of
// K + 0.1 I for the three-point fixture.
const (
	refLogMarginal = -3.493578023553
	refMeanAtOne   = 0.801746814597
)

func TestExactLogMarginalReferenceValue(t *testing.T) {
	x, y, k, lik := threePointFixture()
	_, lml, _, err := NewExact().Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}
	if math.Abs(lml-refLogMarginal) > 1e-6 {
		t.Errorf("log marginal = %.12f, want %.12f", lml, refLogMarginal)
	}
}

func TestExactWoodburyVectorReference(t *testing.T) {
	x, y, k, lik := threePointFixture()
	post, _, _, err := NewExact().Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}

	want := []float64{-0.973392705320, 1.982531854031, -0.973392705320}
	for i, w := range want {
		if got := post.WoodburyVector.At(i, 0); math.Abs(got-w) > 1e-9 {
			t.Errorf("woodbury vector[%d] = %.12f, want %.12f", i, got, w)
		}
	}

	// Predictive mean at x=1 through the Woodbury vector.
	xnew := mat.NewDense(1, 1, []float64{1})
	kx := k.CovMatrix(x, xnew)
	var mean float64
	for i := 0; i < 3; i++ {
		mean += kx.At(i, 0) * post.WoodburyVector.At(i, 0)
	}
	if math.Abs(mean-refMeanAtOne) > 1e-9 {
		t.Errorf("mean at 1 = %.12f, want %.12f", mean, refMeanAtOne)
	}
	if mean >= 1.0 || mean < 0.7 {
		t.Errorf("mean at 1 = %g, expected close to but below 1 under noise", mean)
	}
}

// TestExactWoodburyConsistency checks that the three posterior quantities
// agree: the inverse action applied to Y reproduces the solve, and the
// Cholesky factor reconstructs K + Sigma.
func TestExactWoodburyConsistency(t *testing.T) {
	x, y, k, lik := threePointFixture()
	post, _, _, err := NewExact().Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}

	var viaInv mat.Dense
	viaInv.Mul(post.WoodburyInv, y)
	for i := 0; i < 3; i++ {
		if d := math.Abs(viaInv.At(i, 0) - post.WoodburyVector.At(i, 0)); d > 1e-8 {
			t.Errorf("inverse action disagrees with solve at %d by %g", i, d)
		}
	}

	var l mat.TriDense
	post.WoodburyChol.LTo(&l)
	var recon mat.Dense
	recon.Mul(&l, l.T())
	cov := k.CovMatrix(x, x)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := cov.At(i, j)
			if i == j {
				want += 0.1
			}
			if math.Abs(recon.At(i, j)-want) > 1e-10 {
				t.Errorf("L L^T [%d][%d] = %g, want %g", i, j, recon.At(i, j), want)
			}
		}
	}
}

func TestExactShapeMismatch(t *testing.T) {
	x := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 0})
	_, _, _, err := NewExact().Inference(kernels.NewRBF(1, 1), x, likelihoods.NewGaussian(0.1), y, nil)

	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("err = %v, want ShapeMismatchError", err)
	}
}

func TestExactRejectsNonGaussianLikelihood(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	_, _, _, err := NewExact().Inference(kernels.NewRBF(1, 1), x, likelihoods.NewBernoulli(), y, nil)
	if err == nil {
		t.Fatal("expected error for non-Gaussian likelihood")
	}
}

// TestExactIndependentOutputColumns: duplicated output columns double the
// log marginal likelihood, since columns are independent under the shared
// kernel.
func TestExactIndependentOutputColumns(t *testing.T) {
	x, y, k, lik := threePointFixture()
	_, single, _, err := NewExact().Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}

	y2 := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 0, 0})
	post, double, _, err := NewExact().Inference(k, x, lik, y2, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}
	if math.Abs(double-2*single) > 1e-9 {
		t.Errorf("two-column log marginal = %g, want %g", double, 2*single)
	}

	// Both columns share the Woodbury vector values.
	for i := 0; i < 3; i++ {
		if post.WoodburyVector.At(i, 0) != post.WoodburyVector.At(i, 1) {
			t.Errorf("columns diverge at row %d", i)
		}
	}
}

// TestExactGradientsFiniteDifference validates dL/dK routing through the
// kernel and dL/dtheta through the likelihood against finite differences of
// the log marginal likelihood itself.
func TestExactGradientsFiniteDifference(t *testing.T) {
	x, y, k, lik := threePointFixture()
	strategy := NewExact()

	lmlAt := func() float64 {
		_, lml, _, err := strategy.Inference(k, x, lik, y, nil)
		if err != nil {
			t.Fatalf("inference failed: %v", err)
		}
		return lml
	}

	_, _, grads, err := strategy.Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}
	k.AccumulateGradient(grads.DLdK, x)
	lik.AccumulateGradient(grads.DLdTheta)

	const h = 1e-6
	allParams := append(k.Params(), lik.Params()...)
	for _, p := range allParams {
		v := p.Value()
		p.SetValue(v + h)
		plus := lmlAt()
		p.SetValue(v - h)
		minus := lmlAt()
		p.SetValue(v)

		want := (plus - minus) / (2 * h)
		if got := p.Gradient(); math.Abs(got-want) > 1e-4*math.Max(1, math.Abs(want)) {
			t.Errorf("%s: gradient %g, finite difference %g", p.Name(), got, want)
		}
	}
}

// TestExactNoiselessLimit: with vanishing noise and an interpolating kernel
// the posterior mean hits the training targets and the training variance
// collapses.
func TestExactNoiselessLimit(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0.3, -0.2, 0.9})
	k := kernels.NewRBF(1.0, 1.0)
	lik := likelihoods.NewGaussian(1e-10)

	post, _, _, err := NewExact().Inference(k, x, lik, y, nil)
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if d := math.Abs(post.Mean.At(i, 0) - y.At(i, 0)); d > 1e-6 {
			t.Errorf("training mean[%d] off target by %g", i, d)
		}
	}

	// Training-point predictive variance K - K A^-1 K collapses with the
	// noise.
	cov := k.CovMatrix(x, x)
	var wiK, reduction mat.Dense
	wiK.Mul(post.WoodburyInv, cov)
	reduction.Mul(cov, &wiK)
	for i := 0; i < 3; i++ {
		v := cov.At(i, i) - reduction.At(i, i)
		if v > 1e-6 || v < -1e-8 {
			t.Errorf("training variance[%d] = %g, want ~0", i, v)
		}
	}
}
