package inference

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// Exact is closed-form inference for (possibly heteroscedastic) Gaussian
// noise. One Cholesky factorization of K + Sigma yields the posterior, the
// log marginal likelihood, and every gradient term; all subsequent solves
// are triangular.
type Exact struct {
	Jitter JitterConfig
}

// NewExact returns exact inference with the default jitter policy.
func NewExact() *Exact {
	return &Exact{Jitter: DefaultJitterConfig()}
}

func (e *Exact) Name() string { return "exact" }

// Inference computes, for A = K + Sigma with Cholesky factor L:
//
//	woodbury_vector = A^-1 Y            (two triangular solves)
//	woodbury_inv    = A^-1              (triangular solve pair against I)
//	log marginal    = -1/2 Y^T A^-1 Y - P/2 log|A| - NP/2 log(2pi)
//	dL/dK           = 1/2 (sum_p w_p w_p^T - P A^-1)
//
// Output columns are independent under the shared kernel, so the likelihood
// sums across them.
func (e *Exact) Inference(k kernels.Kernel, x *mat.Dense, lik likelihoods.Likelihood, y *mat.Dense, md likelihoods.Metadata) (*Posterior, float64, *Gradients, error) {
	n, p, err := checkShapes("exact", x, y)
	if err != nil {
		return nil, 0, nil, err
	}

	gn, ok := lik.(likelihoods.GaussianNoise)
	if !ok {
		return nil, 0, nil, fmt.Errorf("inference: exact requires a Gaussian noise likelihood, got %s", lik.Name())
	}

	cov := k.CovMatrix(x, x)
	noise := gn.NoiseVariance(n, md)

	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, cov.At(i, j))
		}
		a.SetSym(i, i, a.At(i, i)+noise.AtVec(i))
	}

	chol, _, err := StableCholesky("exact", a, e.Jitter)
	if err != nil {
		return nil, 0, nil, err
	}

	wv := mat.NewDense(n, p, nil)
	if err := chol.SolveTo(wv, y); err != nil {
		return nil, 0, nil, fmt.Errorf("inference: exact: triangular solve: %w", err)
	}

	winv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(winv); err != nil {
		return nil, 0, nil, fmt.Errorf("inference: exact: inverse action: %w", err)
	}

	var yW float64
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			yW += y.At(i, j) * wv.At(i, j)
		}
	}
	lml := -0.5*yW - 0.5*float64(p)*chol.LogDet() - 0.5*float64(n*p)*log2Pi

	// dL/dK = 1/2 (W W^T - P A^-1), with W W^T summing the per-column outer
	// products.
	dLdK := mat.NewDense(n, n, nil)
	dLdK.Mul(wv, wv.T())
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dLdK.Set(i, j, 0.5*(dLdK.At(i, j)-float64(p)*winv.At(i, j)))
		}
	}

	diag := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		diag.SetVec(i, dLdK.At(i, i))
	}
	dLdTheta := gn.ExactGradients(diag, md)

	trainMean := mat.NewDense(n, p, nil)
	trainMean.Mul(cov, wv)

	post := &Posterior{
		WoodburyVector: wv,
		WoodburyInv:    winv,
		WoodburyChol:   chol,
		Mean:           trainMean,
	}
	return post, lml, &Gradients{DLdK: dLdK, DLdTheta: dLdTheta}, nil
}
