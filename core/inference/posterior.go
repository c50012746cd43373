// Package inference computes Gaussian process posteriors, log marginal
// likelihoods, and hyperparameter gradients. Exact closed-form inference
// covers Gaussian noise models; expectation propagation covers the rest.
//
// All linear algebra goes through Cholesky factorizations and triangular
// solves. A dense inverse is only ever formed as the inverse action of a
// factorization, never via general matrix inversion.
package inference

import "gonum.org/v1/gonum/mat"

// Posterior is the algebraic summary of a fitted Gaussian process: the
// quantities sufficient to compute predictive means and variances at new
// inputs without touching the training-data factorization again.
//
// A Posterior is immutable after construction. Every inference call builds a
// fresh one; it is replaced wholesale, never updated in place. The Posterior,
// the log marginal likelihood, and the gradient bundle returned by one
// inference call belong together and must not be mixed across calls.
type Posterior struct {
	// WoodburyVector is the N x P weighted residual (K + Sigma)^-1 Y. The
	// predictive mean at new inputs is K(Xnew, X) applied to it.
	WoodburyVector *mat.Dense

	// WoodburyInv is the N x N inverse action of (K + Sigma), used to
	// reduce the prior variance: var = Kxx - Kx^T WoodburyInv Kx.
	WoodburyInv *mat.SymDense

	// WoodburyChol is the lower-triangular Cholesky factor of the
	// (jittered) covariance-plus-noise matrix, kept for numerically stable
	// alternative solves.
	WoodburyChol *mat.Cholesky

	// Mean is the optional cached predictive mean at the training inputs,
	// for diagnostics. May be nil.
	Mean *mat.Dense

	// Cov is the optional cached predictive covariance at the training
	// inputs, for diagnostics. May be nil.
	Cov *mat.SymDense
}

// Gradients bundles the gradient terms produced by one inference call. Each
// term is consumed exactly once by the matching collaborator's gradient
// accumulation routine, then the bundle is discarded.
type Gradients struct {
	// DLdK is the N x N gradient of the log marginal likelihood with
	// respect to the kernel covariance matrix, routed to the kernel.
	DLdK *mat.Dense

	// DLdTheta is the gradient with respect to the likelihood's
	// hyperparameters, in the likelihood's Params() order. Routed to the
	// likelihood. Empty when the likelihood has no hyperparameters.
	DLdTheta []float64
}
