// Package likelihoods provides observation noise models for Gaussian process
// models: the mapping from latent function values to observed outputs, the
// transformation of latent predictive distributions into observation space,
// and the hyperparameter gradients of the noise model.
package likelihoods

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

// Metadata carries opaque per-observation context (e.g. output-group
// assignments for mixed-noise models). The inference core never interprets
// it; it is passed through to the likelihood verbatim. A nil Metadata is
// always valid.
type Metadata map[string]any

// OutputIndexKey is the Metadata key MixedNoise reads: an []int assigning
// each observation row to a noise group.
const OutputIndexKey = "output_index"

// Likelihood is an observation noise model.
type Likelihood interface {
	// PredictiveValues transforms a latent predictive distribution into
	// observation space. variance is M x 1 when fullCov is false and M x M
	// otherwise. Inputs are not mutated.
	PredictiveValues(mean, variance *mat.Dense, fullCov bool, md Metadata) (*mat.Dense, *mat.Dense)

	// PredictiveQuantiles returns one M x P matrix per requested quantile
	// level. Levels are percentages, e.g. 2.5 and 97.5 for a central 95%
	// interval. variance is the diagonal-only latent variance (M x 1).
	PredictiveQuantiles(mean, variance *mat.Dense, quantiles []float64, md Metadata) []*mat.Dense

	// Samples pushes latent function samples (M x S, one column per draw)
	// through the observation model.
	Samples(rng *rand.Rand, latent *mat.Dense, md Metadata) *mat.Dense

	// AccumulateGradient adds the inference-produced gradient terms to the
	// likelihood's hyperparameters, in Params() order.
	AccumulateGradient(dLdTheta []float64)

	Params() []*params.Param

	Name() string
}

// GaussianNoise marks likelihoods whose noise is (possibly heteroscedastic)
// Gaussian, making them eligible for exact inference.
type GaussianNoise interface {
	Likelihood

	// NoiseVariance returns the n-vector of per-observation noise variances
	// added to the diagonal of the training covariance.
	NoiseVariance(n int, md Metadata) *mat.VecDense

	// ExactGradients maps the diagonal of dL/d(K+Sigma) to the gradient of
	// the log marginal likelihood with respect to the noise
	// hyperparameters, in Params() order.
	ExactGradients(dLdKdiag *mat.VecDense, md Metadata) []float64
}

// MomentMatcher marks likelihoods usable by expectation propagation. The
// returned values are the log partition function of cavity times likelihood
// and its first two derivatives with respect to the cavity mean.
type MomentMatcher interface {
	Likelihood

	MomentMatch(y, cavMean, cavVar float64) (logZ, dLogZ, d2LogZ float64)
}
