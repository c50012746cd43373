package likelihoods

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/adalundhe/gpr/core/params"
)

// Bernoulli is a binary classification likelihood with a probit link:
// p(y=1 | f) = Phi(f). Observations are {0, 1}, mapped internally to signs.
// It has no hyperparameters; inference goes through expectation propagation.
type Bernoulli struct{}

func NewBernoulli() *Bernoulli { return &Bernoulli{} }

// PredictiveValues integrates the probit link against the latent Gaussian:
// p = Phi(mu / sqrt(1 + var)), with Bernoulli variance p(1-p). With fullCov
// the diagonal is used; the probit integral has no closed form for joint
// covariances.
func (l *Bernoulli) PredictiveValues(mean, variance *mat.Dense, fullCov bool, _ Metadata) (*mat.Dense, *mat.Dense) {
	m, p := mean.Dims()
	outMean := mat.NewDense(m, p, nil)
	outVar := mat.NewDense(m, 1, nil)
	for i := 0; i < m; i++ {
		v := variance.At(i, 0)
		if fullCov {
			v = variance.At(i, i)
		}
		for j := 0; j < p; j++ {
			prob := normCDF(mean.At(i, j) / math.Sqrt(1+v))
			outMean.Set(i, j, prob)
			if j == 0 {
				outVar.Set(i, 0, prob*(1-prob))
			}
		}
	}
	return outMean, outVar
}

// PredictiveQuantiles maps latent Gaussian quantiles through the link.
func (l *Bernoulli) PredictiveQuantiles(mean, variance *mat.Dense, quantiles []float64, _ Metadata) []*mat.Dense {
	m, p := mean.Dims()
	out := make([]*mat.Dense, len(quantiles))
	for qi, q := range quantiles {
		z := distuv.UnitNormal.Quantile(q / 100)
		qm := mat.NewDense(m, p, nil)
		for i := 0; i < m; i++ {
			sd := math.Sqrt(variance.At(i, 0))
			for j := 0; j < p; j++ {
				qm.Set(i, j, normCDF(mean.At(i, j)+z*sd))
			}
		}
		out[qi] = qm
	}
	return out
}

// Samples thresholds a uniform draw at Phi(f) per latent value, yielding
// {0, 1} observations.
func (l *Bernoulli) Samples(rng *rand.Rand, latent *mat.Dense, _ Metadata) *mat.Dense {
	out := mat.DenseCopyOf(latent)
	out.Apply(func(_, _ int, f float64) float64 {
		if rng.Float64() < normCDF(f) {
			return 1
		}
		return 0
	}, out)
	return out
}

func (l *Bernoulli) AccumulateGradient(_ []float64) {}

func (l *Bernoulli) Params() []*params.Param { return nil }

func (l *Bernoulli) Name() string { return "bernoulli" }

// MomentMatch computes the probit tilted-distribution moments:
//
//	Z = Phi(s * cavMean / sqrt(1 + cavVar)),  s = 2y - 1
//
// using the numerically stable logPhi evaluation for extreme arguments.
func (l *Bernoulli) MomentMatch(y, cavMean, cavVar float64) (logZ, dLogZ, d2LogZ float64) {
	s := 2*y - 1
	denom := math.Sqrt(1 + cavVar)
	z := s * cavMean / denom
	lp, ratio := logPhi(z)
	logZ = lp
	dLogZ = s * ratio / denom
	d2LogZ = -ratio * (z + ratio) / (1 + cavVar)
	return logZ, dLogZ, d2LogZ
}
