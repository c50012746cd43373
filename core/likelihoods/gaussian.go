package likelihoods

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/adalundhe/gpr/core/params"
)

// Gaussian is homoscedastic Gaussian observation noise with a single
// variance hyperparameter. It is the likelihood under which exact inference
// is available in closed form.
type Gaussian struct {
	variance *params.Param
}

// NewGaussian creates a Gaussian likelihood with the given noise variance,
// constrained positive.
func NewGaussian(variance float64) *Gaussian {
	return &Gaussian{variance: params.Positive("gaussian.variance", variance)}
}

// PredictiveValues adds the observation noise variance to the latent
// variance: diagonal entries when fullCov, every diagonal-only entry
// otherwise. The mean is unchanged.
func (l *Gaussian) PredictiveValues(mean, variance *mat.Dense, fullCov bool, _ Metadata) (*mat.Dense, *mat.Dense) {
	outMean := mat.DenseCopyOf(mean)
	outVar := mat.DenseCopyOf(variance)
	v := l.variance.Value()
	if fullCov {
		n, _ := outVar.Dims()
		for i := 0; i < n; i++ {
			outVar.Set(i, i, outVar.At(i, i)+v)
		}
		return outMean, outVar
	}
	outVar.Apply(func(_, _ int, x float64) float64 { return x + v }, outVar)
	return outMean, outVar
}

// PredictiveQuantiles returns mean + z_q * sqrt(variance + noise) per level,
// z_q the standard normal quantile of level/100.
func (l *Gaussian) PredictiveQuantiles(mean, variance *mat.Dense, quantiles []float64, _ Metadata) []*mat.Dense {
	m, p := mean.Dims()
	v := l.variance.Value()
	out := make([]*mat.Dense, len(quantiles))
	for qi, q := range quantiles {
		z := distuv.UnitNormal.Quantile(q / 100)
		qm := mat.NewDense(m, p, nil)
		for i := 0; i < m; i++ {
			sd := math.Sqrt(variance.At(i, 0) + v)
			for j := 0; j < p; j++ {
				qm.Set(i, j, mean.At(i, j)+z*sd)
			}
		}
		out[qi] = qm
	}
	return out
}

// Samples adds independent N(0, variance) noise to every latent draw.
func (l *Gaussian) Samples(rng *rand.Rand, latent *mat.Dense, _ Metadata) *mat.Dense {
	out := mat.DenseCopyOf(latent)
	sd := math.Sqrt(l.variance.Value())
	out.Apply(func(_, _ int, f float64) float64 {
		return f + rng.NormFloat64()*sd
	}, out)
	return out
}

func (l *Gaussian) AccumulateGradient(dLdTheta []float64) {
	l.variance.AccumulateGradient(dLdTheta[0])
}

func (l *Gaussian) Params() []*params.Param { return []*params.Param{l.variance} }

func (l *Gaussian) Name() string { return "gaussian" }

// Variance exposes the noise variance hyperparameter.
func (l *Gaussian) Variance() *params.Param { return l.variance }

// NoiseVariance returns a constant n-vector of the noise variance.
func (l *Gaussian) NoiseVariance(n int, _ Metadata) *mat.VecDense {
	v := l.variance.Value()
	vec := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		vec.SetVec(i, v)
	}
	return vec
}

// ExactGradients reduces the diagonal of dL/d(K+Sigma): the noise enters the
// training covariance as variance * I, so dL/dvariance is the trace term.
func (l *Gaussian) ExactGradients(dLdKdiag *mat.VecDense, _ Metadata) []float64 {
	var sum float64
	for i := 0; i < dLdKdiag.Len(); i++ {
		sum += dLdKdiag.AtVec(i)
	}
	return []float64{sum}
}

// MomentMatch integrates a Gaussian factor against a Gaussian cavity in
// closed form: logZ = log N(y; cavMean, cavVar + variance). Present so the
// expectation propagation path can be validated against exact inference.
func (l *Gaussian) MomentMatch(y, cavMean, cavVar float64) (logZ, dLogZ, d2LogZ float64) {
	v := cavVar + l.variance.Value()
	logZ = logNormPDF(y, cavMean, v)
	dLogZ = (y - cavMean) / v
	d2LogZ = -1 / v
	return logZ, dLogZ, d2LogZ
}
