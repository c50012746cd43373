package likelihoods

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/adalundhe/gpr/core/params"
)

// MixedNoise is heteroscedastic Gaussian noise: each observation row belongs
// to one of several noise groups, selected by the OutputIndexKey metadata
// entry. Rows without metadata fall into group 0. Eligible for exact
// inference.
type MixedNoise struct {
	variances []*params.Param
}

// NewMixedNoise creates a mixed-noise likelihood with one variance per
// group, each constrained positive.
func NewMixedNoise(variances ...float64) *MixedNoise {
	ps := make([]*params.Param, len(variances))
	for i, v := range variances {
		ps[i] = params.Positive(fmt.Sprintf("mixed.variance[%d]", i), v)
	}
	return &MixedNoise{variances: ps}
}

// groups resolves the per-row group assignment for n rows.
func (l *MixedNoise) groups(n int, md Metadata) []int {
	if md != nil {
		if idx, ok := md[OutputIndexKey].([]int); ok && len(idx) == n {
			return idx
		}
	}
	return make([]int, n)
}

func (l *MixedNoise) rowVariance(i int, groups []int) float64 {
	g := groups[i]
	if g < 0 || g >= len(l.variances) {
		g = 0
	}
	return l.variances[g].Value()
}

func (l *MixedNoise) PredictiveValues(mean, variance *mat.Dense, fullCov bool, md Metadata) (*mat.Dense, *mat.Dense) {
	outMean := mat.DenseCopyOf(mean)
	outVar := mat.DenseCopyOf(variance)
	n, _ := outVar.Dims()
	groups := l.groups(n, md)
	if fullCov {
		for i := 0; i < n; i++ {
			outVar.Set(i, i, outVar.At(i, i)+l.rowVariance(i, groups))
		}
		return outMean, outVar
	}
	for i := 0; i < n; i++ {
		outVar.Set(i, 0, outVar.At(i, 0)+l.rowVariance(i, groups))
	}
	return outMean, outVar
}

func (l *MixedNoise) PredictiveQuantiles(mean, variance *mat.Dense, quantiles []float64, md Metadata) []*mat.Dense {
	m, p := mean.Dims()
	groups := l.groups(m, md)
	out := make([]*mat.Dense, len(quantiles))
	for qi, q := range quantiles {
		z := distuv.UnitNormal.Quantile(q / 100)
		qm := mat.NewDense(m, p, nil)
		for i := 0; i < m; i++ {
			sd := math.Sqrt(variance.At(i, 0) + l.rowVariance(i, groups))
			for j := 0; j < p; j++ {
				qm.Set(i, j, mean.At(i, j)+z*sd)
			}
		}
		out[qi] = qm
	}
	return out
}

func (l *MixedNoise) Samples(rng *rand.Rand, latent *mat.Dense, md Metadata) *mat.Dense {
	out := mat.DenseCopyOf(latent)
	n, s := out.Dims()
	groups := l.groups(n, md)
	for i := 0; i < n; i++ {
		sd := math.Sqrt(l.rowVariance(i, groups))
		for j := 0; j < s; j++ {
			out.Set(i, j, out.At(i, j)+rng.NormFloat64()*sd)
		}
	}
	return out
}

func (l *MixedNoise) AccumulateGradient(dLdTheta []float64) {
	for i, p := range l.variances {
		p.AccumulateGradient(dLdTheta[i])
	}
}

func (l *MixedNoise) Params() []*params.Param { return l.variances }

func (l *MixedNoise) Name() string { return "mixed_noise" }

// NoiseVariance builds the heteroscedastic diagonal from the per-row group
// assignment.
func (l *MixedNoise) NoiseVariance(n int, md Metadata) *mat.VecDense {
	groups := l.groups(n, md)
	vec := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		vec.SetVec(i, l.rowVariance(i, groups))
	}
	return vec
}

// ExactGradients sums the dL/d(K+Sigma) diagonal per noise group.
func (l *MixedNoise) ExactGradients(dLdKdiag *mat.VecDense, md Metadata) []float64 {
	n := dLdKdiag.Len()
	groups := l.groups(n, md)
	out := make([]float64, len(l.variances))
	for i := 0; i < n; i++ {
		g := groups[i]
		if g < 0 || g >= len(out) {
			g = 0
		}
		out[g] += dLdKdiag.AtVec(i)
	}
	return out
}
