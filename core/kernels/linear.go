package kernels

import (
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

// Linear is the dot-product kernel k(a, b) = variance * a.b.
type Linear struct {
	variance *params.Param
}

func NewLinear(variance float64) *Linear {
	return &Linear{variance: params.Positive("linear.variance", variance)}
}

func (k *Linear) CovMatrix(a, b *mat.Dense) *mat.Dense {
	na, _ := a.Dims()
	nb, _ := b.Dims()
	cov := mat.NewDense(na, nb, nil)
	cov.Mul(a, b.T())
	cov.Scale(k.variance.Value(), cov)
	return cov
}

func (k *Linear) CovDiag(a *mat.Dense) *mat.VecDense {
	n, _ := a.Dims()
	v := k.variance.Value()
	diag := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		row := a.RawRowView(i)
		var norm float64
		for _, x := range row {
			norm += x * x
		}
		diag.SetVec(i, v*norm)
	}
	return diag
}

// AccumulateGradient uses dk/dvariance = a.b = k / variance.
func (k *Linear) AccumulateGradient(dLdK, x *mat.Dense) {
	n, _ := x.Dims()
	dot := mat.NewDense(n, n, nil)
	dot.Mul(x, x.T())
	k.variance.AccumulateGradient(gradDot(dLdK, dot))
}

func (k *Linear) Params() []*params.Param { return []*params.Param{k.variance} }

func (k *Linear) Name() string { return "linear" }

// Bias is the constant kernel k(a, b) = variance.
type Bias struct {
	variance *params.Param
}

func NewBias(variance float64) *Bias {
	return &Bias{variance: params.Positive("bias.variance", variance)}
}

func (k *Bias) CovMatrix(a, b *mat.Dense) *mat.Dense {
	na, _ := a.Dims()
	nb, _ := b.Dims()
	cov := mat.NewDense(na, nb, nil)
	v := k.variance.Value()
	cov.Apply(func(_, _ int, _ float64) float64 { return v }, cov)
	return cov
}

func (k *Bias) CovDiag(a *mat.Dense) *mat.VecDense {
	return constantDiag(a, k.variance.Value())
}

func (k *Bias) AccumulateGradient(dLdK, _ *mat.Dense) {
	n, m := dLdK.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		row := dLdK.RawRowView(i)
		for j := 0; j < m; j++ {
			sum += row[j]
		}
	}
	k.variance.AccumulateGradient(sum)
}

func (k *Bias) Params() []*params.Param { return []*params.Param{k.variance} }

func (k *Bias) Name() string { return "bias" }

// White is the white-noise kernel: variance * I when evaluated between a set
// of inputs and itself, zero between distinct sets. Its diagonal is always
// the variance.
type White struct {
	variance *params.Param
}

func NewWhite(variance float64) *White {
	return &White{variance: params.Positive("white.variance", variance)}
}

// CovMatrix treats pointer-identical inputs as "the same set". Evaluating
// between training inputs and prediction inputs therefore contributes
// nothing, which is the standard white-noise prediction semantics.
func (k *White) CovMatrix(a, b *mat.Dense) *mat.Dense {
	na, _ := a.Dims()
	nb, _ := b.Dims()
	cov := mat.NewDense(na, nb, nil)
	if a == b {
		v := k.variance.Value()
		for i := 0; i < na && i < nb; i++ {
			cov.Set(i, i, v)
		}
	}
	return cov
}

func (k *White) CovDiag(a *mat.Dense) *mat.VecDense {
	return constantDiag(a, k.variance.Value())
}

func (k *White) AccumulateGradient(dLdK, _ *mat.Dense) {
	n, _ := dLdK.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		sum += dLdK.At(i, i)
	}
	k.variance.AccumulateGradient(sum)
}

func (k *White) Params() []*params.Param { return []*params.Param{k.variance} }

func (k *White) Name() string { return "white" }
