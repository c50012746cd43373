package kernels

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

// RBF is the squared-exponential kernel
//
//	k(a, b) = variance * exp(-||a-b||^2 / (2 * lengthscale^2))
//
// with a single lengthscale shared across input dimensions.
type RBF struct {
	variance    *params.Param
	lengthscale *params.Param
}

// NewRBF creates an RBF kernel. Both hyperparameters are constrained
// positive.
func NewRBF(variance, lengthscale float64) *RBF {
	return &RBF{
		variance:    params.Positive("rbf.variance", variance),
		lengthscale: params.Positive("rbf.lengthscale", lengthscale),
	}
}

func (k *RBF) CovMatrix(a, b *mat.Dense) *mat.Dense {
	v := k.variance.Value()
	ell2 := k.lengthscale.Value() * k.lengthscale.Value()
	cov := SquaredDistances(a, b)
	cov.Apply(func(_, _ int, d2 float64) float64 {
		return v * math.Exp(-d2/(2*ell2))
	}, cov)
	return cov
}

func (k *RBF) CovDiag(a *mat.Dense) *mat.VecDense {
	n, _ := a.Dims()
	diag := mat.NewVecDense(n, nil)
	v := k.variance.Value()
	for i := 0; i < n; i++ {
		diag.SetVec(i, v)
	}
	return diag
}

// AccumulateGradient uses
//
//	dk/dvariance    = k / variance
//	dk/dlengthscale = k * d2 / lengthscale^3
func (k *RBF) AccumulateGradient(dLdK *mat.Dense, x *mat.Dense) {
	v := k.variance.Value()
	ell := k.lengthscale.Value()
	ell2 := ell * ell

	d2 := SquaredDistances(x, x)
	n, m := d2.Dims()

	var dv, dl float64
	for i := 0; i < n; i++ {
		up := dLdK.RawRowView(i)
		dd := d2.RawRowView(i)
		for j := 0; j < m; j++ {
			cov := v * math.Exp(-dd[j]/(2*ell2))
			dv += up[j] * cov / v
			dl += up[j] * cov * dd[j] / (ell2 * ell)
		}
	}

	k.variance.AccumulateGradient(dv)
	k.lengthscale.AccumulateGradient(dl)
}

func (k *RBF) Params() []*params.Param {
	return []*params.Param{k.variance, k.lengthscale}
}

func (k *RBF) Name() string { return "rbf" }

// Variance exposes the variance hyperparameter.
func (k *RBF) Variance() *params.Param { return k.variance }

// Lengthscale exposes the lengthscale hyperparameter.
func (k *RBF) Lengthscale() *params.Param { return k.lengthscale }
