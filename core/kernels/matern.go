package kernels

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

const (
	sqrt3 = 1.7320508075688772
	sqrt5 = 2.23606797749979
)

// Matern32 is the Matern kernel with smoothness 3/2:
//
//	k(a, b) = variance * (1 + sqrt(3) r) * exp(-sqrt(3) r),  r = ||a-b|| / lengthscale
type Matern32 struct {
	variance    *params.Param
	lengthscale *params.Param
}

func NewMatern32(variance, lengthscale float64) *Matern32 {
	return &Matern32{
		variance:    params.Positive("matern32.variance", variance),
		lengthscale: params.Positive("matern32.lengthscale", lengthscale),
	}
}

func (k *Matern32) CovMatrix(a, b *mat.Dense) *mat.Dense {
	v := k.variance.Value()
	ell := k.lengthscale.Value()
	cov := SquaredDistances(a, b)
	cov.Apply(func(_, _ int, d2 float64) float64 {
		r := math.Sqrt(d2) / ell
		return v * (1 + sqrt3*r) * math.Exp(-sqrt3*r)
	}, cov)
	return cov
}

func (k *Matern32) CovDiag(a *mat.Dense) *mat.VecDense {
	return constantDiag(a, k.variance.Value())
}

// AccumulateGradient uses
//
//	dk/dvariance    = k / variance
//	dk/dlengthscale = 3 * variance * r^2 * exp(-sqrt(3) r) / lengthscale
func (k *Matern32) AccumulateGradient(dLdK, x *mat.Dense) {
	v := k.variance.Value()
	ell := k.lengthscale.Value()

	d2 := SquaredDistances(x, x)
	n, m := d2.Dims()

	var dv, dl float64
	for i := 0; i < n; i++ {
		up := dLdK.RawRowView(i)
		dd := d2.RawRowView(i)
		for j := 0; j < m; j++ {
			r := math.Sqrt(dd[j]) / ell
			e := math.Exp(-sqrt3 * r)
			dv += up[j] * (1 + sqrt3*r) * e
			dl += up[j] * 3 * v * r * r * e / ell
		}
	}

	k.variance.AccumulateGradient(dv)
	k.lengthscale.AccumulateGradient(dl)
}

func (k *Matern32) Params() []*params.Param {
	return []*params.Param{k.variance, k.lengthscale}
}

func (k *Matern32) Name() string { return "matern32" }

// Matern52 is the Matern kernel with smoothness 5/2:
//
//	k(a, b) = variance * (1 + sqrt(5) r + 5 r^2 / 3) * exp(-sqrt(5) r)
type Matern52 struct {
	variance    *params.Param
	lengthscale *params.Param
}

func NewMatern52(variance, lengthscale float64) *Matern52 {
	return &Matern52{
		variance:    params.Positive("matern52.variance", variance),
		lengthscale: params.Positive("matern52.lengthscale", lengthscale),
	}
}

func (k *Matern52) CovMatrix(a, b *mat.Dense) *mat.Dense {
	v := k.variance.Value()
	ell := k.lengthscale.Value()
	cov := SquaredDistances(a, b)
	cov.Apply(func(_, _ int, d2 float64) float64 {
		r := math.Sqrt(d2) / ell
		return v * (1 + sqrt5*r + 5*r*r/3) * math.Exp(-sqrt5*r)
	}, cov)
	return cov
}

func (k *Matern52) CovDiag(a *mat.Dense) *mat.VecDense {
	return constantDiag(a, k.variance.Value())
}

// AccumulateGradient uses
//
//	dk/dvariance    = k / variance
//	dk/dlengthscale = (5 variance r^2 / 3) * (1 + sqrt(5) r) * exp(-sqrt(5) r) / lengthscale
func (k *Matern52) AccumulateGradient(dLdK, x *mat.Dense) {
	v := k.variance.Value()
	ell := k.lengthscale.Value()

	d2 := SquaredDistances(x, x)
	n, m := d2.Dims()

	var dv, dl float64
	for i := 0; i < n; i++ {
		up := dLdK.RawRowView(i)
		dd := d2.RawRowView(i)
		for j := 0; j < m; j++ {
			r := math.Sqrt(dd[j]) / ell
			e := math.Exp(-sqrt5 * r)
			dv += up[j] * (1 + sqrt5*r + 5*r*r/3) * e
			dl += up[j] * (5 * v * r * r / 3) * (1 + sqrt5*r) * e / ell
		}
	}

	k.variance.AccumulateGradient(dv)
	k.lengthscale.AccumulateGradient(dl)
}

func (k *Matern52) Params() []*params.Param {
	return []*params.Param{k.variance, k.lengthscale}
}

func (k *Matern52) Name() string { return "matern52" }

// constantDiag returns an |a|-vector filled with v. Stationary kernels have a
// constant diagonal equal to their variance.
func constantDiag(a *mat.Dense, v float64) *mat.VecDense {
	n, _ := a.Dims()
	diag := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		diag.SetVec(i, v)
	}
	return diag
}
