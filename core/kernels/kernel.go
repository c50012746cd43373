// Package kernels provides covariance functions for Gaussian process models.
//
// A Kernel evaluates covariance matrices between input sets, the diagonal of
// the self-covariance (without materializing the full matrix), and
// accumulates hyperparameter gradients given an upstream dL/dK. Kernels are
// composed with Sum and Product.
package kernels

import (
	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

// Kernel is a covariance function over row-vector inputs.
//
// Implementations must be deterministic: identical inputs and hyperparameter
// values produce identical matrices.
type Kernel interface {
	// CovMatrix returns the |a| x |b| covariance matrix K(a, b).
	CovMatrix(a, b *mat.Dense) *mat.Dense

	// CovDiag returns the diagonal of CovMatrix(a, a) as an |a|-vector.
	CovDiag(a *mat.Dense) *mat.VecDense

	// AccumulateGradient adds dL/dtheta to every hyperparameter, where dLdK
	// is the upstream gradient of the objective with respect to the
	// covariance matrix CovMatrix(x, x).
	AccumulateGradient(dLdK *mat.Dense, x *mat.Dense)

	// Params returns the kernel's hyperparameters, children included.
	Params() []*params.Param

	Name() string
}

// gradDot returns sum_ij upstream[i][j] * factor[i][j], the scalar gradient
// contribution for a hyperparameter whose per-entry derivative is factor.
func gradDot(upstream, factor *mat.Dense) float64 {
	r, c := upstream.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		u := upstream.RawRowView(i)
		f := factor.RawRowView(i)
		for j := 0; j < c; j++ {
			sum += u[j] * f[j]
		}
	}
	return sum
}
