package kernels

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/params"
)

// Sum is the kernel k = k1 + k2 + ... The upstream gradient passes to every
// child unchanged.
type Sum struct {
	children []Kernel
}

func NewSum(children ...Kernel) *Sum {
	return &Sum{children: children}
}

func (k *Sum) CovMatrix(a, b *mat.Dense) *mat.Dense {
	cov := k.children[0].CovMatrix(a, b)
	for _, c := range k.children[1:] {
		cov.Add(cov, c.CovMatrix(a, b))
	}
	return cov
}

func (k *Sum) CovDiag(a *mat.Dense) *mat.VecDense {
	diag := k.children[0].CovDiag(a)
	for _, c := range k.children[1:] {
		diag.AddVec(diag, c.CovDiag(a))
	}
	return diag
}

func (k *Sum) AccumulateGradient(dLdK, x *mat.Dense) {
	for _, c := range k.children {
		c.AccumulateGradient(dLdK, x)
	}
}

func (k *Sum) Params() []*params.Param { return childParams(k.children) }

func (k *Sum) Name() string { return combineName("sum", k.children) }

// Product is the kernel k = k1 * k2 * ... (elementwise). Each child receives
// the upstream gradient multiplied by the product of its siblings'
// covariances.
type Product struct {
	children []Kernel
}

func NewProduct(children ...Kernel) *Product {
	return &Product{children: children}
}

func (k *Product) CovMatrix(a, b *mat.Dense) *mat.Dense {
	cov := k.children[0].CovMatrix(a, b)
	for _, c := range k.children[1:] {
		cov.MulElem(cov, c.CovMatrix(a, b))
	}
	return cov
}

func (k *Product) CovDiag(a *mat.Dense) *mat.VecDense {
	diag := k.children[0].CovDiag(a)
	for _, c := range k.children[1:] {
		diag.MulElemVec(diag, c.CovDiag(a))
	}
	return diag
}

func (k *Product) AccumulateGradient(dLdK, x *mat.Dense) {
	n, m := dLdK.Dims()
	covs := make([]*mat.Dense, len(k.children))
	for i, c := range k.children {
		covs[i] = c.CovMatrix(x, x)
	}
	for i, c := range k.children {
		scaled := mat.NewDense(n, m, nil)
		scaled.Copy(dLdK)
		for j, sibling := range covs {
			if j == i {
				continue
			}
			scaled.MulElem(scaled, sibling)
		}
		c.AccumulateGradient(scaled, x)
	}
}

func (k *Product) Params() []*params.Param { return childParams(k.children) }

func (k *Product) Name() string { return combineName("product", k.children) }

func childParams(children []Kernel) []*params.Param {
	var ps []*params.Param
	for _, c := range children {
		ps = append(ps, c.Params()...)
	}
	return ps
}

func combineName(op string, children []Kernel) string {
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.Name()
	}
	return op + "(" + strings.Join(names, ",") + ")"
}
