package kernels

import (
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// =============================================================================
// Pairwise Distance Assembly
// =============================================================================
//
// Stationary kernels are functions of the pairwise squared Euclidean distance
// matrix. It is assembled once per covariance call from precomputed row norms
// plus a single -2*A*B^T GEMM on the raw float64 buffers:
//
//   d2[i][j] = ||a_i||^2 + ||b_j||^2 - 2 * a_i . b_j
//
// Cancellation can drive near-zero entries slightly negative; those are
// clamped at zero. When a and b alias, the diagonal is forced to exactly zero
// so that stationary kernels evaluate to exactly their variance there.

// rowNorms computes the squared Euclidean norm of every row of a.
func rowNorms(a *mat.Dense) []float64 {
	n, _ := a.Dims()
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		row := a.RawRowView(i)
		norms[i] = vek.Dot(row, row)
	}
	return norms
}

// SquaredDistances returns the |a| x |b| matrix of pairwise squared Euclidean
// distances between the rows of a and the rows of b.
func SquaredDistances(a, b *mat.Dense) *mat.Dense {
	na, dim := a.Dims()
	nb, _ := b.Dims()

	normsA := rowNorms(a)
	normsB := normsA
	if b != a {
		normsB = rowNorms(b)
	}

	// d2 starts as -2*A*B^T, then row/column norms are folded in.
	d2 := make([]float64, na*nb)
	ra := a.RawMatrix()
	rb := b.RawMatrix()
	blas64.Gemm(blas.NoTrans, blas.Trans, -2,
		blas64.General{Rows: na, Cols: dim, Stride: ra.Stride, Data: ra.Data},
		blas64.General{Rows: nb, Cols: dim, Stride: rb.Stride, Data: rb.Data},
		0,
		blas64.General{Rows: na, Cols: nb, Stride: nb, Data: d2})

	for i := 0; i < na; i++ {
		base := i * nb
		for j := 0; j < nb; j++ {
			v := d2[base+j] + normsA[i] + normsB[j]
			if v < 0 {
				v = 0 // cancellation guard
			}
			d2[base+j] = v
		}
	}

	if a == b {
		for i := 0; i < na; i++ {
			d2[i*nb+i] = 0
		}
	}

	return mat.NewDense(na, nb, d2)
}
