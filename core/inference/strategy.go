package inference

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

const log2Pi = 1.8378770664093453

// Strategy computes a posterior, the log marginal likelihood, and the
// hyperparameter gradient bundle for one setting of kernel and likelihood
// hyperparameters. Implementations must be deterministic given fixed inputs.
type Strategy interface {
	Inference(k kernels.Kernel, x *mat.Dense, lik likelihoods.Likelihood, y *mat.Dense, md likelihoods.Metadata) (*Posterior, float64, *Gradients, error)
	Name() string
}

// checkShapes validates the X/Y row agreement shared by every strategy.
func checkShapes(op string, x, y *mat.Dense) (n, p int, err error) {
	n, _ = x.Dims()
	yr, p := y.Dims()
	if yr != n {
		return 0, 0, &ShapeMismatchError{
			Op:   op,
			Want: "X and Y with equal row counts",
			Got:  sprintShapes(x, y),
		}
	}
	return n, p, nil
}

func sprintShapes(x, y *mat.Dense) string {
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	return fmt.Sprintf("X %dx%d, Y %dx%d", xr, xc, yr, yc)
}
