package inference

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// JitterConfig controls the diagonal stabilization applied when a
// covariance-plus-noise matrix fails to factorize. The first attempt is
// always jitter-free; well-conditioned problems never pay for stabilization.
type JitterConfig struct {
	// InitialScale sets the first non-zero jitter as a fraction of the mean
	// diagonal of the matrix, so the magnitude tracks the problem's scale.
	InitialScale float64

	// Growth multiplies the jitter between attempts.
	Growth float64

	// MaxAttempts bounds the total number of factorization attempts,
	// including the jitter-free one.
	MaxAttempts int
}

// DefaultJitterConfig returns the stabilization policy used throughout the
// library: start six orders of magnitude below the mean diagonal, grow
// tenfold per attempt, give up after five attempts.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		InitialScale: 1e-6,
		Growth:       10,
		MaxAttempts:  5,
	}
}

// StableCholesky factorizes a symmetric positive-definite matrix, escalating
// diagonal jitter on failure per cfg. It returns the factorization and the
// jitter that was finally applied (zero on a clean first attempt). The input
// is not modified.
//
// Exhausting the attempt budget is a fatal NumericalInstabilityError, never
// a silent fallback.
func StableCholesky(op string, a *mat.SymDense, cfg JitterConfig) (*mat.Cholesky, float64, error) {
	n, _ := a.Dims()

	var chol mat.Cholesky
	if chol.Factorize(a) {
		return &chol, 0, nil
	}

	var meanDiag float64
	for i := 0; i < n; i++ {
		meanDiag += a.At(i, i)
	}
	meanDiag /= float64(n)
	if meanDiag <= 0 {
		meanDiag = 1
	}

	jitter := cfg.InitialScale * meanDiag
	work := mat.NewSymDense(n, nil)
	for attempt := 1; attempt < cfg.MaxAttempts; attempt++ {
		work.CopySym(a)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, work.At(i, i)+jitter)
		}
		if chol.Factorize(work) {
			slog.Warn("cholesky required jitter",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Float64("jitter", jitter))
			return &chol, jitter, nil
		}
		jitter *= cfg.Growth
	}

	return nil, 0, &NumericalInstabilityError{
		Op:         op,
		Attempts:   cfg.MaxAttempts,
		LastJitter: jitter / cfg.Growth,
	}
}
