package inference

import "fmt"

// ShapeMismatchError reports malformed input dimensions, detected eagerly
// before any factorization work.
type ShapeMismatchError struct {
	Op   string
	Want string
	Got  string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("inference: %s: shape mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// NumericalInstabilityError reports a covariance-plus-noise matrix that
// could not be factorized even after the bounded jitter escalation. It is
// fatal: a silently wrong factorization would poison every downstream
// gradient.
type NumericalInstabilityError struct {
	Op         string
	Attempts   int
	LastJitter float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf(
		"inference: %s: matrix not positive definite after %d jitter attempts (last jitter %g)",
		e.Op, e.Attempts, e.LastJitter)
}
