package params

import "math"

// Transform maps between an unconstrained optimizer-space value (phi) and a
// constrained model-space value (theta). Gradients computed in model space are
// chain-ruled back through GradFactor before an optimizer sees them.
type Transform interface {
	// Forward maps an unconstrained value to the constrained space.
	Forward(phi float64) float64

	// Backward maps a constrained value to the unconstrained space.
	Backward(theta float64) float64

	// GradFactor returns dtheta/dphi evaluated at the given constrained value.
	GradFactor(theta float64) float64

	Name() string
}

// expOverflow is the point past which softplus and its inverse are identity
// to double precision. exp(35) ~ 1.6e15, so log(1+exp(x)) - x < 1e-15.
const expOverflow = 35.0

// Logexp is the softplus transform theta = log(1 + exp(phi)), constraining a
// parameter to be strictly positive. It is the default constraint for every
// variance and lengthscale in this library.
type Logexp struct{}

func (Logexp) Forward(phi float64) float64 {
	if phi > expOverflow {
		return phi
	}
	return math.Log1p(math.Exp(phi))
}

func (Logexp) Backward(theta float64) float64 {
	if theta > expOverflow {
		return theta
	}
	// log(exp(theta) - 1), written to stay finite for small theta.
	return math.Log(math.Expm1(theta))
}

// GradFactor is dtheta/dphi = 1/(1+exp(-phi)) = 1 - exp(-theta).
func (Logexp) GradFactor(theta float64) float64 {
	return 1 - math.Exp(-theta)
}

func (Logexp) Name() string { return "logexp" }

// Identity leaves the value unconstrained.
type Identity struct{}

func (Identity) Forward(phi float64) float64      { return phi }
func (Identity) Backward(theta float64) float64   { return theta }
func (Identity) GradFactor(theta float64) float64 { return 1 }
func (Identity) Name() string                     { return "identity" }
