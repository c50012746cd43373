package likelihoods

import "math"

const (
	log2Pi     = 1.8378770664093453 // log(2*pi)
	halfLog2Pi = 0.5 * log2Pi
)

// normCDF is the standard normal CDF.
func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// logNormPDF is the log density of N(x; mean, variance).
func logNormPDF(x, mean, variance float64) float64 {
	d := x - mean
	return -0.5*d*d/variance - 0.5*math.Log(variance) - halfLog2Pi
}

// logPhiSwitch is where the erfc-based evaluation hands over to the
// asymptotic tail expansion. erfc keeps full relative precision to roughly
// z = -37; at -30 the six-term expansion is already accurate to ~1e-14.
const logPhiSwitch = -30.0

// logPhi returns log Phi(z) together with the hazard ratio phi(z)/Phi(z),
// stable for arbitrarily negative z where Phi underflows.
func logPhi(z float64) (lp, ratio float64) {
	if z > logPhiSwitch {
		lp = math.Log(normCDF(z))
		ratio = math.Exp(-0.5*z*z-halfLog2Pi-lp)
		return lp, ratio
	}
	// Tail expansion Phi(z) = phi(z)/(-z) * (1 - 1/z^2 + 3/z^4 - ...)
	z2 := z * z
	z4 := z2 * z2
	series := 1 - 1/z2 + 3/z4 - 15/(z4*z2) + 105/(z4*z4) - 945/(z4*z4*z2)
	lp = -0.5*z2 - halfLog2Pi - math.Log(-z) + math.Log(series)
	ratio = -z / series
	return lp, ratio
}
