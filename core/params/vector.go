package params

// Free returns the subset of ps that participates in optimization.
func Free(ps []*Param) []*Param {
	free := make([]*Param, 0, len(ps))
	for _, p := range ps {
		if !p.fixed {
			free = append(free, p)
		}
	}
	return free
}

// FreeVector maps the unfixed parameters into unconstrained optimizer space.
func FreeVector(ps []*Param) []float64 {
	free := Free(ps)
	phi := make([]float64, len(free))
	for i, p := range free {
		phi[i] = p.transform.Backward(p.value)
	}
	return phi
}

// SetFreeVector maps an unconstrained vector back onto the unfixed
// parameters. len(phi) must equal the number of unfixed parameters.
func SetFreeVector(ps []*Param, phi []float64) {
	free := Free(ps)
	if len(phi) != len(free) {
		panic("params: free vector length mismatch")
	}
	for i, p := range free {
		p.value = p.transform.Forward(phi[i])
	}
}

// FreeGradient chain-rules the stored model-space gradients into
// unconstrained space: dL/dphi = dL/dtheta * dtheta/dphi.
func FreeGradient(ps []*Param) []float64 {
	free := Free(ps)
	grad := make([]float64, len(free))
	for i, p := range free {
		grad[i] = p.gradient * p.transform.GradFactor(p.value)
	}
	return grad
}

// ZeroGradients resets every parameter's gradient.
func ZeroGradients(ps []*Param) {
	for _, p := range ps {
		p.ZeroGradient()
	}
}
