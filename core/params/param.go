package params

// Param is a single named scalar hyperparameter. Kernels and likelihoods own
// their Params; inference writes gradients into them; the optimizer reads and
// writes them through the free-vector helpers in vector.go.
//
// There is no observer graph: mutating a Param does not notify anything.
// Callers that change a value must mark the owning model stale and request a
// recomputation explicitly.
type Param struct {
	name      string
	value     float64
	gradient  float64
	transform Transform
	fixed     bool
}

// New creates a parameter with the given constraint transform. A nil
// transform leaves the parameter unconstrained.
func New(name string, value float64, t Transform) *Param {
	if t == nil {
		t = Identity{}
	}
	return &Param{name: name, value: value, transform: t}
}

// Positive creates a parameter constrained to be strictly positive via the
// softplus transform.
func Positive(name string, value float64) *Param {
	return New(name, value, Logexp{})
}

func (p *Param) Name() string         { return p.name }
func (p *Param) Value() float64       { return p.value }
func (p *Param) SetValue(v float64)   { p.value = v }
func (p *Param) Gradient() float64    { return p.gradient }
func (p *Param) Transform() Transform { return p.transform }

// AccumulateGradient adds g to the stored model-space gradient. Gradients
// accumulate so that shared parameters (e.g. a kernel appearing twice in a
// Sum) collect contributions from every use site.
func (p *Param) AccumulateGradient(g float64) { p.gradient += g }

// ZeroGradient resets the stored gradient. Called once per inference pass
// before gradient routing.
func (p *Param) ZeroGradient() { p.gradient = 0 }

// Fix excludes the parameter from the optimizer's free vector.
func (p *Param) Fix() { p.fixed = true }

// Unfix re-includes the parameter in the optimizer's free vector.
func (p *Param) Unfix() { p.fixed = false }

func (p *Param) Fixed() bool { return p.fixed }
