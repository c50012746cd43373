// Package gp provides the Gaussian process model orchestrator: it owns the
// training data, kernel, likelihood, and inference strategy, re-runs
// inference when hyperparameters or data change, and exposes prediction,
// quantile, and sampling queries over the cached posterior.
package gp

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/inference"
	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
	"github.com/adalundhe/gpr/core/params"
)

// StaleStateError reports a query that requires a fitted model on a model
// that has never completed an inference pass.
type StaleStateError struct {
	Op string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("gp: %s: model has never been fitted; call Refresh or a prediction query first", e.Op)
}

// Diagnostics describes the model's current inference setup and history.
type Diagnostics struct {
	// Strategy is the name of the active inference strategy and whether it
	// was chosen by default or supplied explicitly.
	Strategy        string
	StrategyDefault bool

	// Refreshes counts completed inference passes.
	Refreshes int
}

// Model is a Gaussian process over training data (X, Y) with a kernel prior
// and an observation likelihood.
//
// The model is a two-state machine: stale (hyperparameters or data changed
// since the last inference) and fresh (the cached posterior, log marginal
// likelihood, and gradients reflect the current state). Mutations move it to
// stale; queries on a stale model refresh it first. The model never serves a
// prediction from a stale posterior.
//
// All state is guarded by one mutex: concurrent use is safe, with mutate-
// then-recompute sequences serialized. Numerical routines below the model
// are pure.
type Model struct {
	mu sync.Mutex

	x, y     *mat.Dense
	kern     kernels.Kernel
	lik      likelihoods.Likelihood
	strategy inference.Strategy
	md       likelihoods.Metadata
	rng      *rand.Rand

	stale     bool
	everFresh bool
	posterior *inference.Posterior
	logML     float64

	diag Diagnostics
}

// Option configures a Model at construction.
type Option func(*Model)

// WithInference overrides the default strategy selection.
func WithInference(s inference.Strategy) Option {
	return func(m *Model) { m.strategy = s }
}

// WithMetadata attaches opaque per-observation context passed through to
// the likelihood.
func WithMetadata(md likelihoods.Metadata) Option {
	return func(m *Model) { m.md = md }
}

// WithSeed fixes the sampling RNG for reproducible draws. Seed 0 (the
// default) seeds from the current time.
func WithSeed(seed int64) Option {
	return func(m *Model) {
		if seed != 0 {
			m.rng = rand.New(rand.NewSource(seed))
		}
	}
}

// New validates the data and assembles a model. X is N x D, Y is N x P with
// matching row counts; violations fail eagerly with a ShapeMismatchError.
//
// Without an explicit strategy, exact inference is selected for Gaussian
// noise likelihoods and expectation propagation for moment-matching ones.
func New(x, y *mat.Dense, k kernels.Kernel, lik likelihoods.Likelihood, opts ...Option) (*Model, error) {
	if x == nil || y == nil {
		return nil, &inference.ShapeMismatchError{Op: "gp.New", Want: "non-nil X and Y", Got: "nil"}
	}
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr != yr {
		return nil, &inference.ShapeMismatchError{
			Op:   "gp.New",
			Want: "X and Y with equal row counts",
			Got:  fmt.Sprintf("X rows %d, Y rows %d", xr, yr),
		}
	}

	m := &Model{
		x:     x,
		y:     y,
		kern:  k,
		lik:   lik,
		stale: true,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.strategy == nil {
		switch lik.(type) {
		case likelihoods.GaussianNoise:
			m.strategy = inference.NewExact()
		case likelihoods.MomentMatcher:
			m.strategy = inference.NewEP()
		default:
			return nil, fmt.Errorf("gp: no inference strategy available for likelihood %s", lik.Name())
		}
		m.diag.StrategyDefault = true
	}
	m.diag.Strategy = m.strategy.Name()
	return m, nil
}

// Kernel returns the model's kernel.
func (m *Model) Kernel() kernels.Kernel { return m.kern }

// Likelihood returns the model's likelihood.
func (m *Model) Likelihood() likelihoods.Likelihood { return m.lik }

// Diagnostics returns a snapshot of the model's inference diagnostics.
func (m *Model) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diag
}

// MarkStale records that a hyperparameter changed outside the model's
// control. The next query triggers a recomputation.
func (m *Model) MarkStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = true
}

// SetData replaces both X and Y and invalidates the cached posterior.
func (m *Model) SetData(x, y *mat.Dense) error {
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr != yr {
		return &inference.ShapeMismatchError{
			Op:   "gp.SetData",
			Want: "X and Y with equal row counts",
			Got:  fmt.Sprintf("X rows %d, Y rows %d", xr, yr),
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y = x, y
	m.stale = true
	return nil
}

// SetX replaces the inputs, keeping the current targets. Row counts must
// still match.
func (m *Model) SetX(x *mat.Dense) error {
	m.mu.Lock()
	y := m.y
	m.mu.Unlock()
	return m.SetData(x, y)
}

// SetY replaces the targets, keeping the current inputs. Row counts must
// still match.
func (m *Model) SetY(y *mat.Dense) error {
	m.mu.Lock()
	x := m.x
	m.mu.Unlock()
	return m.SetData(x, y)
}

// Refresh runs inference once: it rebuilds the posterior, the log marginal
// likelihood, and routes the gradient bundle to the likelihood and kernel,
// in that order.
func (m *Model) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked()
}

func (m *Model) refreshLocked() error {
	if !m.stale && m.everFresh {
		return nil
	}

	post, lml, grads, err := m.strategy.Inference(m.kern, m.x, m.lik, m.y, m.md)
	if err != nil {
		return err
	}

	m.posterior = post
	m.logML = lml

	params.ZeroGradients(m.lik.Params())
	params.ZeroGradients(m.kern.Params())
	m.lik.AccumulateGradient(grads.DLdTheta)
	m.kern.AccumulateGradient(grads.DLdK, m.x)

	m.stale = false
	m.everFresh = true
	m.diag.Refreshes++
	return nil
}

// LogLikelihood returns the log marginal likelihood of the current
// hyperparameters. A stale model that has been fitted before is refreshed
// first; a model that has never been fitted fails with StaleStateError.
func (m *Model) LogLikelihood() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.everFresh {
		return 0, &StaleStateError{Op: "LogLikelihood"}
	}
	if err := m.refreshLocked(); err != nil {
		return 0, err
	}
	return m.logML, nil
}

// Posterior returns the current posterior, refreshing first if stale.
// Callers must treat it as read-only; it is replaced wholesale on the next
// recomputation.
func (m *Model) Posterior() (*inference.Posterior, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	return m.posterior, nil
}
