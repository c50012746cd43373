package gp

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/adalundhe/gpr/core/params"
)

// OptimizeConfig bounds the hyperparameter optimization run.
type OptimizeConfig struct {
	// MaxIterations caps the number of L-BFGS major iterations.
	MaxIterations int

	// GradientTolerance stops the run when the unconstrained gradient
	// infinity-norm drops below it.
	GradientTolerance float64
}

// DefaultOptimizeConfig matches the scale of typical GP hyperparameter
// problems: a handful of parameters, smooth objective.
func DefaultOptimizeConfig() OptimizeConfig {
	return OptimizeConfig{
		MaxIterations:     200,
		GradientTolerance: 1e-6,
	}
}

// OptimizeReport summarizes one optimization run.
type OptimizeReport struct {
	RunID           string
	Strategy        string
	Status          string
	InitialLogML    float64
	FinalLogML      float64
	FuncEvaluations int
	Parameters      map[string]float64
}

// Optimize maximizes the log marginal likelihood over the unfixed kernel and
// likelihood hyperparameters with L-BFGS in unconstrained (softplus) space.
//
// Evaluations where the covariance cannot be factorized return +Inf to the
// line search rather than failing the run: the search backs off and the
// model is left at the best point found.
func (m *Model) Optimize(cfg OptimizeConfig) (*OptimizeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	free := append(append([]*params.Param{}, m.kern.Params()...), m.lik.Params()...)
	if len(params.Free(free)) == 0 {
		return nil, errors.New("gp: Optimize: no free hyperparameters")
	}

	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	initial := m.logML

	// Func and Grad are called at the same points; memoize one refresh per
	// point.
	var lastPhi []float64
	var lastErr error
	eval := func(phi []float64) error {
		if lastPhi != nil && floats.Equal(lastPhi, phi) {
			return lastErr
		}
		lastPhi = append(lastPhi[:0], phi...)
		params.SetFreeVector(free, phi)
		m.stale = true
		lastErr = m.refreshLocked()
		return lastErr
	}

	problem := optimize.Problem{
		Func: func(phi []float64) float64 {
			// Non-factorizable points (NumericalInstabilityError) are
			// +Inf to the line search, not failures of the run.
			if eval(phi) != nil {
				return math.Inf(1)
			}
			return -m.logML
		},
		Grad: func(grad, phi []float64) {
			if err := eval(phi); err != nil {
				for i := range grad {
					grad[i] = 0
				}
				return
			}
			g := params.FreeGradient(free)
			for i := range grad {
				grad[i] = -g[i]
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   cfg.MaxIterations,
		GradientThreshold: cfg.GradientTolerance,
	}
	result, err := optimize.Minimize(problem, params.FreeVector(free), settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return nil, fmt.Errorf("gp: Optimize: %w", err)
	}

	// Pin the model at the optimizer's final point.
	params.SetFreeVector(free, result.X)
	m.stale = true
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(free))
	for _, p := range free {
		values[p.Name()] = p.Value()
	}
	return &OptimizeReport{
		RunID:           uuid.New().String(),
		Strategy:        m.strategy.Name(),
		Status:          result.Status.String(),
		InitialLogML:    initial,
		FinalLogML:      m.logML,
		FuncEvaluations: result.FuncEvaluations,
		Parameters:      values,
	}, nil
}
