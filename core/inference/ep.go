package inference

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/adalundhe/gpr/core/kernels"
	"github.com/adalundhe/gpr/core/likelihoods"
)

// =============================================================================
// Expectation Propagation
// =============================================================================
//
// EP approximates a non-Gaussian likelihood by one Gaussian pseudo-
// observation ("site") per training point, refined to a fixed point: each
// sweep removes a site from the approximate posterior (cavity), moment-
// matches the true likelihood factor against the cavity, and updates the
// site toward the matched Gaussian under damping.
//
// Sweeps are parallel: every cavity is computed from the same posterior
// snapshot, then all sites update in index order. With fixed damping the
// iteration is fully deterministic.
//
// At the fixed point the approximate posterior is exact GP regression on the
// pseudo-targets nu/tau with heteroscedastic noise 1/tau, so the returned
// Posterior has the same Woodbury form the exact path produces and the
// prediction code is shared unchanged.

// EPConfig configures the fixed-point iteration.
type EPConfig struct {
	// MaxIterations bounds the number of whole-data sweeps.
	MaxIterations int

	// Tolerance is the convergence threshold on the sup-norm change of the
	// site parameters between sweeps.
	Tolerance float64

	// Damping is the step fraction applied to each site update. 1 is an
	// undamped update; smaller values trade speed for stability.
	Damping float64

	Jitter JitterConfig
}

// DefaultEPConfig returns the iteration policy used by default: enough
// sweeps that damping is never the binding constraint, a tolerance near the
// square root of double precision, and mild damping for stability on hard
// likelihoods.
func DefaultEPConfig() EPConfig {
	return EPConfig{
		MaxIterations: 100,
		Tolerance:     1e-6,
		Damping:       0.9,
		Jitter:        DefaultJitterConfig(),
	}
}

// EPDiagnostics reports the outcome of the most recent EP run.
type EPDiagnostics struct {
	Iterations int
	Converged  bool
}

// EP is approximate inference for likelihoods implementing MomentMatcher.
// Non-convergence within the iteration budget is not fatal: the best
// available posterior is returned and a warning is logged, since an
// approximate answer remains useful for continued optimization.
type EP struct {
	cfg  EPConfig
	diag EPDiagnostics
}

// NewEP returns EP with the default configuration.
func NewEP() *EP {
	return NewEPWithConfig(DefaultEPConfig())
}

func NewEPWithConfig(cfg EPConfig) *EP {
	return &EP{cfg: cfg}
}

func (e *EP) Name() string { return "ep" }

// Diagnostics returns iteration count and convergence flag of the most
// recent Inference call.
func (e *EP) Diagnostics() EPDiagnostics { return e.diag }

// tauFloor keeps site precisions strictly positive so the pseudo-noise
// 1/tau stays finite.
const tauFloor = 1e-12

func (e *EP) Inference(k kernels.Kernel, x *mat.Dense, lik likelihoods.Likelihood, y *mat.Dense, md likelihoods.Metadata) (*Posterior, float64, *Gradients, error) {
	n, p, err := checkShapes("ep", x, y)
	if err != nil {
		return nil, 0, nil, err
	}
	if p != 1 {
		return nil, 0, nil, &ShapeMismatchError{
			Op:   "ep",
			Want: "single output column",
			Got:  sprintShapes(x, y),
		}
	}

	mm, ok := lik.(likelihoods.MomentMatcher)
	if !ok {
		return nil, 0, nil, fmt.Errorf("inference: ep requires a moment-matching likelihood, got %s", lik.Name())
	}

	cov := k.CovMatrix(x, x)

	tauSite := make([]float64, n)
	nuSite := make([]float64, n)

	e.diag = EPDiagnostics{}
	for sweep := 0; sweep < e.cfg.MaxIterations; sweep++ {
		sigma, mu, err := e.sitePosterior(cov, tauSite, nuSite)
		if err != nil {
			return nil, 0, nil, err
		}

		delta := e.updateSites(mm, y, sigma, mu, tauSite, nuSite)
		e.diag.Iterations = sweep + 1
		if delta < e.cfg.Tolerance {
			e.diag.Converged = true
			break
		}
	}
	if !e.diag.Converged {
		slog.Warn("ep did not converge",
			slog.Int("iterations", e.diag.Iterations),
			slog.Float64("tolerance", e.cfg.Tolerance))
	}

	return e.finalize(cov, mm, y, tauSite, nuSite, n)
}

// sitePosterior computes the approximate posterior covariance and mean for
// the current sites:
//
//	Sigma = K - K S^1/2 B^-1 S^1/2 K,  B = I + S^1/2 K S^1/2
//	mu    = Sigma nu
//
// B is well conditioned for any non-negative site precisions, which is what
// makes this form preferable to inverting K directly.
func (e *EP) sitePosterior(cov *mat.Dense, tauSite, nuSite []float64) (*mat.Dense, []float64, error) {
	n := len(tauSite)
	sroot := make([]float64, n)
	for i, tau := range tauSite {
		sroot[i] = math.Sqrt(tau)
	}

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, sroot[i]*cov.At(i, j)*sroot[j])
		}
		b.SetSym(i, i, b.At(i, i)+1)
	}
	cholB, _, err := StableCholesky("ep.posterior", b, e.cfg.Jitter)
	if err != nil {
		return nil, nil, err
	}

	// m = S^1/2 K, solved = B^-1 m, Sigma = K - m^T solved.
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, sroot[i]*cov.At(i, j))
		}
	}
	solved := mat.NewDense(n, n, nil)
	if err := cholB.SolveTo(solved, m); err != nil {
		return nil, nil, fmt.Errorf("inference: ep: posterior solve: %w", err)
	}

	sigma := mat.NewDense(n, n, nil)
	sigma.Mul(m.T(), solved)
	sigma.Sub(cov, sigma)

	mu := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += sigma.At(i, j) * nuSite[j]
		}
		mu[i] = s
	}
	return sigma, mu, nil
}

// updateSites performs one parallel sweep and returns the sup-norm change of
// the site parameters.
func (e *EP) updateSites(mm likelihoods.MomentMatcher, y *mat.Dense, sigma *mat.Dense, mu []float64, tauSite, nuSite []float64) float64 {
	n := len(tauSite)
	var delta float64
	for i := 0; i < n; i++ {
		sii := sigma.At(i, i)
		if sii <= 0 {
			continue
		}
		tauCav := 1/sii - tauSite[i]
		if tauCav <= tauFloor {
			continue // cavity collapsed, leave site untouched this sweep
		}
		nuCav := mu[i]/sii - nuSite[i]
		cavMean := nuCav / tauCav
		cavVar := 1 / tauCav

		_, d1, d2 := mm.MomentMatch(y.At(i, 0), cavMean, cavVar)
		denom := 1 + d2*cavVar
		if denom <= tauFloor {
			continue
		}
		tauNew := -d2 / denom
		nuNew := (d1 - cavMean*d2) / denom

		tauNext := tauSite[i] + e.cfg.Damping*(tauNew-tauSite[i])
		if tauNext < tauFloor {
			tauNext = tauFloor
		}
		nuNext := nuSite[i] + e.cfg.Damping*(nuNew-nuSite[i])

		delta = math.Max(delta, math.Abs(tauNext-tauSite[i]))
		delta = math.Max(delta, math.Abs(nuNext-nuSite[i]))
		tauSite[i] = tauNext
		nuSite[i] = nuNext
	}
	return delta
}

// finalize converts the converged sites into the Woodbury posterior and the
// EP evidence approximation.
//
// The evidence uses the Gaussian-convolution identity
//
//	Z_EP = prod_i Zhat'_i * N(mu~; 0, K + Sigma~)
//
// where mu~_i = nu_i/tau_i are the pseudo-targets, Sigma~ = diag(1/tau), and
// each site normalizer folds back the cavity moment-matching constant:
//
//	log Zhat'_i = log Zhat_i + 1/2 log(2pi (1/tau_i + v_cav_i))
//	            + (mu~_i - m_cav_i)^2 / (2 (1/tau_i + v_cav_i))
//
// For a Gaussian likelihood these site corrections cancel exactly and the
// expression reduces to the exact log marginal likelihood.
func (e *EP) finalize(cov *mat.Dense, mm likelihoods.MomentMatcher, y *mat.Dense, tauSite, nuSite []float64, n int) (*Posterior, float64, *Gradients, error) {
	sigma, mu, err := e.sitePosterior(cov, tauSite, nuSite)
	if err != nil {
		return nil, 0, nil, err
	}

	pseudo := mat.NewDense(n, 1, nil)
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tau := math.Max(tauSite[i], tauFloor)
		pseudo.Set(i, 0, nuSite[i]/tau)
		for j := i; j < n; j++ {
			a.SetSym(i, j, cov.At(i, j))
		}
		a.SetSym(i, i, a.At(i, i)+1/tau)
	}

	chol, _, err := StableCholesky("ep", a, e.cfg.Jitter)
	if err != nil {
		return nil, 0, nil, err
	}
	wv := mat.NewDense(n, 1, nil)
	if err := chol.SolveTo(wv, pseudo); err != nil {
		return nil, 0, nil, fmt.Errorf("inference: ep: triangular solve: %w", err)
	}
	winv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(winv); err != nil {
		return nil, 0, nil, fmt.Errorf("inference: ep: inverse action: %w", err)
	}

	// Gaussian part of the evidence.
	var quad float64
	for i := 0; i < n; i++ {
		quad += pseudo.At(i, 0) * wv.At(i, 0)
	}
	lml := -0.5*quad - 0.5*chol.LogDet() - 0.5*float64(n)*log2Pi

	// Site corrections against the final cavities.
	for i := 0; i < n; i++ {
		sii := sigma.At(i, i)
		tau := math.Max(tauSite[i], tauFloor)
		tauCav := 1/sii - tau
		if tauCav <= tauFloor {
			continue
		}
		cavMean := (mu[i]/sii - nuSite[i]) / tauCav
		cavVar := 1 / tauCav
		logZ, _, _ := mm.MomentMatch(y.At(i, 0), cavMean, cavVar)

		v := 1/tau + cavVar
		d := pseudo.At(i, 0) - cavMean
		lml += logZ + 0.5*math.Log(2*math.Pi*v) + d*d/(2*v)
	}

	// Holding the sites fixed, the evidence has the same covariance
	// gradient form as exact inference on the pseudo-data.
	dLdK := mat.NewDense(n, n, nil)
	dLdK.Mul(wv, wv.T())
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dLdK.Set(i, j, 0.5*(dLdK.At(i, j)-winv.At(i, j)))
		}
	}

	trainMean := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		trainMean.Set(i, 0, mu[i])
	}

	post := &Posterior{
		WoodburyVector: wv,
		WoodburyInv:    winv,
		WoodburyChol:   chol,
		Mean:           trainMean,
	}
	grads := &Gradients{
		DLdK: dLdK,
		// EP does not produce likelihood-hyperparameter gradients; sites
		// are held fixed at the current hyperparameters.
		DLdTheta: make([]float64, len(mm.Params())),
	}
	return post, lml, grads, nil
}
