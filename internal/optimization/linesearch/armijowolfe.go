package linesearch

import (
	"math"

	"go.uber.org/zap"

	"github.com/peakline/descent/internal/optimization"
)

// derivZero is the directional-derivative magnitude below which the
// upper bracket endpoint is considered flat and the zoom phase stops.
const derivZero = 1e-12

// ArmijoWolfe is the strong Wolfe line search. A first phase grows the
// step from aStart until the directional derivative turns non-negative,
// which brackets a step satisfying both the Armijo sufficient-decrease
// condition and the strong curvature condition; a second phase then
// shrinks the bracket by safeguarded quadratic interpolation until both
// conditions hold, the bracket collapses below minStep, or the shared
// evaluation budget runs out.
type ArmijoWolfe struct {
	m1      float64 // sufficient decrease, in (0,1)
	m2      float64 // strong curvature, in (0,1)
	aStart  float64 // initial step, > 0
	tau     float64 // phase-one grow divisor, in (0,1)
	sfgrd   float64 // interpolation safeguard fraction, in (0,1)
	minStep float64 // smallest admissible step, >= 0
	logger  *zap.Logger
}

// NewArmijoWolfe validates the parameters eagerly and returns the
// search. A nil logger disables logging.
func NewArmijoWolfe(m1, m2, aStart, tau, sfgrd, minStep float64, logger *zap.Logger) (*ArmijoWolfe, error) {
	const component = "armijo_wolfe"
	if m1 <= 0 || m1 >= 1 {
		return nil, optimization.NewErrorf(component, "m1 must be in (0,1), got %v", m1)
	}
	if m2 <= 0 || m2 >= 1 {
		return nil, optimization.NewErrorf(component, "m2 must be in (0,1), got %v", m2)
	}
	if aStart <= 0 || math.IsNaN(aStart) || math.IsInf(aStart, 0) {
		return nil, optimization.NewErrorf(component, "a_start must be a positive real, got %v", aStart)
	}
	if tau <= 0 || tau >= 1 {
		return nil, optimization.NewErrorf(component, "tau must be in (0,1), got %v", tau)
	}
	if sfgrd <= 0 || sfgrd >= 1 {
		return nil, optimization.NewErrorf(component, "sfgrd must be in (0,1), got %v", sfgrd)
	}
	if minStep < 0 || math.IsNaN(minStep) {
		return nil, optimization.NewErrorf(component, "min_a must be >= 0, got %v", minStep)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArmijoWolfe{
		m1:      m1,
		m2:      m2,
		aStart:  aStart,
		tau:     tau,
		sfgrd:   sfgrd,
		minStep: minStep,
		logger:  logger,
	}, nil
}

// Search implements Searcher.
func (ls *ArmijoWolfe) Search(obj optimization.Objective, b optimization.Batch, x, d []float64,
	v, phiP0 float64, budget *optimization.EvalBudget) Result {

	var (
		a    = ls.aStart
		res  Result
		phiA float64
		phiP float64
		xa   []float64
		ga   []float64
	)

	// Phase one: expand while the derivative stays negative. Once
	// phi'(a) >= 0 the interval [0, a] brackets a strong Wolfe point.
	for {
		if budget.Exhausted() {
			return res
		}
		phiA, phiP, xa, ga = phi(obj, b, x, d, a, budget)
		res = Result{Step: a, X: xa, Value: phiA, Grad: ga, Evals: res.Evals + 1}

		if phiA <= v+ls.m1*a*phiP0 && math.Abs(phiP) <= -ls.m2*phiP0 {
			res.Satisfied = true
			ls.logger.Debug("step accepted while bracketing",
				zap.Float64("a", a),
				zap.Int("evals", res.Evals))
			return res
		}
		if phiP >= 0 {
			break
		}
		a /= ls.tau
	}

	// Zoom phase. Invariant: phi'(lo) < 0 <= phi'(hi), so an admissible
	// step lies strictly inside (lo, hi).
	lo, hi := 0.0, a
	phiPLo, phiPHi := phiP0, phiP

	for !budget.Exhausted() && hi-lo > ls.minStep && phiPHi > derivZero {
		// Minimizer of the quadratic through the endpoint derivatives.
		// A degenerate fit (equal derivatives, or a non-finite result)
		// falls back to bisection so the bracket always shrinks.
		den := phiPHi - phiPLo
		a = (lo*phiPHi - hi*phiPLo) / den
		if math.Abs(den) < derivZero || math.IsNaN(a) || math.IsInf(a, 0) {
			a = (lo + hi) / 2
		}
		a = math.Max(lo*(1+ls.sfgrd), math.Min(hi*(1-ls.sfgrd), a))

		phiA, phiP, xa, ga = phi(obj, b, x, d, a, budget)
		res = Result{Step: a, X: xa, Value: phiA, Grad: ga, Evals: res.Evals + 1}

		if phiA <= v+ls.m1*a*phiP0 && math.Abs(phiP) <= -ls.m2*phiP0 {
			res.Satisfied = true
			break
		}
		if phiP < 0 {
			lo, phiPLo = a, phiP
		} else {
			hi, phiPHi = a, phiP
			if hi <= ls.minStep {
				break
			}
		}
	}

	ls.logger.Debug("line search finished",
		zap.Float64("a", res.Step),
		zap.Int("evals", res.Evals),
		zap.Bool("satisfied", res.Satisfied))
	return res
}
