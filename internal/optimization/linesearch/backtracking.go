package linesearch

import (
	"math"

	"go.uber.org/zap"

	"github.com/peakline/descent/internal/optimization"
)

// Backtracking is the Armijo-only line search: starting from aStart the
// step shrinks geometrically until the sufficient-decrease test passes,
// the step falls to the admissible minimum, or the budget runs out.
// It performs no curvature test and is the search of choice when the
// curvature parameter lies outside (0,1).
type Backtracking struct {
	m1      float64 // sufficient decrease, in (0,1)
	aStart  float64 // initial step, > 0
	tau     float64 // shrink multiplier, in (0,1)
	minStep float64 // smallest admissible step, >= 0
	logger  *zap.Logger
}

// NewBacktracking validates the parameters eagerly and returns the
// search. A nil logger disables logging.
func NewBacktracking(m1, aStart, tau, minStep float64, logger *zap.Logger) (*Backtracking, error) {
	const component = "backtracking"
	if m1 <= 0 || m1 >= 1 {
		return nil, optimization.NewErrorf(component, "m1 must be in (0,1), got %v", m1)
	}
	if aStart <= 0 || math.IsNaN(aStart) || math.IsInf(aStart, 0) {
		return nil, optimization.NewErrorf(component, "a_start must be a positive real, got %v", aStart)
	}
	if tau <= 0 || tau >= 1 {
		return nil, optimization.NewErrorf(component, "tau must be in (0,1), got %v", tau)
	}
	if minStep < 0 || math.IsNaN(minStep) {
		return nil, optimization.NewErrorf(component, "min_a must be >= 0, got %v", minStep)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtracking{
		m1:      m1,
		aStart:  aStart,
		tau:     tau,
		minStep: minStep,
		logger:  logger,
	}, nil
}

// Search implements Searcher.
func (ls *Backtracking) Search(obj optimization.Objective, b optimization.Batch, x, d []float64,
	v, phiP0 float64, budget *optimization.EvalBudget) Result {

	a := ls.aStart
	var res Result

	for !budget.Exhausted() && a > ls.minStep {
		phiA, _, xa, ga := phi(obj, b, x, d, a, budget)
		res = Result{Step: a, X: xa, Value: phiA, Grad: ga, Evals: res.Evals + 1}

		if phiA <= v+ls.m1*a*phiP0 {
			res.Satisfied = true
			ls.logger.Debug("step accepted",
				zap.Float64("a", a),
				zap.Int("evals", res.Evals))
			return res
		}
		a *= ls.tau
	}

	// No admissible step: hand the caller the shrunken step so it can
	// tell a collapsed search apart from an exhausted budget.
	res.Step = a
	ls.logger.Debug("line search failed",
		zap.Float64("a", a),
		zap.Int("evals", res.Evals))
	return res
}
