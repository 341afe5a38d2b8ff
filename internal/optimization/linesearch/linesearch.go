// Package linesearch implements the step-size selection engines that
// drive line-search minimization methods: a strong-Wolfe Armijo–Wolfe
// search with bracketing and safeguarded quadratic interpolation, and a
// simpler Armijo-only backtracking search.
package linesearch

import (
	"gonum.org/v1/gonum/floats"

	"github.com/peakline/descent/internal/optimization"
)

// Result is the outcome of one line search. It is a plain value: the
// search never mutates caller-owned state, so the driver's notion of
// "current" and "trial" point can never alias.
type Result struct {
	// Step is the selected step length along the direction.
	Step float64
	// X is the trial point x + Step*d that was evaluated last.
	X []float64
	// Value is the function value at X.
	Value float64
	// Grad is the gradient at X.
	Grad []float64
	// Evals is the number of function evaluations the search consumed.
	Evals int
	// Satisfied reports whether the acceptance conditions held at X.
	// When false the caller decides between stopping on budget and
	// declaring a numerical failure through the step threshold.
	Satisfied bool
}

// Searcher selects a step length along a descent direction d from x.
// v is f(x) and phiP0 the directional derivative g'd at x; both must
// refer to the same batch the search evaluates with. Every trial point
// is charged to budget and the search returns early, with the best
// trial seen, once the budget is overrun.
type Searcher interface {
	Search(obj optimization.Objective, b optimization.Batch, x, d []float64,
		v, phiP0 float64, budget *optimization.EvalBudget) Result
}

// phi evaluates phi(a) = f(x + a*d) and phi'(a) = g(x + a*d)'d,
// charging one unit to the budget. Value and gradient together count as
// a single evaluation.
func phi(obj optimization.Objective, b optimization.Batch, x, d []float64,
	a float64, budget *optimization.EvalBudget) (phiA, phiP float64, xa, ga []float64) {
	xa = make([]float64, len(x))
	floats.AddScaledTo(xa, x, a, d)
	phiA = obj.Value(xa, b)
	ga = obj.Gradient(xa, b)
	phiP = floats.Dot(ga, d)
	budget.Spend()
	return phiA, phiP, xa, ga
}
