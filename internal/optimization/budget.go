package optimization

// EvalBudget counts function evaluations against a fixed maximum. The
// driver owns it and hands it by pointer to the line search, so inner
// trial points and outer iterations draw on the same budget.
type EvalBudget struct {
	used int
	max  int
}

// NewEvalBudget returns a budget allowing max evaluations.
func NewEvalBudget(max int) *EvalBudget {
	return &EvalBudget{max: max}
}

// Spend records one function evaluation.
func (b *EvalBudget) Spend() { b.used++ }

// Used returns the number of evaluations recorded so far.
func (b *EvalBudget) Used() int { return b.used }

// Max returns the budget limit.
func (b *EvalBudget) Max() int { return b.max }

// Exhausted reports whether the budget has been overrun. The evaluation
// that consumes the last unit still completes; the check trips on the
// one after it.
func (b *EvalBudget) Exhausted() bool { return b.used > b.max }
