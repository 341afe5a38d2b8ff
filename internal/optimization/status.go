package optimization

// Status is the terminal state of a minimization run. The driver halts
// as soon as one is assigned; the caller always receives the best known
// point together with the status, so partial progress is never lost.
type Status int

const (
	// StatusOptimal means the gradient norm dropped below the required
	// threshold: the returned point is (approximately) optimal.
	StatusOptimal Status = iota

	// StatusUnbounded means a value at or below the m_inf threshold was
	// found, a "finite minus infinity" taken as an indication that the
	// problem is unbounded below.
	StatusUnbounded

	// StatusStopped means the evaluation or iteration budget ran out:
	// the returned point is the best found so far, not necessarily an
	// optimal one.
	StatusStopped

	// StatusError means the step size collapsed below the admissible
	// minimum: the direction was not a usable descent direction, or the
	// objective is not differentiable at this precision. Retrying
	// without perturbing the inputs will fail the same way.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusUnbounded:
		return "unbounded"
	case StatusStopped:
		return "stopped"
	case StatusError:
		return "error"
	}
	return "unknown"
}
