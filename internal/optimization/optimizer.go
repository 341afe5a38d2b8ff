// Package optimization defines the contracts shared by the line-search
// minimization components: the objective interface, the terminal status
// machine, the shared evaluation budget and the configuration error
// type.
package optimization

// Minimizer is the interface the optimization drivers implement.
type Minimizer interface {
	// Minimize runs the algorithm to a terminal status and returns the
	// best point found together with that status. Runtime numerical
	// failure is reported through the status, never as an error.
	Minimize() ([]float64, Status)
}

// Result captures the outcome of a finished minimization run.
type Result struct {
	// X is the best point found.
	X []float64
	// Value is the objective value at X.
	Value float64
	// Status is the terminal state the run reached.
	Status Status
	// Iterations is the number of completed outer iterations.
	Iterations int
	// FunEvals is the total number of function evaluations, line
	// searches included.
	FunEvals int
}

// Record is one row of the driver's diagnostic trace. It is purely
// informational and elidable without changing results.
type Record struct {
	Iteration int
	FunEvals  int
	Value     float64
	GradNorm  float64
	Beta      float64
	Step      float64
}
