// Package conjgrad implements steepest descent and nonlinear conjugate
// gradient minimization driven by an Armijo–Wolfe or backtracking line
// search over a shared function-evaluation budget.
package conjgrad

import (
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/peakline/descent/internal/optimization"
	"github.com/peakline/descent/internal/optimization/linesearch"
)

// Config holds the scalar parameters of the optimizer. Every field is
// checked when the optimizer is constructed; an out-of-domain value is
// a configuration error and is never silently coerced.
type Config struct {
	// Formula selects the conjugate gradient beta formula. Ignored by
	// steepest descent.
	Formula Formula

	// RestartPeriod forces beta = 0 every Dim*RestartPeriod iterations
	// when positive; 0 disables restarts.
	RestartPeriod int

	// Eps is the gradient-norm stopping threshold. A positive value is
	// absolute; a negative value is a relative tolerance against the
	// norm of the initial gradient. Zero is invalid.
	Eps float64

	// MaxFunEvals bounds the function evaluations of the driver and the
	// line searches together.
	MaxFunEvals int

	// MaxIter bounds the number of outer iterations.
	MaxIter int

	// M1 is the Armijo sufficient-decrease constant, in (0,1).
	M1 float64

	// M2 is the strong curvature constant. A value in (0,1) selects the
	// Armijo–Wolfe search; anything else selects Backtracking.
	M2 float64

	// StepStart is the initial step length of every line search, > 0.
	StepStart float64

	// Tau scales the step, in (0,1): grow divisor in the Armijo–Wolfe
	// first phase, shrink multiplier in Backtracking.
	Tau float64

	// Safeguard keeps interpolated steps away from the bracket
	// endpoints, in (0,1).
	Safeguard float64

	// MInf declares the problem unbounded below once a value at or
	// under it is found.
	MInf float64

	// MinStep is the smallest admissible step; a search ending at or
	// below it terminates the run with StatusError.
	MinStep float64

	// BatchSize enables mini-batch evaluation when positive and the
	// objective exposes its samples.
	BatchSize int

	// Seed seeds the mini-batch shuffler.
	Seed int64
}

// DefaultConfig returns the conventional parameter set.
func DefaultConfig() Config {
	return Config{
		Formula:     FletcherReeves,
		Eps:         1e-6,
		MaxFunEvals: 1000,
		MaxIter:     1000,
		M1:          0.01,
		M2:          0.9,
		StepStart:   1,
		Tau:         0.9,
		Safeguard:   0.01,
		MInf:        math.Inf(-1),
		MinStep:     1e-16,
	}
}

// Optimizer is the iteration/status state machine that ties a direction
// strategy and a line search together over one evaluation budget.
type Optimizer struct {
	obj      optimization.Objective
	cfg      Config
	strategy Strategy
	search   linesearch.Searcher
	batches  optimization.BatchIter
	budget   *optimization.EvalBudget
	logger   *zap.Logger

	x       []float64
	value   float64
	iter    int
	history []optimization.Record
	status  optimization.Status
}

// New returns a nonlinear conjugate gradient optimizer starting from
// x0. A nil logger disables logging.
func New(obj optimization.Objective, x0 []float64, cfg Config, logger *zap.Logger) (*Optimizer, error) {
	o, err := newOptimizer(obj, x0, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Formula.Valid() {
		return nil, optimization.NewErrorf(component, "unknown conjugate gradient formula %d", cfg.Formula)
	}
	o.strategy = ConjugateGradient{
		Formula:       cfg.Formula,
		N:             obj.Dim(),
		RestartPeriod: cfg.RestartPeriod,
	}
	return o, nil
}

// NewSteepestDescent returns a plain gradient descent optimizer sharing
// the driver, the line searches and the budget semantics with New.
func NewSteepestDescent(obj optimization.Objective, x0 []float64, cfg Config, logger *zap.Logger) (*Optimizer, error) {
	o, err := newOptimizer(obj, x0, cfg, logger)
	if err != nil {
		return nil, err
	}
	o.strategy = SteepestDescent{}
	return o, nil
}

const component = "conjgrad"

func newOptimizer(obj optimization.Objective, x0 []float64, cfg Config, logger *zap.Logger) (*Optimizer, error) {
	if obj == nil {
		return nil, optimization.NewError(component, "objective must not be nil")
	}
	if len(x0) != obj.Dim() {
		return nil, optimization.NewErrorf(component,
			"starting point has dimension %d, objective wants %d", len(x0), obj.Dim())
	}
	for _, v := range x0 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, optimization.NewError(component, "starting point is not a real vector")
		}
	}
	if cfg.Eps == 0 || math.IsNaN(cfg.Eps) {
		return nil, optimization.NewError(component, "eps must be a non-zero real")
	}
	if cfg.MaxFunEvals <= 0 {
		return nil, optimization.NewErrorf(component, "max_f_eval must be positive, got %d", cfg.MaxFunEvals)
	}
	if cfg.MaxIter <= 0 {
		return nil, optimization.NewErrorf(component, "max_iter must be positive, got %d", cfg.MaxIter)
	}
	if cfg.RestartPeriod < 0 {
		return nil, optimization.NewErrorf(component, "r_start must be >= 0, got %d", cfg.RestartPeriod)
	}
	if math.IsNaN(cfg.MInf) {
		return nil, optimization.NewError(component, "m_inf is not a real scalar")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// The line search shares every scalar with the driver; its own
	// constructor rejects out-of-domain values for the fields it uses.
	var (
		search linesearch.Searcher
		err    error
	)
	if cfg.M2 > 0 && cfg.M2 < 1 {
		search, err = linesearch.NewArmijoWolfe(cfg.M1, cfg.M2, cfg.StepStart,
			cfg.Tau, cfg.Safeguard, cfg.MinStep, logger.Named("armijo_wolfe"))
	} else {
		search, err = linesearch.NewBacktracking(cfg.M1, cfg.StepStart,
			cfg.Tau, cfg.MinStep, logger.Named("backtracking"))
	}
	if err != nil {
		return nil, err
	}

	batches := optimization.BatchIter(nil)
	if batched, ok := obj.(optimization.Batched); ok {
		full := batched.FullBatch()
		if cfg.BatchSize > 0 {
			rng := rand.New(rand.NewSource(cfg.Seed))
			batches = optimization.MiniBatches(full, cfg.BatchSize, rng)
		} else {
			batches = optimization.RepeatBatch(full)
		}
	} else {
		batches = optimization.RepeatBatch(optimization.Batch{})
	}

	return &Optimizer{
		obj:     obj,
		cfg:     cfg,
		search:  search,
		batches: batches,
		budget:  optimization.NewEvalBudget(cfg.MaxFunEvals),
		logger:  logger.Named(component),
		x:       append([]float64(nil), x0...),
		iter:    1,
	}, nil
}

// Minimize runs the state machine to a terminal status. It returns the
// best point known when the terminal state was reached. The run never
// returns an error: numerical failure surfaces as the status, with the
// point preserved.
func (o *Optimizer) Minimize() ([]float64, optimization.Status) {
	b := o.batches()
	v := o.obj.Value(o.x, b)
	g := o.obj.Gradient(o.x, b)
	o.budget.Spend()
	o.value = v

	ng := floats.Norm(g, 2)
	ng0 := 1.0
	if o.cfg.Eps < 0 {
		ng0 = -ng
	}

	var pastG, pastD []float64
	for {
		if ng <= o.cfg.Eps*ng0 {
			return o.finish(optimization.StatusOptimal)
		}
		if o.budget.Exhausted() || o.iter > o.cfg.MaxIter {
			return o.finish(optimization.StatusStopped)
		}

		d, beta := o.strategy.Direction(g, pastG, pastD, o.iter)
		phiP0 := floats.Dot(g, d)

		res := o.search.Search(o.obj, b, o.x, d, v, phiP0, o.budget)

		o.history = append(o.history, optimization.Record{
			Iteration: o.iter,
			FunEvals:  o.budget.Used(),
			Value:     v,
			GradNorm:  ng,
			Beta:      beta,
			Step:      res.Step,
		})
		o.logger.Debug("iteration",
			zap.Int("iter", o.iter),
			zap.Int("f_eval", o.budget.Used()),
			zap.Float64("f", v),
			zap.Float64("grad_norm", ng),
			zap.Float64("beta", beta),
			zap.Float64("step", res.Step))

		if res.Step <= o.cfg.MinStep {
			return o.finish(optimization.StatusError)
		}
		if res.Value <= o.cfg.MInf {
			return o.finish(optimization.StatusUnbounded)
		}

		pastG, pastD = g, d
		o.x = res.X
		g = res.Grad
		v = res.Value
		o.value = v
		ng = floats.Norm(g, 2)
		o.iter++
		b = o.batches()
	}
}

func (o *Optimizer) finish(s optimization.Status) ([]float64, optimization.Status) {
	o.status = s
	o.logger.Info("minimization finished",
		zap.Stringer("status", s),
		zap.Int("iterations", o.Iterations()),
		zap.Int("f_eval", o.budget.Used()),
		zap.Float64("f", o.value))
	return o.x, s
}

// Value returns the objective value at the current point.
func (o *Optimizer) Value() float64 { return o.value }

// Iterations returns the number of completed outer iterations.
func (o *Optimizer) Iterations() int { return o.iter - 1 }

// FunEvals returns the function evaluations consumed so far.
func (o *Optimizer) FunEvals() int { return o.budget.Used() }

// History returns the per-iteration diagnostic trace.
func (o *Optimizer) History() []optimization.Record { return o.history }

// Result packages the terminal state of a finished run.
func (o *Optimizer) Result() optimization.Result {
	return optimization.Result{
		X:          append([]float64(nil), o.x...),
		Value:      o.value,
		Status:     o.status,
		Iterations: o.Iterations(),
		FunEvals:   o.budget.Used(),
	}
}
