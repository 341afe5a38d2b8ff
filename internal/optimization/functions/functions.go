// Package functions provides objective functions for the optimizers:
// the classic analytic benchmarks and a mini-batchable linear least
// squares model.
package functions

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/peakline/descent/internal/optimization"
)

// Quadratic is f(x) = 1/2 x'Qx + q'x for a symmetric positive definite
// Q. The unique minimizer is solved once at construction, so the known
// optimum is available as a lower bound and as a test oracle.
type Quadratic struct {
	q     *mat.SymDense
	lin   []float64
	xStar []float64
	fStar float64
}

// NewQuadratic validates Q and q and precomputes the minimizer by a
// Cholesky solve of Q x = -q.
func NewQuadratic(Q *mat.SymDense, q []float64) (*Quadratic, error) {
	const comp = "quadratic"
	n := Q.SymmetricDim()
	if len(q) != n {
		return nil, optimization.NewErrorf(comp, "Q is %dx%d but q has length %d", n, n, len(q))
	}

	var chol mat.Cholesky
	if !chol.Factorize(Q) {
		return nil, optimization.NewError(comp, "Q is not positive definite")
	}
	rhs := mat.NewVecDense(n, nil)
	for i, v := range q {
		rhs.SetVec(i, -v)
	}
	sol := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(sol, rhs); err != nil {
		return nil, optimization.WrapError(err, comp, "solving for the minimizer")
	}

	f := &Quadratic{
		q:     mat.NewSymDense(n, nil),
		lin:   append([]float64(nil), q...),
		xStar: make([]float64, n),
	}
	f.q.CopySym(Q)
	for i := range f.xStar {
		f.xStar[i] = sol.AtVec(i)
	}
	f.fStar = f.Value(f.xStar, optimization.Batch{})
	return f, nil
}

// Quad1 is the first of the two conventional 2-D strictly convex test
// quadratics, Q = [6 -2; -2 6], q = (10, 5).
func Quad1() *Quadratic {
	f, err := NewQuadratic(mat.NewSymDense(2, []float64{6, -2, -2, 6}), []float64{10, 5})
	if err != nil {
		panic(err)
	}
	return f
}

// Quad2 is the second conventional test quadratic, Q = [5 -3; -3 5],
// q = (10, 5).
func Quad2() *Quadratic {
	f, err := NewQuadratic(mat.NewSymDense(2, []float64{5, -3, -3, 5}), []float64{10, 5})
	if err != nil {
		panic(err)
	}
	return f
}

// Dim implements optimization.Objective.
func (f *Quadratic) Dim() int { return len(f.lin) }

// Value implements optimization.Objective.
func (f *Quadratic) Value(x []float64, _ optimization.Batch) float64 {
	xv := mat.NewVecDense(len(x), x)
	qx := mat.NewVecDense(len(x), nil)
	qx.MulVec(f.q, xv)
	return 0.5*mat.Dot(xv, qx) + floats.Dot(f.lin, x)
}

// Gradient implements optimization.Objective; the gradient is Qx + q.
func (f *Quadratic) Gradient(x []float64, _ optimization.Batch) []float64 {
	qx := mat.NewVecDense(len(x), nil)
	qx.MulVec(f.q, mat.NewVecDense(len(x), x))
	g := make([]float64, len(x))
	for i := range g {
		g[i] = qx.AtVec(i) + f.lin[i]
	}
	return g
}

// LowerBound implements optimization.Objective with the exact optimum.
func (f *Quadratic) LowerBound() float64 { return f.fStar }

// Minimizer returns a copy of the unique minimizer.
func (f *Quadratic) Minimizer() []float64 {
	return append([]float64(nil), f.xStar...)
}

// Sphere is f(x) = sum x_i^2, the simplest convex benchmark, with its
// minimum 0 at the origin.
type Sphere struct {
	n int
}

// NewSphere returns the n-dimensional sphere function.
func NewSphere(n int) *Sphere { return &Sphere{n: n} }

func (f *Sphere) Dim() int { return f.n }

func (f *Sphere) Value(x []float64, _ optimization.Batch) float64 {
	return floats.Dot(x, x)
}

func (f *Sphere) Gradient(x []float64, _ optimization.Batch) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g
}

func (f *Sphere) LowerBound() float64 { return 0 }

// Minimizer returns the origin.
func (f *Sphere) Minimizer() []float64 { return make([]float64, f.n) }

// Rosenbrock is the 2-D banana valley (a - x0)^2 + b(x1 - x0^2)^2 with
// the standard a = 1, b = 100 and its unique minimum at (1, 1).
type Rosenbrock struct {
	A, B float64
}

// NewRosenbrock returns the standard Rosenbrock function.
func NewRosenbrock() *Rosenbrock { return &Rosenbrock{A: 1, B: 100} }

func (f *Rosenbrock) Dim() int { return 2 }

func (f *Rosenbrock) Value(x []float64, _ optimization.Batch) float64 {
	t := x[1] - x[0]*x[0]
	return (f.A-x[0])*(f.A-x[0]) + f.B*t*t
}

func (f *Rosenbrock) Gradient(x []float64, _ optimization.Batch) []float64 {
	t := x[1] - x[0]*x[0]
	return []float64{
		-2*(f.A-x[0]) - 4*f.B*x[0]*t,
		2 * f.B * t,
	}
}

func (f *Rosenbrock) LowerBound() float64 { return 0 }

// Minimizer returns (a, a^2).
func (f *Rosenbrock) Minimizer() []float64 { return []float64{f.A, f.A * f.A} }

// Ackley is the classic multimodal benchmark with its global minimum 0
// at the origin and a field of local minima around it.
type Ackley struct {
	n int
}

// NewAckley returns the n-dimensional Ackley function.
func NewAckley(n int) *Ackley { return &Ackley{n: n} }

func (f *Ackley) Dim() int { return f.n }

func (f *Ackley) Value(x []float64, _ optimization.Batch) float64 {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

func (f *Ackley) Gradient(x []float64, _ optimization.Batch) []float64 {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	g := make([]float64, len(x))
	rms := math.Sqrt(sumSq / n)
	if rms == 0 {
		// The first term is not differentiable at the origin; the
		// subgradient 0 is returned there.
		return g
	}
	expSq := math.Exp(-0.2 * rms)
	expCos := math.Exp(sumCos / n)
	for i, v := range x {
		g[i] = 4*v*expSq/(n*rms) + 2*math.Pi*math.Sin(2*math.Pi*v)*expCos/n
	}
	return g
}

func (f *Ackley) LowerBound() float64 { return 0 }

// Minimizer returns the origin.
func (f *Ackley) Minimizer() []float64 { return make([]float64, f.n) }

// ByName returns a named benchmark objective. Rosenbrock and the test
// quadratics are fixed at dimension 2; dim sizes the others.
func ByName(name string, dim int) (optimization.Objective, error) {
	const comp = "functions"
	if dim <= 0 {
		dim = 2
	}
	switch name {
	case "sphere":
		return NewSphere(dim), nil
	case "ackley":
		return NewAckley(dim), nil
	case "rosenbrock":
		return NewRosenbrock(), nil
	case "quad1":
		return Quad1(), nil
	case "quad2":
		return Quad2(), nil
	}
	return nil, optimization.NewErrorf(comp, "unknown objective %q", name)
}
