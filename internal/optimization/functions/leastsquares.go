package functions

import (
	"gonum.org/v1/gonum/mat"

	"github.com/peakline/descent/internal/optimization"
)

// LeastSquares is the linear regression objective
// f(w) = 1/(2m) ||Xw - y||^2 over m samples. It evaluates on whatever
// batch it is handed, so the optimizer can run it full-batch or
// mini-batched.
type LeastSquares struct {
	full optimization.Batch
	dim  int
}

// NewLeastSquares builds the objective from the sample matrix X, one
// row per sample, and the target vector y.
func NewLeastSquares(X *mat.Dense, y *mat.VecDense) (*LeastSquares, error) {
	const comp = "least_squares"
	m, n := X.Dims()
	if y.Len() != m {
		return nil, optimization.NewErrorf(comp, "X has %d rows but y has length %d", m, y.Len())
	}
	return &LeastSquares{full: optimization.Batch{X: X, Y: y}, dim: n}, nil
}

// Dim implements optimization.Objective.
func (f *LeastSquares) Dim() int { return f.dim }

// FullBatch implements optimization.Batched.
func (f *LeastSquares) FullBatch() optimization.Batch { return f.full }

// Value implements optimization.Objective.
func (f *LeastSquares) Value(w []float64, b optimization.Batch) float64 {
	b = f.batch(b)
	r := f.residual(w, b)
	return mat.Dot(r, r) / (2 * float64(b.Len()))
}

// Gradient implements optimization.Objective: X'(Xw - y)/m on the
// batch.
func (f *LeastSquares) Gradient(w []float64, b optimization.Batch) []float64 {
	b = f.batch(b)
	r := f.residual(w, b)
	gv := mat.NewVecDense(f.dim, nil)
	gv.MulVec(b.X.T(), r)
	g := make([]float64, f.dim)
	m := float64(b.Len())
	for i := range g {
		g[i] = gv.AtVec(i) / m
	}
	return g
}

// LowerBound implements optimization.Objective: a sum of squares is
// bounded below by zero, even when the system is inconsistent.
func (f *LeastSquares) LowerBound() float64 { return 0 }

func (f *LeastSquares) batch(b optimization.Batch) optimization.Batch {
	if b.IsZero() {
		return f.full
	}
	return b
}

func (f *LeastSquares) residual(w []float64, b optimization.Batch) *mat.VecDense {
	m := b.Len()
	r := mat.NewVecDense(m, nil)
	r.MulVec(b.X, mat.NewVecDense(len(w), w))
	r.SubVec(r, b.Y)
	return r
}
