package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/peakline/descent/internal/optimization"
)

// numGradient approximates the gradient by central differences.
func numGradient(obj optimization.Objective, x []float64, b optimization.Batch) []float64 {
	const h = 1e-6
	g := make([]float64, len(x))
	for i := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += h
		xm[i] -= h
		g[i] = (obj.Value(xp, b) - obj.Value(xm, b)) / (2 * h)
	}
	return g
}

func assertGradient(t *testing.T, obj optimization.Objective, x []float64, b optimization.Batch) {
	t.Helper()
	got := obj.Gradient(x, b)
	want := numGradient(obj, x, b)
	require.Len(t, got, len(x))
	for i := range got {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d at %v", i, x)
	}
}

func TestQuadraticMinimizer(t *testing.T) {
	tests := []struct {
		name string
		f    *Quadratic
	}{
		{"quad1", Quad1()},
		{"quad2", Quad2()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xStar := tt.f.Minimizer()
			g := tt.f.Gradient(xStar, optimization.Batch{})
			assert.InDelta(t, 0, floats.Norm(g, 2), 1e-10)
			assert.Equal(t, tt.f.LowerBound(), tt.f.Value(xStar, optimization.Batch{}))

			// Any other point sits above the optimum.
			probe := append([]float64(nil), xStar...)
			probe[0] += 0.5
			assert.Greater(t, tt.f.Value(probe, optimization.Batch{}), tt.f.LowerBound())
		})
	}
}

func TestNewQuadraticRejects(t *testing.T) {
	_, err := NewQuadratic(mat.NewSymDense(2, []float64{1, 0, 0, 1}), []float64{1})
	assert.Error(t, err)

	// Indefinite Q has no Cholesky factorization.
	_, err = NewQuadratic(mat.NewSymDense(2, []float64{1, 2, 2, 1}), []float64{0, 0})
	assert.Error(t, err)
}

func TestGradients(t *testing.T) {
	tests := []struct {
		name string
		obj  optimization.Objective
		x    []float64
	}{
		{"quad1", Quad1(), []float64{1.3, -0.7}},
		{"quad2", Quad2(), []float64{-2, 4}},
		{"sphere", NewSphere(3), []float64{1, -2, 0.5}},
		{"rosenbrock", NewRosenbrock(), []float64{-1, 1}},
		{"rosenbrock near optimum", NewRosenbrock(), []float64{0.9, 0.8}},
		{"ackley", NewAckley(2), []float64{0.3, -0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertGradient(t, tt.obj, tt.x, optimization.Batch{})
		})
	}
}

func TestAckleyOrigin(t *testing.T) {
	f := NewAckley(3)
	x := f.Minimizer()
	assert.InDelta(t, 0, f.Value(x, optimization.Batch{}), 1e-12)
	// Not differentiable at the origin; the subgradient there is zero.
	assert.Equal(t, make([]float64, 3), f.Gradient(x, optimization.Batch{}))
}

func TestRosenbrockMinimizer(t *testing.T) {
	f := NewRosenbrock()
	assert.Equal(t, []float64{1, 1}, f.Minimizer())
	assert.Equal(t, 0.0, f.Value([]float64{1, 1}, optimization.Batch{}))
	assert.Equal(t, []float64{0, 0}, f.Gradient([]float64{1, 1}, optimization.Batch{}))
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		wantDim int
		wantErr bool
	}{
		{"sphere", 5, 5, false},
		{"ackley", 3, 3, false},
		{"rosenbrock", 0, 2, false},
		{"quad1", 0, 2, false},
		{"quad2", 2, 2, false},
		{"himmelblau", 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ByName(tt.name, tt.dim)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, obj.Dim())
		})
	}
}

func TestLeastSquares(t *testing.T) {
	// y = 2*x0 - x1, exactly realizable, so the optimum is zero.
	x := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, -1,
	})
	y := mat.NewVecDense(4, []float64{2, -1, 1, 5})
	f, err := NewLeastSquares(x, y)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Dim())
	assert.Equal(t, 0.0, f.LowerBound())

	w := []float64{2, -1}
	assert.InDelta(t, 0, f.Value(w, optimization.Batch{}), 1e-12)

	w = []float64{0.5, 0.25}
	assertGradient(t, f, w, optimization.Batch{})

	// Evaluating on the full batch explicitly matches the default.
	full := f.FullBatch()
	assert.Equal(t, f.Value(w, optimization.Batch{}), f.Value(w, full))
	assert.Equal(t, f.Gradient(w, optimization.Batch{}), f.Gradient(w, full))

	// A sub-batch is the mean loss over its own samples only.
	sub := optimization.Batch{
		X: mat.NewDense(1, 2, []float64{1, 0}),
		Y: mat.NewVecDense(1, []float64{2}),
	}
	r := 1*w[0] + 0*w[1] - 2
	assert.InDelta(t, r*r/2, f.Value(w, sub), 1e-12)
	assertGradient(t, f, w, sub)
}

func TestLeastSquaresRejects(t *testing.T) {
	x := mat.NewDense(3, 2, nil)
	y := mat.NewVecDense(2, nil)
	_, err := NewLeastSquares(x, y)
	assert.Error(t, err)
}
