package linesearch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/peakline/descent/internal/optimization"
	"github.com/peakline/descent/internal/optimization/functions"
)

func wolfeSearch(t *testing.T, aStart float64) *ArmijoWolfe {
	t.Helper()
	ls, err := NewArmijoWolfe(0.01, 0.9, aStart, 0.9, 0.01, 1e-16, nil)
	require.NoError(t, err)
	return ls
}

// checkStrongWolfe asserts both acceptance conditions at the returned
// step.
func checkStrongWolfe(t *testing.T, obj optimization.Objective, x, d []float64,
	v, phiP0, m1, m2 float64, res Result) {
	t.Helper()
	require.True(t, res.Satisfied)
	assert.LessOrEqual(t, res.Value, v+m1*res.Step*phiP0)
	phiP := floats.Dot(res.Grad, d)
	assert.LessOrEqual(t, math.Abs(phiP), -m2*phiP0)
}

func TestArmijoWolfeOnQuadratic(t *testing.T) {
	obj := functions.Quad1()
	x := []float64{0, 0}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	g := obj.Gradient(x, b)
	d := make([]float64, len(g))
	for i := range d {
		d[i] = -g[i]
	}
	phiP0 := floats.Dot(g, d)
	require.Negative(t, phiP0)

	ls := wolfeSearch(t, 1)
	budget := optimization.NewEvalBudget(100)
	res := ls.Search(obj, b, x, d, v, phiP0, budget)

	checkStrongWolfe(t, obj, x, d, v, phiP0, 0.01, 0.9, res)
	assert.Less(t, res.Value, v)
	assert.Equal(t, res.Evals, budget.Used())

	// On a parabola the interpolated step is the exact line minimizer.
	var dQd float64
	qd := obj.Gradient(d, b) // Qd + q
	for i := range d {
		dQd += d[i] * (qd[i] - g[i])
	}
	assert.InDelta(t, -phiP0/dQd, res.Step, 1e-12)
}

func TestArmijoWolfeExpansion(t *testing.T) {
	// A tiny starting step satisfies Armijo but not the curvature
	// condition, so the first phase has to grow it.
	obj := functions.NewSphere(1)
	x := []float64{1}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	d := []float64{-2}
	phiP0 := -4.0

	ls := wolfeSearch(t, 0.01)
	budget := optimization.NewEvalBudget(100)
	res := ls.Search(obj, b, x, d, v, phiP0, budget)

	checkStrongWolfe(t, obj, x, d, v, phiP0, 0.01, 0.9, res)
	assert.Greater(t, res.Step, 0.01)
	assert.Greater(t, res.Evals, 1)
}

func TestArmijoWolfeAscentDirection(t *testing.T) {
	// Walking uphill never yields an admissible step; the bracket
	// collapses onto zero instead of looping.
	obj := functions.NewSphere(2)
	x := []float64{1, 1}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	g := obj.Gradient(x, b)
	phiP0 := floats.Dot(g, g)

	ls := wolfeSearch(t, 1)
	budget := optimization.NewEvalBudget(100)
	res := ls.Search(obj, b, x, g, v, phiP0, budget)

	assert.False(t, res.Satisfied)
	assert.LessOrEqual(t, res.Step, 1e-16)
	assert.False(t, budget.Exhausted())
}

func TestArmijoWolfeBudget(t *testing.T) {
	obj := functions.NewRosenbrock()
	x := []float64{-1, 1}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	g := obj.Gradient(x, b)
	d := make([]float64, len(g))
	for i := range d {
		d[i] = -g[i]
	}
	phiP0 := floats.Dot(g, d)

	ls := wolfeSearch(t, 1)
	budget := optimization.NewEvalBudget(1)
	res := ls.Search(obj, b, x, d, v, phiP0, budget)

	assert.False(t, res.Satisfied)
	assert.True(t, budget.Exhausted())
	assert.LessOrEqual(t, res.Evals, 2)
}

func TestBacktrackingOnSphere(t *testing.T) {
	obj := functions.NewSphere(2)
	x := []float64{1, 1}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	g := obj.Gradient(x, b)
	d := make([]float64, len(g))
	for i := range d {
		d[i] = -g[i]
	}
	phiP0 := floats.Dot(g, d)

	ls, err := NewBacktracking(0.01, 1, 0.9, 1e-16, nil)
	require.NoError(t, err)
	budget := optimization.NewEvalBudget(100)
	res := ls.Search(obj, b, x, d, v, phiP0, budget)

	require.True(t, res.Satisfied)
	assert.LessOrEqual(t, res.Value, v+0.01*res.Step*phiP0)
	// The unit step overshoots to the mirror point, one shrink lands.
	assert.InDelta(t, 0.9, res.Step, 1e-15)
	assert.Equal(t, 2, res.Evals)
}

func TestBacktrackingStepCollapse(t *testing.T) {
	// Against an ascent direction every trial fails Armijo and the step
	// shrinks to the admissible minimum.
	obj := functions.NewSphere(2)
	x := []float64{1, 1}
	b := optimization.Batch{}
	v := obj.Value(x, b)
	g := obj.Gradient(x, b)
	phiP0 := floats.Dot(g, g)

	ls, err := NewBacktracking(0.01, 1, 0.5, 1e-6, nil)
	require.NoError(t, err)
	budget := optimization.NewEvalBudget(1000)
	res := ls.Search(obj, b, x, g, v, phiP0, budget)

	assert.False(t, res.Satisfied)
	assert.LessOrEqual(t, res.Step, 1e-6)
}

func TestNewArmijoWolfeValidation(t *testing.T) {
	tests := []struct {
		name                               string
		m1, m2, aStart, tau, sfgrd, minStep float64
	}{
		{"m1 zero", 0, 0.9, 1, 0.9, 0.01, 0},
		{"m1 one", 1, 0.9, 1, 0.9, 0.01, 0},
		{"m2 zero", 0.01, 0, 1, 0.9, 0.01, 0},
		{"m2 one", 0.01, 1, 1, 0.9, 0.01, 0},
		{"a_start zero", 0.01, 0.9, 0, 0.9, 0.01, 0},
		{"a_start nan", 0.01, 0.9, math.NaN(), 0.9, 0.01, 0},
		{"tau zero", 0.01, 0.9, 1, 0, 0.01, 0},
		{"tau one", 0.01, 0.9, 1, 1, 0.01, 0},
		{"sfgrd one", 0.01, 0.9, 1, 0.9, 1, 0},
		{"negative min_a", 0.01, 0.9, 1, 0.9, 0.01, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArmijoWolfe(tt.m1, tt.m2, tt.aStart, tt.tau, tt.sfgrd, tt.minStep, nil)
			require.Error(t, err)
			_, ok := optimization.IsConfigError(err)
			assert.True(t, ok)
		})
	}
}

func TestNewBacktrackingValidation(t *testing.T) {
	tests := []struct {
		name                    string
		m1, aStart, tau, minStep float64
	}{
		{"m1 zero", 0, 1, 0.9, 0},
		{"a_start negative", 0.01, -1, 0.9, 0},
		{"tau one", 0.01, 1, 1, 0},
		{"min_a nan", 0.01, 1, 0.9, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBacktracking(tt.m1, tt.aStart, tt.tau, tt.minStep, nil)
			require.Error(t, err)
			_, ok := optimization.IsConfigError(err)
			assert.True(t, ok)
		})
	}
}
