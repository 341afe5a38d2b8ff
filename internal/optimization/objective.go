package optimization

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Objective is the contract the optimizers consume. Implementations
// evaluate a scalar function of n real variables together with its
// gradient (or a subgradient where the function is not differentiable).
type Objective interface {
	// Dim returns the number of variables n.
	Dim() int

	// Value evaluates the function at x. Mini-batchable objectives
	// restrict the evaluation to the samples in b; plain analytic
	// functions ignore b.
	Value(x []float64, b Batch) float64

	// Gradient returns the gradient at x, a vector of length Dim().
	Gradient(x []float64, b Batch) []float64

	// LowerBound returns the best known lower bound on the global
	// optimum, or math.Inf(-1) when no such information is available.
	LowerBound() float64
}

// Batched is implemented by objectives that expose their full sample
// set for mini-batch iteration.
type Batched interface {
	Objective

	// FullBatch returns all samples the objective was built from.
	FullBatch() Batch
}

// Batch carries the evaluation arguments of one mini-batch: sample
// inputs, one row per sample, and their targets. The zero value means
// "no batching" and is what analytic objectives receive.
type Batch struct {
	X *mat.Dense
	Y *mat.VecDense
}

// IsZero reports whether the batch carries no samples.
func (b Batch) IsZero() bool { return b.X == nil && b.Y == nil }

// Len returns the number of samples in the batch.
func (b Batch) Len() int {
	if b.X == nil {
		return 0
	}
	n, _ := b.X.Dims()
	return n
}

// BatchIter yields successive evaluation batches. Iterators never
// terminate: without mini-batching the full batch repeats forever.
type BatchIter func() Batch

// RepeatBatch returns an iterator that yields b forever.
func RepeatBatch(b Batch) BatchIter {
	return func() Batch { return b }
}

// MiniBatches returns an iterator cycling over mini-batches of size
// samples drawn from b. The sample order is reshuffled at the start of
// every pass, and the last batch of a pass may be smaller than size.
// When b carries no samples or size does not split it, the full batch
// repeats instead.
func MiniBatches(b Batch, size int, rng *rand.Rand) BatchIter {
	if b.IsZero() || size <= 0 || size >= b.Len() {
		return RepeatBatch(b)
	}

	n, cols := b.X.Dims()
	perm := rng.Perm(n)
	pos := 0

	return func() Batch {
		if pos >= n {
			perm = rng.Perm(n)
			pos = 0
		}
		end := pos + size
		if end > n {
			end = n
		}

		xb := mat.NewDense(end-pos, cols, nil)
		yb := mat.NewVecDense(end-pos, nil)
		for i, idx := range perm[pos:end] {
			xb.SetRow(i, mat.Row(nil, idx, b.X))
			yb.SetVec(i, b.Y.AtVec(idx))
		}
		pos = end
		return Batch{X: xb, Y: yb}
	}
}
