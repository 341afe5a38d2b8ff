package conjgrad

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Formula selects the nonlinear conjugate gradient beta formula.
type Formula int

const (
	// FletcherReeves: beta = ||g||^2 / ||g_prev||^2.
	FletcherReeves Formula = iota
	// PolakRibiere: beta = g'(g - g_prev) / ||g_prev||^2, clipped at 0
	// so the direction can never reverse.
	PolakRibiere
	// HestenesStiefel: beta = g'(g - g_prev) / (g - g_prev)'d_prev.
	HestenesStiefel
	// DaiYuan: beta = ||g||^2 / (g - g_prev)'d_prev.
	DaiYuan
)

// Valid reports whether f names one of the four formulas.
func (f Formula) Valid() bool { return f >= FletcherReeves && f <= DaiYuan }

func (f Formula) String() string {
	switch f {
	case FletcherReeves:
		return "fletcher-reeves"
	case PolakRibiere:
		return "polak-ribiere"
	case HestenesStiefel:
		return "hestenes-stiefel"
	case DaiYuan:
		return "dai-yuan"
	}
	return "unknown"
}

// ParseFormula maps the usual short and long names onto a Formula.
func ParseFormula(name string) (Formula, bool) {
	switch name {
	case "fr", "fletcher-reeves":
		return FletcherReeves, true
	case "pr", "polak-ribiere":
		return PolakRibiere, true
	case "hs", "hestenes-stiefel":
		return HestenesStiefel, true
	case "dy", "dai-yuan":
		return DaiYuan, true
	}
	return 0, false
}

// betaEps is the denominator magnitude below which a beta formula is
// considered degenerate and the update falls back to steepest descent.
const betaEps = 1e-16

// Strategy produces the next descent direction from the current and
// previous gradients and the previous direction. Implementations are
// pure: no I/O, no retained state beyond construction parameters.
type Strategy interface {
	// Direction returns the search direction for outer iteration iter
	// (1-based) together with the beta that produced it. Beta is 0 for
	// steepest descent, on the first iteration and on restarts. pastG
	// and pastD may be nil when iter is 1.
	Direction(g, pastG, pastD []float64, iter int) (d []float64, beta float64)
}

// SteepestDescent always follows the negated gradient.
type SteepestDescent struct{}

// Direction implements Strategy.
func (SteepestDescent) Direction(g, _, _ []float64, _ int) ([]float64, float64) {
	return negated(g), 0
}

// ConjugateGradient combines the negated gradient with the previous
// direction through one of the four beta formulas. When RestartPeriod
// is positive the direction restarts to plain steepest descent every
// N*RestartPeriod iterations, forgetting accumulated conjugacy to keep
// the global convergence guarantee and the numerics healthy.
type ConjugateGradient struct {
	Formula       Formula
	N             int // problem dimension
	RestartPeriod int // r_start; 0 disables restarts
}

// Direction implements Strategy.
func (cg ConjugateGradient) Direction(g, pastG, pastD []float64, iter int) ([]float64, float64) {
	if iter <= 1 {
		return negated(g), 0
	}
	if cg.RestartPeriod > 0 && iter%(cg.N*cg.RestartPeriod) == 0 {
		return negated(g), 0
	}

	beta := cg.beta(g, pastG, pastD)
	if beta == 0 {
		return negated(g), 0
	}
	d := make([]float64, len(g))
	for i := range d {
		d[i] = -g[i] + beta*pastD[i]
	}
	return d, beta
}

// beta evaluates the selected formula. Polak–Ribiere is clipped at
// zero; a near-zero Hestenes–Stiefel or Dai–Yuan denominator, or a
// non-finite quotient, degrades to steepest descent instead of
// poisoning the direction with NaN or Inf.
func (cg ConjugateGradient) beta(g, pastG, pastD []float64) float64 {
	switch cg.Formula {
	case FletcherReeves:
		den := floats.Dot(pastG, pastG)
		if den < betaEps {
			return 0
		}
		return floats.Dot(g, g) / den

	case PolakRibiere:
		den := floats.Dot(pastG, pastG)
		if den < betaEps {
			return 0
		}
		beta := (floats.Dot(g, g) - floats.Dot(g, pastG)) / den
		return math.Max(beta, 0)

	case HestenesStiefel, DaiYuan:
		var den float64 // (g - g_prev)'d_prev
		for i := range g {
			den += (g[i] - pastG[i]) * pastD[i]
		}
		if math.Abs(den) < betaEps {
			return 0
		}
		num := floats.Dot(g, g)
		if cg.Formula == HestenesStiefel {
			num -= floats.Dot(g, pastG)
		}
		beta := num / den
		if math.IsNaN(beta) || math.IsInf(beta, 0) {
			return 0
		}
		return beta
	}
	return 0
}

func negated(g []float64) []float64 {
	d := make([]float64, len(g))
	for i, v := range g {
		d[i] = -v
	}
	return d
}
