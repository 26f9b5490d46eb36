// Package grid defines the canonical evenly-spaced sequence of coupon rates
// for which an interpolated price is always produced.
package grid

import "fmt"

// epsilon tolerates floating-point drift from step accumulation when deciding
// whether the upper bound is still inside the grid.
const epsilon = 1e-9

// minStep is the snap resolution: grid points carry exactly two decimals, so
// a finer step would collapse adjacent points into duplicates.
const minStep = 0.01

// Grid is an inclusive, evenly-spaced sequence of coupon rates.
type Grid struct {
	min, max, step float64
	rates          []float64
}

// Default returns the standard coupon grid: 3.0% to 7.5% in 0.1% steps,
// 46 points.
func Default() *Grid {
	g, err := New(3.0, 7.5, 0.1)
	if err != nil {
		panic(err) // constants are valid
	}
	return g
}

// New constructs a grid from min to max inclusive with the given step.
// Fails when min >= max, step <= 0, or step is finer than the two-decimal
// snap resolution; parameters are never silently defaulted.
func New(min, max, step float64) (*Grid, error) {
	if min >= max {
		return nil, fmt.Errorf("grid min rate %.4f must be below max rate %.4f", min, max)
	}
	if step <= 0 {
		return nil, fmt.Errorf("grid step must be positive, got %.4f", step)
	}
	if step < minStep-epsilon {
		return nil, fmt.Errorf("grid step %.4f is below the %.2f resolution", step, minStep)
	}
	g := &Grid{min: min, max: max, step: step}
	for r := min; r <= max+epsilon; r += step {
		g.rates = append(g.rates, snap(r))
	}
	return g, nil
}

// snap rounds a rate to two decimals so grid points carry exact values
// instead of accumulated float error.
func snap(r float64) float64 {
	return float64(int64(r*100+0.5)) / 100
}

// Rates returns the grid points in ascending order.
func (g *Grid) Rates() []float64 {
	out := make([]float64, len(g.rates))
	copy(out, g.rates)
	return out
}

// Len returns the number of grid points.
func (g *Grid) Len() int {
	return len(g.rates)
}

// Contains reports whether rate coincides with a grid point within epsilon.
func (g *Grid) Contains(rate float64) bool {
	for _, r := range g.rates {
		if diff := r - rate; diff < epsilon && diff > -epsilon {
			return true
		}
	}
	return false
}

// Neighbors returns the greatest grid rate strictly below and the smallest
// strictly above the given rate. Either bound may be absent at the grid edges.
func (g *Grid) Neighbors(rate float64) (lower float64, hasLower bool, upper float64, hasUpper bool) {
	for _, r := range g.rates {
		if r < rate-epsilon {
			lower, hasLower = r, true
		} else if r > rate+epsilon {
			upper, hasUpper = r, true
			break
		}
	}
	return lower, hasLower, upper, hasUpper
}
