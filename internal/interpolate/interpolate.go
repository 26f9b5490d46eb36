// Package interpolate maps a sparse set of observed coupon prices onto the
// dense rate grid. Linear interpolation between bracketing observations,
// clamping to the nearest observation outside the observed range.
package interpolate

import (
	"sort"

	"github.com/rewired-gh/mbsbuydown/internal/grid"
	"github.com/rewired-gh/mbsbuydown/internal/models"
)

const epsilon = 1e-9

// Curve produces a price for every grid rate that can be determined from the
// observations. Duplicate observations at the same rate average. Grid rates
// with no observation on either side are omitted; an empty observation set
// yields an empty map. Deterministic and side-effect free: the output feeds
// the buydown economics directly.
func Curve(points []models.PricePoint, g *grid.Grid) map[float64]float64 {
	observed := aggregate(points)
	result := make(map[float64]float64, g.Len())
	if len(observed.rates) == 0 {
		return result
	}

	for _, rate := range g.Rates() {
		if price, ok := observed.at(rate); ok {
			result[rate] = price
			continue
		}
		lower, hasLower := observed.below(rate)
		upper, hasUpper := observed.above(rate)
		switch {
		case hasLower && hasUpper:
			weight := (rate - lower) / (upper - lower)
			result[rate] = observed.prices[lower]*(1-weight) + observed.prices[upper]*weight
		case hasLower:
			result[rate] = observed.prices[lower]
		case hasUpper:
			result[rate] = observed.prices[upper]
		}
	}
	return result
}

// observations holds mean prices per distinct observed rate, rates ascending.
type observations struct {
	rates  []float64
	prices map[float64]float64
}

func aggregate(points []models.PricePoint) observations {
	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for _, p := range points {
		sums[p.CouponRate] += p.Price
		counts[p.CouponRate]++
	}

	obs := observations{prices: make(map[float64]float64, len(sums))}
	for rate, sum := range sums {
		obs.prices[rate] = sum / float64(counts[rate])
		obs.rates = append(obs.rates, rate)
	}
	sort.Float64s(obs.rates)
	return obs
}

// at returns the mean observed price at rate, matched within epsilon.
func (o observations) at(rate float64) (float64, bool) {
	for _, r := range o.rates {
		if diff := r - rate; diff < epsilon && diff > -epsilon {
			return o.prices[r], true
		}
	}
	return 0, false
}

// below returns the greatest observed rate strictly below rate.
func (o observations) below(rate float64) (float64, bool) {
	var best float64
	found := false
	for _, r := range o.rates {
		if r < rate-epsilon {
			best, found = r, true
		} else {
			break
		}
	}
	return best, found
}

// above returns the smallest observed rate strictly above rate.
func (o observations) above(rate float64) (float64, bool) {
	for _, r := range o.rates {
		if r > rate+epsilon {
			return r, true
		}
	}
	return 0, false
}
