// Package models defines the core domain entities: price points, price
// curves, buydown results, and the anomaly classification verdict.
package models

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the canonical on-disk and wire format for trade dates.
const DateLayout = "2006-01-02"

// rateEpsilon is the tolerance for treating two coupon rates as identical.
const rateEpsilon = 1e-9

// PricePoint is one observed price for a coupon rate on a trade date.
// Uniquely identified by (Date, CouponRate).
type PricePoint struct {
	Date       time.Time `json:"date"`
	CouponRate float64   `json:"coupon_rate"`
	Price      float64   `json:"price"`
}

// Validate checks price point field constraints.
func (p *PricePoint) Validate() error {
	if p.Date.IsZero() {
		return &ValidationError{Msg: "price point date must not be zero"}
	}
	if p.CouponRate <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("coupon rate must be positive, got %.4f", p.CouponRate)}
	}
	if p.Price <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("price must be positive, got %.4f for coupon %.2f", p.Price, p.CouponRate)}
	}
	return nil
}

// PriceCurve is the set of all price points for a single trade date,
// a mapping from coupon rate to price. At most one price per rate.
type PriceCurve struct {
	Date   time.Time
	prices map[float64]float64
	rates  []float64 // ascending
}

// NewPriceCurve builds a curve from price points, all of which must share the
// same date. A rate appearing twice with materially different prices is a
// ValidationError; exact duplicates collapse.
func NewPriceCurve(date time.Time, points []PricePoint) (*PriceCurve, error) {
	c := &PriceCurve{
		Date:   date,
		prices: make(map[float64]float64, len(points)),
	}
	for i := range points {
		p := &points[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if !sameDay(p.Date, date) {
			return nil, &ValidationError{Msg: fmt.Sprintf(
				"price point date %s does not match curve date %s",
				p.Date.Format(DateLayout), date.Format(DateLayout))}
		}
		rate := canonicalRate(p.CouponRate)
		if existing, ok := c.prices[rate]; ok {
			if diff := existing - p.Price; diff > rateEpsilon || diff < -rateEpsilon {
				return nil, &ValidationError{Msg: fmt.Sprintf(
					"conflicting prices for coupon %.2f on %s: %.4f vs %.4f",
					rate, date.Format(DateLayout), existing, p.Price)}
			}
			continue
		}
		c.prices[rate] = p.Price
		c.rates = append(c.rates, rate)
	}
	sort.Float64s(c.rates)
	return c, nil
}

// Price returns the price at the given coupon rate.
func (c *PriceCurve) Price(rate float64) (float64, bool) {
	if c == nil {
		return 0, false
	}
	price, ok := c.prices[canonicalRate(rate)]
	return price, ok
}

// Rates returns the coupon rates in ascending order.
func (c *PriceCurve) Rates() []float64 {
	if c == nil {
		return nil
	}
	out := make([]float64, len(c.rates))
	copy(out, c.rates)
	return out
}

// Len returns the number of distinct coupon rates on the curve.
func (c *PriceCurve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rates)
}

// Points returns the curve as price points sorted by coupon rate.
func (c *PriceCurve) Points() []PricePoint {
	if c == nil {
		return nil
	}
	points := make([]PricePoint, 0, len(c.rates))
	for _, rate := range c.rates {
		points = append(points, PricePoint{Date: c.Date, CouponRate: rate, Price: c.prices[rate]})
	}
	return points
}

// canonicalRate snaps a coupon rate to two decimal places so that rates
// produced by float arithmetic (e.g. grid stepping) compare equal to the
// rates they denote. Source coupons are quoted in 0.5 increments.
func canonicalRate(rate float64) float64 {
	return float64(int64(rate*100+0.5)) / 100
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
