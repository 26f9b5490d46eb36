// Package anomaly flags suspicious day-over-day coupon price moves. The
// baseline detector is a deterministic relative-change threshold against the
// most recent prior curve; an optional secondary classifier may review the
// suspicious set, but the pipeline must work correctly without one.
package anomaly

import (
	"github.com/rewired-gh/mbsbuydown/internal/models"
)

// DefaultThreshold is the relative day-over-day move above which a price is
// suspicious: 5%.
const DefaultThreshold = 0.05

// Detector classifies one day's prices against the prior curve.
type Detector struct {
	threshold float64
}

// New creates a detector. threshold <= 0 uses DefaultThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Classify labels every point in today as valid or suspicious. With no prior
// curve (first ever ingest) everything is valid. A rate with no prior-day
// counterpart is valid. Nothing is dropped; the caller decides what to do
// with the suspicious set. Returns a ValidationError only when today's points
// are malformed (conflicting duplicate rates).
func (d *Detector) Classify(today []models.PricePoint, previous *models.PriceCurve) (models.Classification, error) {
	var result models.Classification
	if len(today) == 0 {
		return result, nil
	}

	// Curve construction enforces the one-price-per-rate invariant.
	curve, err := models.NewPriceCurve(today[0].Date, today)
	if err != nil {
		return models.Classification{}, err
	}

	for _, point := range curve.Points() {
		prevPrice, ok := previous.Price(point.CouponRate)
		if !ok {
			result.Valid = append(result.Valid, point)
			continue
		}
		change := (point.Price - prevPrice) / prevPrice
		if change < 0 {
			change = -change
		}
		if change > d.threshold {
			result.Suspicious = append(result.Suspicious, point)
		} else {
			result.Valid = append(result.Valid, point)
		}
	}
	return result, nil
}
