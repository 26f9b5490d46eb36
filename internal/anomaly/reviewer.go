package anomaly

import (
	"context"
	"fmt"
	"math"

	"github.com/rewired-gh/mbsbuydown/internal/models"
)

const (
	// sigmaFloor keeps low-variance histories from flagging routine moves.
	sigmaFloor = 0.25

	// minHistory is the smallest sample that yields a usable dispersion.
	minHistory = 3
)

// welfordState accumulates running mean and variance.
type welfordState struct {
	count int
	mean  float64
	m2    float64
}

func (w *welfordState) update(price float64) {
	w.count++
	delta := price - w.mean
	w.mean += delta / float64(w.count)
	delta2 := price - w.mean
	w.m2 += delta * delta2
}

func (w *welfordState) sigma() float64 {
	if w.count < 2 {
		return sigmaFloor
	}
	variance := w.m2 / float64(w.count-1)
	return math.Max(math.Sqrt(variance), sigmaFloor)
}

// StatReviewer is a SecondaryClassifier that reinstates suspicious points
// whose price sits within a dispersion band around the coupon's historical
// mean. A single day-over-day jump past the baseline threshold can still be
// in line with how that coupon has traded over the lookback window.
type StatReviewer struct {
	history   HistorySource
	sigmaBand float64
}

// HistorySource loads the stored price series for a coupon.
type HistorySource func(couponRate float64, suspicious models.PricePoint) ([]float64, error)

// NewStatReviewer creates a reviewer that clears points within sigmaBand
// standard deviations of the historical mean.
func NewStatReviewer(history HistorySource, sigmaBand float64) *StatReviewer {
	if sigmaBand <= 0 {
		sigmaBand = 3.0
	}
	return &StatReviewer{
		history:   history,
		sigmaBand: sigmaBand,
	}
}

// Review partitions the suspicious set: points within the dispersion band of
// their coupon's history are reinstated, the rest stay suspicious. Coupons
// with too little history stay suspicious.
func (r *StatReviewer) Review(ctx context.Context, suspicious []models.PricePoint) (valid, stillSuspicious []models.PricePoint, err error) {
	for _, p := range suspicious {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		series, err := r.history(p.CouponRate, p)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load history for coupon %.2f: %w", p.CouponRate, err)
		}
		if len(series) < minHistory {
			stillSuspicious = append(stillSuspicious, p)
			continue
		}

		var w welfordState
		for _, price := range series {
			w.update(price)
		}

		if math.Abs(p.Price-w.mean) <= r.sigmaBand*w.sigma() {
			valid = append(valid, p)
		} else {
			stillSuspicious = append(stillSuspicious, p)
		}
	}
	return valid, stillSuspicious, nil
}
