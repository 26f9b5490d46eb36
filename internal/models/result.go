package models

import (
	"fmt"
	"time"
)

// BuydownResult is the persisted economics of buying a loan down from
// OriginalRate to BuydownRate on a trade date. Keyed by
// (Date, OriginalRate, BuydownRate).
type BuydownResult struct {
	Date            time.Time `json:"date"`
	OriginalRate    float64   `json:"original_rate"`
	BuydownRate     float64   `json:"buydown_rate"`
	ROIPercent      float64   `json:"roi_percent"`
	BreakevenMonths float64   `json:"breakeven_months"`
}

// Validate checks buydown result field constraints.
func (r *BuydownResult) Validate() error {
	if r.Date.IsZero() {
		return &ValidationError{Msg: "buydown result date must not be zero"}
	}
	if r.OriginalRate <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("original rate must be positive, got %.4f", r.OriginalRate)}
	}
	if r.BuydownRate <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("buydown rate must be positive, got %.4f", r.BuydownRate)}
	}
	return nil
}

// Classification is the anomaly verdict for one day's prices. It labels only;
// every input point appears in exactly one of the two sets.
type Classification struct {
	Valid      []PricePoint
	Suspicious []PricePoint
}
