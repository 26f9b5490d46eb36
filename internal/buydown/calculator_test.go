package buydown

import (
	"errors"
	"math"
	"testing"
)

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		name       string
		rate       float64
		loan       float64
		years      int
		want       float64
		tolerance  float64
	}{
		{"reference 6pct 300k 30yr", 6.0, 300000, 30, 1798.65, 0.01},
		{"reference 5.5pct 300k 30yr", 5.5, 300000, 30, 1703.37, 0.02},
		{"zero rate divides evenly", 0, 360000, 30, 1000.00, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyPayment(tt.rate, tt.loan, tt.years)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MonthlyPayment(%v, %v, %d) = %.4f, want %.2f ±%v",
					tt.rate, tt.loan, tt.years, got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestCost(t *testing.T) {
	if got := Cost(100.0, 99.0, 300000); got != 3000 {
		t.Errorf("Cost = %v, want 3000", got)
	}
	if got := Cost(99.0, 100.0, 300000); got != -3000 {
		t.Errorf("Cost with inverted prices = %v, want -3000 (sign not asserted)", got)
	}
}

func TestROI_PositiveCost(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0, 5.5: 99.0}
	r := ROI(6.0, 5.5, prices, 300000, 30)

	if r.ROIPercent <= 0 {
		t.Errorf("ROIPercent = %v, want positive", r.ROIPercent)
	}
	if r.BreakevenMonths <= 0 {
		t.Errorf("BreakevenMonths = %v, want positive", r.BreakevenMonths)
	}

	cost := Cost(100.0, 99.0, 300000)
	savings := MonthlyPayment(6.0, 300000, 30) - MonthlyPayment(5.5, 300000, 30)
	if math.Abs(r.BreakevenMonths-cost/savings) > 1e-9 {
		t.Errorf("BreakevenMonths = %v, want cost/savings = %v", r.BreakevenMonths, cost/savings)
	}
	if math.Abs(r.ROIPercent-savings*12/cost*100) > 1e-9 {
		t.Errorf("ROIPercent = %v, want %v", r.ROIPercent, savings*12/cost*100)
	}
}

func TestROI_NegativeCostSentinel(t *testing.T) {
	// Buydown price above original price: cost = -3000, guard yields zeros.
	prices := map[float64]float64{6.0: 99.0, 5.5: 100.0}
	r := ROI(6.0, 5.5, prices, 300000, 30)
	if r.ROIPercent != 0 || r.BreakevenMonths != 0 {
		t.Errorf("got %+v, want zero sentinel for cost <= 0", r)
	}
}

func TestROI_MissingPriceSentinel(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0}
	if r := ROI(6.0, 5.5, prices, 300000, 30); r != (Result{}) {
		t.Errorf("got %+v, want zero sentinel for missing buydown price", r)
	}
	if r := ROI(4.0, 3.5, prices, 300000, 30); r != (Result{}) {
		t.Errorf("got %+v, want zero sentinel for missing original price", r)
	}
}

func TestROI_EpsilonRateLookup(t *testing.T) {
	// Keys produced by repeated 0.1 accumulation rather than literals.
	key := 3.0
	for i := 0; i < 30; i++ {
		key += 0.1
	}
	prices := map[float64]float64{key: 100.0, 5.5: 99.0}
	r := ROI(6.0, 5.5, prices, 300000, 30)
	if r.ROIPercent <= 0 {
		t.Errorf("rate lookup missed a key within epsilon of 6.0: %+v", r)
	}
}

func TestNewQuote(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0, 5.5: 99.0}
	q, err := NewQuote(QuoteRequest{LoanAmount: 300000, OriginalRate: 6.0, BuydownRate: 5.5}, prices)
	if err != nil {
		t.Fatalf("NewQuote: %v", err)
	}

	if math.Abs(q.OriginalPayment-1798.65) > 0.01 {
		t.Errorf("OriginalPayment = %v, want ≈1798.65", q.OriginalPayment)
	}
	if math.Abs(q.MonthlySavings-(q.OriginalPayment-q.BuydownPayment)) > 1e-9 {
		t.Errorf("MonthlySavings inconsistent: %+v", q)
	}
	if q.BuydownCost != 3000 {
		t.Errorf("BuydownCost = %v, want 3000", q.BuydownCost)
	}
	if q.ROIPercent <= 0 || q.BreakevenMonths <= 0 {
		t.Errorf("economics should be positive: %+v", q)
	}
}

func TestNewQuote_RejectsInvertedRates(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0, 5.5: 99.0}
	if _, err := NewQuote(QuoteRequest{LoanAmount: 300000, OriginalRate: 5.5, BuydownRate: 6.0}, prices); err == nil {
		t.Error("expected error for buydown rate above original rate")
	}
	if _, err := NewQuote(QuoteRequest{LoanAmount: 300000, OriginalRate: 6.0, BuydownRate: 6.0}, prices); err == nil {
		t.Error("expected error for equal rates")
	}
}

func TestNewQuote_RejectsNonPositiveLoan(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0, 5.5: 99.0}
	if _, err := NewQuote(QuoteRequest{LoanAmount: 0, OriginalRate: 6.0, BuydownRate: 5.5}, prices); err == nil {
		t.Error("expected error for zero loan amount")
	}
}

func TestNewQuote_RateUnavailable(t *testing.T) {
	prices := map[float64]float64{6.0: 100.0}
	_, err := NewQuote(QuoteRequest{LoanAmount: 300000, OriginalRate: 6.0, BuydownRate: 5.5}, prices)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}
