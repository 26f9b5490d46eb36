// Package buydown computes the economics of buying a mortgage rate down:
// amortized monthly payments, upfront buydown cost, ROI, and breakeven.
// All functions are pure; persistence belongs to the ingestion pipeline.
package buydown

import (
	"errors"
	"fmt"
	"math"
)

// DefaultTermYears is the standard fixed-rate term.
const DefaultTermYears = 30

// rateEpsilon tolerates float drift when looking up a rate in a price map
// whose keys come from grid arithmetic.
const rateEpsilon = 1e-9

// ErrRateUnavailable reports that a requested rate has no price on the
// interpolated curve for the requested date. Distinct from the zero-valued
// Result the batch pipeline uses mid-run: callers of the consumer query must
// not mistake "no data" for "zero ROI".
var ErrRateUnavailable = errors.New("requested rate not available on the price curve")

// Result is the outcome of a single buydown ROI computation. The zero value
// is the "no usable data" sentinel: it is returned, not an error, when a
// price is missing or the cost is non-positive, since rates falling off the
// curve are a steady-state condition rather than a defect.
type Result struct {
	ROIPercent      float64
	BreakevenMonths float64
}

// MonthlyPayment returns the fully-amortizing monthly payment for a
// fixed-rate loan. annualRatePct is in percentage points (6.0 = 6%).
func MonthlyPayment(annualRatePct, loanAmount float64, termYears int) float64 {
	months := float64(termYears * 12)
	monthlyRate := annualRatePct / 100 / 12
	if monthlyRate == 0 {
		return loanAmount / months
	}
	return monthlyRate * loanAmount / (1 - math.Pow(1+monthlyRate, -months))
}

// Cost returns the upfront cost of buying down from the original rate's price
// to the buydown rate's price. Prices are 100-based points. The result may be
// zero or negative when the buydown price is at or above the original; the
// sign is not asserted here.
func Cost(priceOriginal, priceBuydown, loanAmount float64) float64 {
	return (priceOriginal - priceBuydown) * loanAmount / 100
}

// ROI computes annualized return and breakeven for one (original, buydown)
// rate pair against a rate→price mapping. Missing prices, non-positive cost,
// or non-positive savings each yield the corresponding zero sentinel fields.
// Rate ordering is deliberately not enforced: the pipeline iterates grid
// pairs mechanically and relies on the sentinels; the consumer-facing Quote
// is where inverted input is rejected.
func ROI(originalRate, buydownRate float64, prices map[float64]float64, loanAmount float64, termYears int) Result {
	priceOriginal, okOriginal := priceAt(prices, originalRate)
	priceBuydown, okBuydown := priceAt(prices, buydownRate)
	if !okOriginal || !okBuydown {
		return Result{}
	}

	cost := Cost(priceOriginal, priceBuydown, loanAmount)
	savings := MonthlyPayment(originalRate, loanAmount, termYears) -
		MonthlyPayment(buydownRate, loanAmount, termYears)

	var r Result
	if cost > 0 {
		r.ROIPercent = savings * 12 / cost * 100
	}
	if savings > 0 {
		r.BreakevenMonths = cost / savings
	}
	if cost <= 0 {
		// Non-positive cost means the buydown pays for itself (or the data is
		// inverted); both economics fields report the sentinel.
		return Result{}
	}
	return r
}

// QuoteRequest is the consumer-facing query: what does buying loanAmount down
// from OriginalRate to BuydownRate cost and return, as of a date's curve.
type QuoteRequest struct {
	LoanAmount   float64
	OriginalRate float64
	BuydownRate  float64
	TermYears    int
}

// Quote is the full set of figures the dashboard and CLI display.
type Quote struct {
	OriginalPayment float64 `json:"original_payment"`
	BuydownPayment  float64 `json:"buydown_payment"`
	MonthlySavings  float64 `json:"monthly_savings"`
	BuydownCost     float64 `json:"buydown_cost"`
	ROIPercent      float64 `json:"roi_percent"`
	BreakevenMonths float64 `json:"breakeven_months"`
}

// NewQuote validates the request and computes a quote against the supplied
// price curve. Inverted rate pairs are rejected outright rather than returning
// a sign-flipped, economically meaningless ROI. A rate absent from the curve
// is ErrRateUnavailable.
func NewQuote(req QuoteRequest, prices map[float64]float64) (Quote, error) {
	if req.LoanAmount <= 0 {
		return Quote{}, fmt.Errorf("loan amount must be positive, got %.2f", req.LoanAmount)
	}
	if req.BuydownRate >= req.OriginalRate {
		return Quote{}, fmt.Errorf("buydown rate %.2f must be below original rate %.2f",
			req.BuydownRate, req.OriginalRate)
	}
	termYears := req.TermYears
	if termYears <= 0 {
		termYears = DefaultTermYears
	}

	priceOriginal, okOriginal := priceAt(prices, req.OriginalRate)
	priceBuydown, okBuydown := priceAt(prices, req.BuydownRate)
	if !okOriginal || !okBuydown {
		return Quote{}, ErrRateUnavailable
	}

	originalPayment := MonthlyPayment(req.OriginalRate, req.LoanAmount, termYears)
	buydownPayment := MonthlyPayment(req.BuydownRate, req.LoanAmount, termYears)
	q := Quote{
		OriginalPayment: originalPayment,
		BuydownPayment:  buydownPayment,
		MonthlySavings:  originalPayment - buydownPayment,
		BuydownCost:     Cost(priceOriginal, priceBuydown, req.LoanAmount),
	}
	r := ROI(req.OriginalRate, req.BuydownRate, prices, req.LoanAmount, termYears)
	q.ROIPercent = r.ROIPercent
	q.BreakevenMonths = r.BreakevenMonths
	return q, nil
}

// priceAt looks a rate up in the price map, falling back to an epsilon scan
// so grid-derived keys and caller-supplied literals interoperate.
func priceAt(prices map[float64]float64, rate float64) (float64, bool) {
	if price, ok := prices[rate]; ok {
		return price, true
	}
	for r, price := range prices {
		if diff := r - rate; diff < rateEpsilon && diff > -rateEpsilon {
			return price, true
		}
	}
	return 0, false
}
