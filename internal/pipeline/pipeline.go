// Package pipeline orchestrates one ingestion run: resolve the trade date,
// fetch prices, classify anomalies, persist, alert, and compute buydown
// economics over the rate grid.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/mbsbuydown/internal/anomaly"
	"github.com/rewired-gh/mbsbuydown/internal/buydown"
	"github.com/rewired-gh/mbsbuydown/internal/grid"
	"github.com/rewired-gh/mbsbuydown/internal/interpolate"
	"github.com/rewired-gh/mbsbuydown/internal/logger"
	"github.com/rewired-gh/mbsbuydown/internal/models"
	"github.com/rewired-gh/mbsbuydown/internal/nyfed"
	"github.com/rewired-gh/mbsbuydown/internal/tradedate"
)

// Status is the stable outcome code of a run, reported as the process exit code.
type Status int

const (
	StatusOK           Status = 0
	StatusNoData       Status = 1
	StatusValidation   Status = 2
	StatusNetwork      Status = 3
	StatusEmptyPayload Status = 4
	StatusUnexpected   Status = 5
	StatusInterrupted  Status = 6
)

// Feed supplies daily TBA transaction prices.
type Feed interface {
	Exists(ctx context.Context, date time.Time) (bool, error)
	FetchPrices(ctx context.Context, date time.Time) ([]models.PricePoint, error)
}

// Repository persists price curves and buydown results.
type Repository interface {
	SavePrices(date time.Time, points []models.PricePoint) error
	LoadPrices(date time.Time) (*models.PriceCurve, error)
	LatestDateBefore(date time.Time) (time.Time, bool, error)
	SaveROI(date time.Time, results []models.BuydownResult) error
	PruneBefore(cutoff time.Time) (int64, error)
}

// Alerter notifies an operator about suspicious prices and run failures.
// Send failures are logged, never fatal.
type Alerter interface {
	SendSuspicious(date time.Time, points []models.PricePoint) error
	SendError(err error) error
}

// Options tunes a Pipeline beyond its collaborators.
type Options struct {
	LoanAmount  float64
	TermYears   int
	Increments  []float64
	MaxAttempts int
	// RetentionYears drops stored rows older than this many years after each
	// successful run. Zero disables pruning.
	RetentionYears int
}

// Pipeline wires the feed, repository, detector, and alert sink into the
// ingestion state machine.
type Pipeline struct {
	feed      Feed
	repo      Repository
	alerter   Alerter
	detector  *anomaly.Detector
	secondary anomaly.SecondaryClassifier
	grid      *grid.Grid
	opts      Options
}

// New creates a pipeline. alerter and secondary may be nil.
func New(feed Feed, repo Repository, alerter Alerter, detector *anomaly.Detector, secondary anomaly.SecondaryClassifier, g *grid.Grid, opts Options) *Pipeline {
	if opts.LoanAmount <= 0 {
		opts.LoanAmount = 300000
	}
	if opts.TermYears <= 0 {
		opts.TermYears = buydown.DefaultTermYears
	}
	if len(opts.Increments) == 0 {
		opts.Increments = []float64{0.1, 0.25, 0.5}
	}
	if g == nil {
		g = grid.Default()
	}
	return &Pipeline{
		feed:      feed,
		repo:      repo,
		alerter:   alerter,
		detector:  detector,
		secondary: secondary,
		grid:      g,
		opts:      opts,
	}
}

// Run executes one ingestion for the requested date (zero means yesterday)
// and returns the outcome status. The error carries detail for logging; the
// status alone is the process contract.
func (p *Pipeline) Run(ctx context.Context, requested time.Time) (Status, error) {
	runID := uuid.New().String()
	status, err := p.run(ctx, runID, requested)
	if err != nil && status != StatusInterrupted {
		logger.Error("Run %s failed with status %d: %v", runID, status, err)
		p.notifyError(err)
	}
	return status, err
}

func (p *Pipeline) run(ctx context.Context, runID string, requested time.Time) (Status, error) {
	logger.Info("Run %s: resolving trade date", runID)

	resolver := tradedate.New(p.feed.Exists, p.opts.MaxAttempts)
	date, err := resolver.Resolve(ctx, requested)
	if err != nil {
		return p.classifyError(ctx, err)
	}
	logger.Info("Run %s: trade date %s", runID, date.Format(models.DateLayout))

	points, err := p.feed.FetchPrices(ctx, date)
	if err != nil {
		return p.classifyError(ctx, err)
	}
	logger.Info("Run %s: fetched %d coupon prices", runID, len(points))

	// Shape validation is a hard stop before anything is persisted.
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return StatusValidation, fmt.Errorf("malformed feed row: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return StatusInterrupted, err
	}

	classification, err := p.classify(ctx, date, points)
	if err != nil {
		return p.classifyError(ctx, err)
	}
	if len(classification.Suspicious) > 0 {
		logger.Warn("Run %s: %d price(s) held as suspicious", runID, len(classification.Suspicious))
	}

	if err := p.repo.SavePrices(date, classification.Valid); err != nil {
		return StatusUnexpected, fmt.Errorf("failed to persist prices: %w", err)
	}
	p.notifySuspicious(date, classification.Suspicious)

	if err := ctx.Err(); err != nil {
		return StatusInterrupted, err
	}

	prices := interpolate.Curve(classification.Valid, p.grid)
	results := p.computeROI(date, prices)
	if err := p.repo.SaveROI(date, results); err != nil {
		return StatusUnexpected, fmt.Errorf("failed to persist buydown results: %w", err)
	}
	logger.Info("Run %s: stored %d buydown results for %s", runID, len(results), date.Format(models.DateLayout))

	p.enforceRetention(runID, date)
	return StatusOK, nil
}

// enforceRetention drops rows older than the retention window. A pruning
// failure never fails the run; the day's data is already persisted.
func (p *Pipeline) enforceRetention(runID string, date time.Time) {
	if p.opts.RetentionYears <= 0 {
		return
	}
	cutoff := date.AddDate(-p.opts.RetentionYears, 0, 0)
	deleted, err := p.repo.PruneBefore(cutoff)
	if err != nil {
		logger.Warn("Run %s: retention pruning failed: %v", runID, err)
		return
	}
	if deleted > 0 {
		logger.Info("Run %s: pruned %d rows older than %s", runID, deleted, cutoff.Format(models.DateLayout))
	}
}

// classify runs the baseline day-over-day detector against the previous
// stored curve, then gives the secondary classifier a chance to reinstate
// held points. A failing secondary keeps the deterministic verdict.
func (p *Pipeline) classify(ctx context.Context, date time.Time, points []models.PricePoint) (models.Classification, error) {
	var previous *models.PriceCurve
	prevDate, ok, err := p.repo.LatestDateBefore(date)
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to find previous trade date: %w", err)
	}
	if ok {
		previous, err = p.repo.LoadPrices(prevDate)
		if err != nil {
			return models.Classification{}, fmt.Errorf("failed to load previous prices: %w", err)
		}
	}

	classification, err := p.detector.Classify(points, previous)
	if err != nil {
		return models.Classification{}, err
	}

	if p.secondary != nil && len(classification.Suspicious) > 0 {
		reinstated, still, err := p.secondary.Review(ctx, classification.Suspicious)
		if err != nil {
			if ctx.Err() != nil {
				return models.Classification{}, ctx.Err()
			}
			logger.Warn("Secondary review failed, keeping deterministic verdict: %v", err)
		} else {
			classification.Valid = append(classification.Valid, reinstated...)
			classification.Suspicious = still
		}
	}
	return classification, nil
}

// computeROI walks every grid rate present in the interpolated map and each
// configured decrement, keeping pairs whose buydown rate is also present.
func (p *Pipeline) computeROI(date time.Time, prices map[float64]float64) []models.BuydownResult {
	var results []models.BuydownResult
	for _, rate := range p.grid.Rates() {
		if _, ok := prices[rate]; !ok {
			continue
		}
		for _, increment := range p.opts.Increments {
			// Snap to two decimals so the subtraction lands on grid keys.
			buydownRate := math.Round((rate-increment)*100) / 100
			if _, ok := prices[buydownRate]; !ok {
				continue
			}
			r := buydown.ROI(rate, buydownRate, prices, p.opts.LoanAmount, p.opts.TermYears)
			results = append(results, models.BuydownResult{
				Date:            date,
				OriginalRate:    rate,
				BuydownRate:     buydownRate,
				ROIPercent:      r.ROIPercent,
				BreakevenMonths: r.BreakevenMonths,
			})
		}
	}
	return results
}

// QuoteBuydown answers the consumer query against the latest stored curve at
// or before asOf. A rate missing from the curve is an explicit error, never a
// computed zero.
func (p *Pipeline) QuoteBuydown(asOf time.Time, req buydown.QuoteRequest) (buydown.Quote, error) {
	curve, err := p.latestCurve(asOf)
	if err != nil {
		return buydown.Quote{}, err
	}
	prices := interpolate.Curve(curve.Points(), p.grid)
	return buydown.NewQuote(req, prices)
}

func (p *Pipeline) latestCurve(asOf time.Time) (*models.PriceCurve, error) {
	curve, err := p.repo.LoadPrices(asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	if curve.Len() > 0 {
		return curve, nil
	}
	prevDate, ok, err := p.repo.LatestDateBefore(asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest trade date: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("no price data stored at or before %s", asOf.Format(models.DateLayout))
	}
	curve, err = p.repo.LoadPrices(prevDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	return curve, nil
}

// classifyError maps an error to the run status taxonomy.
func (p *Pipeline) classifyError(ctx context.Context, err error) (Status, error) {
	var (
		noData     *tradedate.NoDataFoundError
		validation *models.ValidationError
		network    *nyfed.NetworkError
		empty      *nyfed.EmptyPayloadError
	)
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return StatusInterrupted, err
	case errors.As(err, &noData):
		return StatusNoData, err
	case errors.As(err, &validation):
		return StatusValidation, err
	case errors.As(err, &empty):
		return StatusEmptyPayload, err
	case errors.As(err, &network):
		return StatusNetwork, err
	default:
		return StatusUnexpected, err
	}
}

func (p *Pipeline) notifySuspicious(date time.Time, points []models.PricePoint) {
	if p.alerter == nil || len(points) == 0 {
		return
	}
	if err := p.alerter.SendSuspicious(date, points); err != nil {
		logger.Warn("Failed to send suspicious price alert: %v", err)
	}
}

func (p *Pipeline) notifyError(runErr error) {
	if p.alerter == nil {
		return
	}
	if err := p.alerter.SendError(runErr); err != nil {
		logger.Warn("Failed to send error alert: %v", err)
	}
}
