// Package tradedate finds the most recent trade date for which the source
// feed actually has data. The upstream publishes with unpredictable delay
// (holidays, late trades), so the resolver walks backward over business days,
// bounded by an attempt budget. It never fabricates a date.
package tradedate

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/mbsbuydown/internal/calendar"
	"github.com/rewired-gh/mbsbuydown/internal/models"
)

// DefaultMaxAttempts bounds the backward walk at roughly a month of business days.
const DefaultMaxAttempts = 20

// Probe reports whether source data exists for a date. Implementations map
// "no data for this date" conditions (404, empty payload) to false rather
// than an error; errors abort the walk.
type Probe func(ctx context.Context, date time.Time) (bool, error)

// NoDataFoundError reports an exhausted attempt budget.
type NoDataFoundError struct {
	Start    time.Time
	Attempts int
}

func (e *NoDataFoundError) Error() string {
	return fmt.Sprintf("no trade data found within %d business days of %s",
		e.Attempts, e.Start.Format(models.DateLayout))
}

// Resolver walks backward from a requested date until its probe reports data.
type Resolver struct {
	probe       Probe
	maxAttempts int
}

// New creates a resolver. maxAttempts <= 0 uses DefaultMaxAttempts.
func New(probe Probe, maxAttempts int) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Resolver{probe: probe, maxAttempts: maxAttempts}
}

// Resolve returns the first date at or before start for which the probe
// reports data, stepping backward one business day per miss. A zero start
// means "yesterday". Returns NoDataFoundError once the attempt budget is
// spent. A start in the future is allowed; the walk simply begins there.
func (r *Resolver) Resolve(ctx context.Context, start time.Time) (time.Time, error) {
	if start.IsZero() {
		start = time.Now().UTC().AddDate(0, 0, -1)
	}
	start = truncateToDay(start)

	date := start
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		ok, err := r.probe(ctx, date)
		if err != nil {
			return time.Time{}, fmt.Errorf("probing %s: %w", date.Format(models.DateLayout), err)
		}
		if ok {
			return date, nil
		}
		date = calendar.PriorBusinessDay(date)
	}
	return time.Time{}, &NoDataFoundError{Start: start, Attempts: r.maxAttempts}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
