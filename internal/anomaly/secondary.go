package anomaly

import (
	"context"

	"github.com/rewired-gh/mbsbuydown/internal/models"
)

// SecondaryClassifier reviews the suspicious set from the baseline detector
// and may reinstate points it judges to be genuine market moves. The returned
// slices partition the input. Implementations are external (a model-backed
// reviewer, a human queue); the pipeline invokes one only when configured and
// keeps the deterministic verdict whenever the secondary fails.
type SecondaryClassifier interface {
	Review(ctx context.Context, suspicious []models.PricePoint) (valid, stillSuspicious []models.PricePoint, err error)
}
