// Package weights resolves a shipping weight and confidence tier per product
// using the measured > category-average > default hierarchy (P > C > D).
package weights

import (
	"context"
	"sort"
	"sync"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/pkg/logging"
)

// DefaultWeightGrams is the fallback applied when a product has no recorded
// weight at any tier.
const DefaultWeightGrams = 100

// Resolver resolves shipping weights with a session-lifetime cache. Results
// are pure per product id: repeated calls with the same ids are idempotent
// and hit the cache.
type Resolver struct {
	source domain.WeightSource
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]domain.ResolvedWeight
}

// NewResolver creates a Resolver backed by the given weight source.
func NewResolver(source domain.WeightSource, logger *logging.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.WithComponent("weight-resolver"),
		cache:  make(map[string]domain.ResolvedWeight),
	}
}

// Resolve returns a weight and confidence tier for every requested product.
// It never fails a product: lookup errors and absent data both degrade to the
// Default tier, surfaced to the caller only through the confidence indicator.
func (r *Resolver) Resolve(ctx context.Context, productIDs []string) (map[string]domain.ResolvedWeight, error) {
	result := make(map[string]domain.ResolvedWeight, len(productIDs))

	missing := r.collectCached(productIDs, result)
	if len(missing) == 0 {
		return result, nil
	}
	sort.Strings(missing)

	measured, err := r.source.MeasuredWeights(ctx, missing)
	if err != nil {
		r.logger.WithError(err).Warn("Measured weight lookup failed, degrading to lower tiers")
		measured = nil
	}

	var unmeasured []string
	for _, id := range missing {
		if _, ok := measured[id]; !ok {
			unmeasured = append(unmeasured, id)
		}
	}

	var averages map[string]int
	if len(unmeasured) > 0 {
		averages, err = r.source.CategoryAverageWeights(ctx, unmeasured)
		if err != nil {
			r.logger.WithError(err).Warn("Category average lookup failed, using default weights")
			averages = nil
		}
	}

	r.mu.Lock()
	for _, id := range missing {
		resolved := domain.ResolvedWeight{
			WeightGrams: DefaultWeightGrams,
			Confidence:  domain.WeightTierDefault,
		}
		if g, ok := measured[id]; ok && g > 0 {
			resolved = domain.ResolvedWeight{WeightGrams: g, Confidence: domain.WeightTierMeasured}
		} else if g, ok := averages[id]; ok && g > 0 {
			resolved = domain.ResolvedWeight{WeightGrams: g, Confidence: domain.WeightTierCategoryAverage}
		}
		r.cache[id] = resolved
		result[id] = resolved
	}
	r.mu.Unlock()

	return result, nil
}

// collectCached fills result with cache hits and returns the ids that still
// need a source lookup.
func (r *Resolver) collectCached(productIDs []string, result map[string]domain.ResolvedWeight) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, id := range productIDs {
		if w, ok := r.cache[id]; ok {
			result[id] = w
		} else {
			missing = append(missing, id)
		}
	}
	return missing
}
