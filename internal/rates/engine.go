// Package rates turns a packed manifest into a ranked list of carrier quotes.
// Carrier calls go through per-carrier circuit breakers with bounded retries;
// a TTL cache absorbs repeated recomputes of an unchanged manifest.
package rates

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/pkg/logging"
	"github.com/wms-platform/freight-service/pkg/metrics"
	"github.com/wms-platform/freight-service/pkg/resilience"
)

var (
	// ErrNoParcels is returned when rating is requested before anything has
	// been packed.
	ErrNoParcels = errors.New("rates: manifest has no parcels")

	// ErrRatesUnavailable is returned when every carrier failed and no cached
	// quotes exist to fall back on.
	ErrRatesUnavailable = errors.New("rates: no carrier rates available")
)

// Config tunes the engine. PriceWeight and EtaWeight drive the recommended
// tag; they are normalized scores, not currency values.
type Config struct {
	CacheTTL     time.Duration
	MaxRetries   uint64
	RetryBackoff time.Duration
	PriceWeight  float64
	EtaWeight    float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:     2 * time.Minute,
		MaxRetries:   2,
		RetryBackoff: 200 * time.Millisecond,
		PriceWeight:  0.7,
		EtaWeight:    0.3,
	}
}

// Result is the outcome of one rating request. Exactly one of Quotes or
// AddressValidation is populated on success.
type Result struct {
	Quotes            []domain.CarrierQuote             `json:"quotes,omitempty"`
	AddressValidation *domain.AddressValidationRequired `json:"addressValidation,omitempty"`
	FromCache         bool                              `json:"fromCache,omitempty"`
	Degraded          bool                              `json:"degraded,omitempty"`
	CarrierErrors     map[string]string                 `json:"carrierErrors,omitempty"`
}

// Engine fans a rate request out to all registered carriers and merges the
// responses into one ranked, tagged quote list.
type Engine struct {
	providers []domain.RateProvider
	breakers  *resilience.CircuitBreakerRegistry
	cache     *quoteCache
	config    Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

func NewEngine(providers []domain.RateProvider, breakers *resilience.CircuitBreakerRegistry, config Config, logger *logging.Logger, m *metrics.Metrics) *Engine {
	if config.PriceWeight <= 0 && config.EtaWeight <= 0 {
		config.PriceWeight = DefaultConfig().PriceWeight
		config.EtaWeight = DefaultConfig().EtaWeight
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Engine{
		providers: providers,
		breakers:  breakers,
		cache:     newQuoteCache(config.CacheTTL),
		config:    config,
		logger:    logger,
		metrics:   m,
	}
}

// GetQuotes rates the given manifest. An incomplete destination address is a
// first-class outcome, not an error: the caller gets the missing field list
// and the session stays editable. Carrier failures degrade to cached quotes
// when possible; ErrRatesUnavailable is returned only when nothing can be
// served at all.
func (e *Engine) GetQuotes(ctx context.Context, req domain.RateRequest) (*Result, error) {
	if missing := req.Destination.MissingFields(); len(missing) > 0 {
		return &Result{AddressValidation: &domain.AddressValidationRequired{MissingFields: missing}}, nil
	}
	if len(req.Boxes) == 0 {
		return nil, ErrNoParcels
	}

	key := keyFor(req)
	if quotes, ok := e.cache.Get(key); ok {
		e.metrics.RecordQuoteCacheLookup(true)
		return &Result{Quotes: quotes, FromCache: true}, nil
	}
	e.metrics.RecordQuoteCacheLookup(false)

	quotes, carrierErrors := e.fanOut(ctx, req)

	if len(quotes) == 0 {
		if stale, ok := e.cache.GetStale(key); ok {
			e.logger.Warn("All carriers failed, serving stale cached quotes",
				"manifestHash", key.manifestHash,
				"carrierErrors", carrierErrors,
			)
			return &Result{Quotes: stale, FromCache: true, Degraded: true, CarrierErrors: carrierErrors}, nil
		}
		e.logger.Error("All carriers failed with no cached fallback",
			"manifestHash", key.manifestHash,
			"carrierErrors", carrierErrors,
		)
		return nil, ErrRatesUnavailable
	}

	ranked := e.rank(quotes)
	e.cache.Put(key, ranked)

	return &Result{Quotes: ranked, CarrierErrors: carrierErrors}, nil
}

// fanOut queries all carriers concurrently. Each call runs through that
// carrier's circuit breaker with exponential-backoff retries; one slow or
// broken carrier never blocks the others' quotes.
func (e *Engine) fanOut(ctx context.Context, req domain.RateRequest) ([]domain.CarrierQuote, map[string]string) {
	var (
		mu            sync.Mutex
		wg            sync.WaitGroup
		quotes        []domain.CarrierQuote
		carrierErrors = make(map[string]string)
	)

	for _, provider := range e.providers {
		wg.Add(1)
		go func(p domain.RateProvider) {
			defer wg.Done()

			start := time.Now()
			carrierQuotes, err := e.queryCarrier(ctx, p, req)
			e.metrics.RecordCarrierRateRequest(p.CarrierName(), err == nil, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("Carrier rate request failed",
					"carrier", p.CarrierName(),
					"error", err,
				)
				carrierErrors[p.CarrierName()] = err.Error()
				return
			}
			quotes = append(quotes, carrierQuotes...)
		}(provider)
	}
	wg.Wait()

	if len(carrierErrors) == 0 {
		carrierErrors = nil
	}
	return quotes, carrierErrors
}

func (e *Engine) queryCarrier(ctx context.Context, p domain.RateProvider, req domain.RateRequest) ([]domain.CarrierQuote, error) {
	breaker := e.breakers.Get("carrier-" + p.CarrierName())

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(e.config.RetryBackoff),
		), e.config.MaxRetries),
		ctx,
	)

	return backoff.RetryWithData(func() ([]domain.CarrierQuote, error) {
		result, err := breaker.Execute(ctx, func() (interface{}, error) {
			return p.GetRates(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return result.([]domain.CarrierQuote), nil
	}, policy)
}

// rank sorts quotes by price then speed and applies the comparison tags.
// Exactly one quote carries each of cheapest, fastest and recommended; a
// single-quote list carries all three.
func (e *Engine) rank(quotes []domain.CarrierQuote) []domain.CarrierQuote {
	ranked := cloneQuotes(quotes)
	for i := range ranked {
		ranked[i].Tags = nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].Price.Cmp(ranked[j].Price); cmp != 0 {
			return cmp < 0
		}
		if ranked[i].EtaDays != ranked[j].EtaDays {
			return ranked[i].EtaDays < ranked[j].EtaDays
		}
		if ranked[i].CarrierName != ranked[j].CarrierName {
			return ranked[i].CarrierName < ranked[j].CarrierName
		}
		return ranked[i].ServiceName < ranked[j].ServiceName
	})

	// Cheapest is the sort head. Fastest is the lowest ETA, ties going to the
	// cheaper quote, which the sort order already encodes.
	fastest := 0
	for i := range ranked {
		if ranked[i].EtaDays < ranked[fastest].EtaDays {
			fastest = i
		}
	}

	ranked[0].Tags = append(ranked[0].Tags, domain.QuoteTagCheapest)
	ranked[fastest].Tags = append(ranked[fastest].Tags, domain.QuoteTagFastest)
	recommended := e.recommend(ranked)
	ranked[recommended].Tags = append(ranked[recommended].Tags, domain.QuoteTagRecommended)

	return ranked
}

// recommend scores each quote by normalized price and ETA and returns the
// index of the best one. Lower is better on both axes.
func (e *Engine) recommend(ranked []domain.CarrierQuote) int {
	maxPrice := decimal.Zero
	maxEta := 0
	for _, q := range ranked {
		if q.Price.GreaterThan(maxPrice) {
			maxPrice = q.Price
		}
		if q.EtaDays > maxEta {
			maxEta = q.EtaDays
		}
	}

	best := 0
	bestScore := -1.0
	for i, q := range ranked {
		priceScore := 0.0
		if maxPrice.IsPositive() {
			priceScore, _ = q.Price.Div(maxPrice).Float64()
		}
		etaScore := 0.0
		if maxEta > 0 {
			etaScore = float64(q.EtaDays) / float64(maxEta)
		}
		score := e.config.PriceWeight*priceScore + e.config.EtaWeight*etaScore
		if bestScore < 0 || score < bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// PurgeCache drops long-expired cache entries. Called periodically by the
// application layer.
func (e *Engine) PurgeCache() {
	e.cache.Purge()
}
