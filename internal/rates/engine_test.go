package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/pkg/logging"
	"github.com/wms-platform/freight-service/pkg/metrics"
	"github.com/wms-platform/freight-service/pkg/resilience"
)

type fakeProvider struct {
	name string

	mu    sync.Mutex
	calls int
	fn    func(call int) ([]domain.CarrierQuote, error)
}

func (f *fakeProvider) CarrierName() string { return f.name }

func (f *fakeProvider) GetRates(_ context.Context, _ domain.RateRequest) ([]domain.CarrierQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fn(f.calls)
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func staticProvider(name string, quotes ...domain.CarrierQuote) *fakeProvider {
	return &fakeProvider{name: name, fn: func(int) ([]domain.CarrierQuote, error) {
		return quotes, nil
	}}
}

func failingProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, fn: func(int) ([]domain.CarrierQuote, error) {
		return nil, errors.New("carrier unreachable")
	}}
}

func quote(carrier, service string, price float64, etaDays int) domain.CarrierQuote {
	return domain.CarrierQuote{
		CarrierName:  carrier,
		ServiceName:  service,
		ServiceLevel: domain.ServiceLevelStandard,
		Price:        decimal.NewFromFloat(price),
		Currency:     "NZD",
		EtaDays:      etaDays,
		QuotedAt:     time.Now().UTC(),
	}
}

func testEngine(t *testing.T, config Config, providers ...domain.RateProvider) *Engine {
	t.Helper()
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})
	return NewEngine(providers, resilience.NewCircuitBreakerRegistry(slogger), config, logger, metrics.New(metrics.DefaultConfig("test")))
}

func rateRequest() domain.RateRequest {
	boxes := []domain.Box{
		{BoxID: "BOX-001", Kind: domain.BoxKindBox, WeightKg: 12.5},
		{BoxID: "SAT-001", Kind: domain.BoxKindSatchel, WeightKg: 1.2},
	}
	return domain.RateRequest{
		Manifest: domain.SummarizeBoxes(boxes),
		Boxes:    boxes,
		Origin: domain.Address{
			Street1: "12 Depot Rd", City: "Auckland", PostalCode: "1010", Country: "NZ",
		},
		Destination: domain.Address{
			Street1: "4 Harbour St", City: "Wellington", PostalCode: "6011", Country: "NZ",
		},
		ShipmentType: domain.ShipmentTypeDelivery,
	}
}

func TestGetQuotes_IncompleteAddressIsFirstClassOutcome(t *testing.T) {
	provider := staticProvider("nz-post", quote("nz-post", "Standard", 10, 2))
	engine := testEngine(t, DefaultConfig(), provider)

	req := rateRequest()
	req.Destination.PostalCode = ""
	req.Destination.City = ""

	result, err := engine.GetQuotes(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, result.AddressValidation)
	assert.Equal(t, []string{"city", "postcode"}, result.AddressValidation.MissingFields)
	assert.Empty(t, result.Quotes)
	assert.Zero(t, provider.callCount(), "carriers must not be queried with an invalid address")
}

func TestGetQuotes_NoParcels(t *testing.T) {
	engine := testEngine(t, DefaultConfig(), staticProvider("nz-post"))

	req := rateRequest()
	req.Boxes = nil

	_, err := engine.GetQuotes(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoParcels)
}

func TestGetQuotes_TagsAreExclusive(t *testing.T) {
	engine := testEngine(t, DefaultConfig(),
		staticProvider("nz-post",
			quote("nz-post", "Economy", 8.50, 3),
			quote("nz-post", "Overnight", 22.00, 1),
		),
		staticProvider("nz-couriers",
			quote("nz-couriers", "Standard", 9.20, 2),
		),
	)

	result, err := engine.GetQuotes(context.Background(), rateRequest())

	require.NoError(t, err)
	require.Len(t, result.Quotes, 3)

	// Sorted by price ascending.
	assert.Equal(t, "Economy", result.Quotes[0].ServiceName)
	assert.Equal(t, "Standard", result.Quotes[1].ServiceName)
	assert.Equal(t, "Overnight", result.Quotes[2].ServiceName)

	counts := map[domain.QuoteTag]int{}
	for _, q := range result.Quotes {
		for _, tag := range q.Tags {
			counts[tag]++
		}
	}
	assert.Equal(t, 1, counts[domain.QuoteTagCheapest])
	assert.Equal(t, 1, counts[domain.QuoteTagFastest])
	assert.Equal(t, 1, counts[domain.QuoteTagRecommended])

	assert.True(t, result.Quotes[0].HasTag(domain.QuoteTagCheapest))
	assert.True(t, result.Quotes[2].HasTag(domain.QuoteTagFastest))
}

func TestGetQuotes_SingleQuoteCarriesAllTags(t *testing.T) {
	engine := testEngine(t, DefaultConfig(),
		staticProvider("nz-post", quote("nz-post", "Standard", 12, 2)),
	)

	result, err := engine.GetQuotes(context.Background(), rateRequest())

	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)
	assert.True(t, result.Quotes[0].HasTag(domain.QuoteTagCheapest))
	assert.True(t, result.Quotes[0].HasTag(domain.QuoteTagFastest))
	assert.True(t, result.Quotes[0].HasTag(domain.QuoteTagRecommended))
}

func TestGetQuotes_RecommendedBalancesPriceAndSpeed(t *testing.T) {
	// The overnight quote is 4x the price; the mid quote wins the weighted
	// score despite not being cheapest.
	engine := testEngine(t, Config{
		CacheTTL:    time.Minute,
		PriceWeight: 0.5,
		EtaWeight:   0.5,
	},
		staticProvider("nz-post",
			quote("nz-post", "Economy", 10, 10),
			quote("nz-post", "Standard", 12, 2),
			quote("nz-post", "Overnight", 40, 1),
		),
	)

	result, err := engine.GetQuotes(context.Background(), rateRequest())

	require.NoError(t, err)
	var recommended *domain.CarrierQuote
	for i := range result.Quotes {
		if result.Quotes[i].HasTag(domain.QuoteTagRecommended) {
			recommended = &result.Quotes[i]
		}
	}
	require.NotNil(t, recommended)
	assert.Equal(t, "Standard", recommended.ServiceName)
}

func TestGetQuotes_CachesByManifest(t *testing.T) {
	provider := staticProvider("nz-post", quote("nz-post", "Standard", 12, 2))
	engine := testEngine(t, DefaultConfig(), provider)

	first, err := engine.GetQuotes(context.Background(), rateRequest())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := engine.GetQuotes(context.Background(), rateRequest())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Quotes, second.Quotes)
	assert.Equal(t, 1, provider.callCount())

	// A manifest change busts the cache.
	changed := rateRequest()
	changed.Boxes[0].WeightKg = 20.0
	third, err := engine.GetQuotes(context.Background(), changed)
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, provider.callCount())
}

func TestGetQuotes_RetriesTransientFailures(t *testing.T) {
	provider := &fakeProvider{name: "nz-post", fn: func(call int) ([]domain.CarrierQuote, error) {
		if call < 3 {
			return nil, errors.New("timeout")
		}
		return []domain.CarrierQuote{quote("nz-post", "Standard", 12, 2)}, nil
	}}
	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	engine := testEngine(t, config, provider)

	result, err := engine.GetQuotes(context.Background(), rateRequest())

	require.NoError(t, err)
	assert.Len(t, result.Quotes, 1)
	assert.Equal(t, 3, provider.callCount())
}

func TestGetQuotes_PartialCarrierFailure(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 0
	engine := testEngine(t, config,
		staticProvider("nz-post", quote("nz-post", "Standard", 12, 2)),
		failingProvider("nz-couriers"),
	)

	result, err := engine.GetQuotes(context.Background(), rateRequest())

	require.NoError(t, err)
	assert.Len(t, result.Quotes, 1)
	assert.Contains(t, result.CarrierErrors, "nz-couriers")
}

func TestGetQuotes_StaleFallbackWhenAllCarriersFail(t *testing.T) {
	var healthy bool = true
	provider := &fakeProvider{name: "nz-post", fn: func(int) ([]domain.CarrierQuote, error) {
		if healthy {
			return []domain.CarrierQuote{quote("nz-post", "Standard", 12, 2)}, nil
		}
		return nil, errors.New("carrier down")
	}}

	config := DefaultConfig()
	config.CacheTTL = time.Millisecond
	config.MaxRetries = 0
	config.RetryBackoff = time.Millisecond
	engine := testEngine(t, config, provider)

	_, err := engine.GetQuotes(context.Background(), rateRequest())
	require.NoError(t, err)

	healthy = false
	time.Sleep(5 * time.Millisecond)

	result, err := engine.GetQuotes(context.Background(), rateRequest())
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.True(t, result.FromCache)
	assert.Len(t, result.Quotes, 1)
}

func TestGetQuotes_RatesUnavailable(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 0
	engine := testEngine(t, config, failingProvider("nz-post"), failingProvider("nz-couriers"))

	_, err := engine.GetQuotes(context.Background(), rateRequest())
	assert.ErrorIs(t, err, ErrRatesUnavailable)
}
