package weights

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/pkg/logging"
)

type stubWeightSource struct {
	measured    map[string]int
	averages    map[string]int
	measuredErr error
	averagesErr error

	measuredCalls []multiCall
	averageCalls  []multiCall
}

type multiCall struct {
	productIDs []string
}

func (s *stubWeightSource) MeasuredWeights(ctx context.Context, productIDs []string) (map[string]int, error) {
	s.measuredCalls = append(s.measuredCalls, multiCall{productIDs: productIDs})
	if s.measuredErr != nil {
		return nil, s.measuredErr
	}
	return s.measured, nil
}

func (s *stubWeightSource) CategoryAverageWeights(ctx context.Context, productIDs []string) (map[string]int, error) {
	s.averageCalls = append(s.averageCalls, multiCall{productIDs: productIDs})
	if s.averagesErr != nil {
		return nil, s.averagesErr
	}
	return s.averages, nil
}

func newTestResolver(source *stubWeightSource) *Resolver {
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})
	return NewResolver(source, logger)
}

func TestResolverTierPrecedence(t *testing.T) {
	source := &stubWeightSource{
		measured: map[string]int{"PROD-1": 450},
		averages: map[string]int{"PROD-2": 280},
	}
	resolver := newTestResolver(source)

	weights, err := resolver.Resolve(context.Background(), []string{"PROD-1", "PROD-2", "PROD-3"})
	require.NoError(t, err)
	require.Len(t, weights, 3)

	assert.Equal(t, domain.ResolvedWeight{WeightGrams: 450, Confidence: domain.WeightTierMeasured}, weights["PROD-1"])
	assert.Equal(t, domain.ResolvedWeight{WeightGrams: 280, Confidence: domain.WeightTierCategoryAverage}, weights["PROD-2"])
	assert.Equal(t, domain.ResolvedWeight{WeightGrams: DefaultWeightGrams, Confidence: domain.WeightTierDefault}, weights["PROD-3"])
}

func TestResolverSkipsCategoryLookupWhenAllMeasured(t *testing.T) {
	source := &stubWeightSource{
		measured: map[string]int{"PROD-1": 100, "PROD-2": 200},
	}
	resolver := newTestResolver(source)

	_, err := resolver.Resolve(context.Background(), []string{"PROD-1", "PROD-2"})
	require.NoError(t, err)

	assert.Len(t, source.measuredCalls, 1)
	assert.Empty(t, source.averageCalls)
}

func TestResolverDegradesOnMeasuredLookupFailure(t *testing.T) {
	source := &stubWeightSource{
		measuredErr: errors.New("connection reset"),
		averages:    map[string]int{"PROD-1": 320},
	}
	resolver := newTestResolver(source)

	weights, err := resolver.Resolve(context.Background(), []string{"PROD-1", "PROD-2"})
	require.NoError(t, err)

	assert.Equal(t, domain.ResolvedWeight{WeightGrams: 320, Confidence: domain.WeightTierCategoryAverage}, weights["PROD-1"])
	assert.Equal(t, domain.ResolvedWeight{WeightGrams: DefaultWeightGrams, Confidence: domain.WeightTierDefault}, weights["PROD-2"])
}

func TestResolverDegradesToDefaultWhenBothLookupsFail(t *testing.T) {
	source := &stubWeightSource{
		measuredErr: errors.New("timeout"),
		averagesErr: errors.New("timeout"),
	}
	resolver := newTestResolver(source)

	weights, err := resolver.Resolve(context.Background(), []string{"PROD-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.ResolvedWeight{WeightGrams: DefaultWeightGrams, Confidence: domain.WeightTierDefault}, weights["PROD-1"])
}

func TestResolverIgnoresNonPositiveWeights(t *testing.T) {
	source := &stubWeightSource{
		measured: map[string]int{"PROD-1": 0},
		averages: map[string]int{"PROD-1": -5},
	}
	resolver := newTestResolver(source)

	weights, err := resolver.Resolve(context.Background(), []string{"PROD-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.ResolvedWeight{WeightGrams: DefaultWeightGrams, Confidence: domain.WeightTierDefault}, weights["PROD-1"])
}

func TestResolverCachesResolvedWeights(t *testing.T) {
	source := &stubWeightSource{
		measured: map[string]int{"PROD-1": 500},
	}
	resolver := newTestResolver(source)

	first, err := resolver.Resolve(context.Background(), []string{"PROD-1"})
	require.NoError(t, err)

	second, err := resolver.Resolve(context.Background(), []string{"PROD-1"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, source.measuredCalls, 1, "second resolve should be served from cache")
}

func TestResolverOnlyLooksUpCacheMisses(t *testing.T) {
	source := &stubWeightSource{
		measured: map[string]int{"PROD-1": 500, "PROD-2": 600},
	}
	resolver := newTestResolver(source)

	_, err := resolver.Resolve(context.Background(), []string{"PROD-1"})
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), []string{"PROD-1", "PROD-2"})
	require.NoError(t, err)

	require.Len(t, source.measuredCalls, 2)
	assert.Equal(t, []string{"PROD-2"}, source.measuredCalls[1].productIDs)
}
