package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/internal/rates"
	"github.com/wms-platform/freight-service/internal/weights"
	apperrors "github.com/wms-platform/freight-service/pkg/errors"
	"github.com/wms-platform/freight-service/pkg/logging"
	"github.com/wms-platform/freight-service/pkg/metrics"
	"github.com/wms-platform/freight-service/pkg/resilience"
)

type memoryRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.PackingSession
	saves    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[string]*domain.PackingSession)}
}

func (r *memoryRepo) Save(_ context.Context, session *domain.PackingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.SessionID] = session
	r.saves++
	return nil
}

func (r *memoryRepo) FindBySessionID(_ context.Context, sessionID string) (*domain.PackingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID], nil
}

func (r *memoryRepo) FindActiveByTransferID(_ context.Context, transferID string) (*domain.PackingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TransferID == transferID && s.State != domain.SessionStateCompleted {
			return s, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

type stubWeightSource struct {
	measured map[string]int
	category map[string]int
}

func (s *stubWeightSource) MeasuredWeights(_ context.Context, _ []string) (map[string]int, error) {
	return s.measured, nil
}

func (s *stubWeightSource) CategoryAverageWeights(_ context.Context, _ []string) (map[string]int, error) {
	return s.category, nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *stubPublisher) Publish(_ context.Context, event domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *stubPublisher) PublishAll(_ context.Context, events []domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *stubPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

type stubRateProvider struct{}

func (stubRateProvider) CarrierName() string { return "nz-post" }

func (stubRateProvider) GetRates(_ context.Context, _ domain.RateRequest) ([]domain.CarrierQuote, error) {
	return []domain.CarrierQuote{
		{
			CarrierName: "nz-post", ServiceName: "CourierPost Standard",
			ServiceLevel: domain.ServiceLevelStandard,
			Price:        decimal.NewFromFloat(18.50), Currency: "NZD", EtaDays: 2,
			QuotedAt: time.Now().UTC(),
		},
		{
			CarrierName: "nz-post", ServiceName: "CourierPost Overnight",
			ServiceLevel: domain.ServiceLevelOvernight,
			Price:        decimal.NewFromFloat(29.60), Currency: "NZD", EtaDays: 1,
			QuotedAt: time.Now().UTC(),
		},
	}, nil
}

type serviceFixture struct {
	service   *SessionService
	repo      *memoryRepo
	publisher *stubPublisher
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test", Output: io.Discard})
	m := metrics.New(metrics.DefaultConfig("test"))
	repo := newMemoryRepo()
	publisher := &stubPublisher{}

	resolver := weights.NewResolver(&stubWeightSource{
		measured: map[string]int{"prod-measured": 920, "prod-heavy": 30000},
		category: map[string]int{"prod-category": 400},
	}, logger)

	breakers := resilience.NewCircuitBreakerRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	engine := rates.NewEngine([]domain.RateProvider{stubRateProvider{}}, breakers, rates.DefaultConfig(), logger, m)

	packing := config.PackingConfig{MaxBoxWeightKg: 25, SatchelLimitKg: 2, WeightSafetyFactor: 1.0}
	origin := domain.Address{Street1: "1 Warehouse Way", City: "Auckland", PostalCode: "1010", Country: "NZ"}

	service := NewSessionService(repo, resolver, packing, origin, engine, publisher, logger, m)
	return &serviceFixture{service: service, repo: repo, publisher: publisher}
}

func createCommand() CreateSessionCommand {
	return CreateSessionCommand{
		TransferID: "transfer-1",
		OutletFrom: "outlet-akl",
		OutletTo:   "outlet-wlg",
		Items: []ItemInput{
			{ProductID: "prod-measured", SKU: "SKU-1", Name: "Measured Product", QuantityPlanned: 20},
			{ProductID: "prod-category", SKU: "SKU-2", Name: "Category Product", QuantityPlanned: 5},
			{ProductID: "prod-unknown", SKU: "SKU-3", Name: "Unknown Product", QuantityPlanned: 3},
		},
	}
}

func (f *serviceFixture) createPackedSession(t *testing.T) *SessionDTO {
	t.Helper()
	ctx := context.Background()

	dto, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)

	for _, item := range dto.Items {
		_, err = f.service.SetQuantity(ctx, SetQuantityCommand{
			SessionID: dto.SessionID,
			ProductID: item.ProductID,
			Quantity:  item.QuantityPlanned,
		})
		require.NoError(t, err)
	}

	dto, err = f.service.SetDestination(ctx, SetDestinationCommand{
		SessionID: dto.SessionID,
		Destination: domain.Address{
			Street1: "4 Harbour St", City: "Wellington", PostalCode: "6011", Country: "NZ",
		},
		ShipmentType: domain.ShipmentTypeDelivery,
	})
	require.NoError(t, err)
	return dto
}

func TestCreateSession_ResolvesWeightTiers(t *testing.T) {
	f := newFixture(t)

	dto, err := f.service.CreateSession(context.Background(), createCommand())

	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStatePlanning), dto.State)

	byID := make(map[string]ItemDTO)
	for _, item := range dto.Items {
		byID[item.ProductID] = item
	}
	assert.Equal(t, 920, byID["prod-measured"].UnitWeightG)
	assert.Equal(t, "P", byID["prod-measured"].WeightConfidence)
	assert.Equal(t, 400, byID["prod-category"].UnitWeightG)
	assert.Equal(t, "C", byID["prod-category"].WeightConfidence)
	assert.Equal(t, weights.DefaultWeightGrams, byID["prod-unknown"].UnitWeightG)
	assert.Equal(t, "D", byID["prod-unknown"].WeightConfidence)

	assert.Contains(t, f.publisher.eventTypes(), "wms.freight.session-created")
}

func TestCreateSession_RejectsDuplicateActiveTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)

	_, err = f.service.CreateSession(ctx, createCommand())
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}

func TestCreateSession_CompletedTransferCanBeRepacked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.createPackedSession(t)

	_, err := f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	_, err = f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)
	_, err = f.service.FinishSession(ctx, FinishSessionCommand{SessionID: dto.SessionID})
	require.NoError(t, err)

	// The completed session stays on record but no longer blocks the transfer.
	repacked, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)
	assert.NotEqual(t, dto.SessionID, repacked.SessionID)
	assert.Equal(t, string(domain.SessionStatePlanning), repacked.State)
}

func TestSetQuantity_RecomputesManifest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)

	dto, err := f.service.SetQuantity(ctx, SetQuantityCommand{
		SessionID: created.SessionID,
		ProductID: "prod-measured",
		Quantity:  20,
	})

	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStatePacking), dto.State)
	require.NotEmpty(t, dto.Boxes)

	// Every packed unit is assigned to a box.
	for _, item := range dto.Items {
		assigned := 0
		for _, a := range item.BoxAssignments {
			assigned += a.Quantity
		}
		assert.Equal(t, item.QuantityPacked, assigned, "item %s", item.ProductID)
	}
}

func TestSetQuantity_UnknownItem(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.CreateSession(context.Background(), createCommand())
	require.NoError(t, err)

	_, err = f.service.SetQuantity(context.Background(), SetQuantityCommand{
		SessionID: created.SessionID,
		ProductID: "prod-nope",
		Quantity:  1,
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.HTTPStatus)
}

func TestFullPackingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.createPackedSession(t)

	quotes, err := f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	require.Len(t, quotes.Quotes, 2)
	assert.Nil(t, quotes.AddressValidation)

	selected, err := f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStateFreightSelected), selected.State)
	require.NotNil(t, selected.SelectedQuote)
	assert.Equal(t, "18.50", selected.SelectedQuote.Price)

	finished, err := f.service.FinishSession(ctx, FinishSessionCommand{SessionID: dto.SessionID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStateCompleted), finished.State)
	assert.NotNil(t, finished.CompletedAt)
	assert.Contains(t, f.publisher.eventTypes(), "wms.freight.session-completed")
}

func TestQuantityEditRevertsFreightSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.createPackedSession(t)

	_, err := f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	_, err = f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)

	reverted, err := f.service.SetQuantity(ctx, SetQuantityCommand{
		SessionID: dto.SessionID,
		ProductID: "prod-measured",
		Quantity:  19,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStatePacking), reverted.State)
	assert.Nil(t, reverted.SelectedQuote)
	assert.Contains(t, f.publisher.eventTypes(), "wms.freight.selection-invalidated")

	// Finishing now requires selecting freight again.
	_, err = f.service.FinishSession(ctx, FinishSessionCommand{SessionID: dto.SessionID})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}

func TestFinish_RequiresDiscrepancyAcknowledgement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.createPackedSession(t)

	// Short-pack one line: a discrepancy, not an error.
	_, err := f.service.SetQuantity(ctx, SetQuantityCommand{
		SessionID: dto.SessionID,
		ProductID: "prod-category",
		Quantity:  3,
	})
	require.NoError(t, err)

	_, err = f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	_, err = f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)

	_, err = f.service.FinishSession(ctx, FinishSessionCommand{SessionID: dto.SessionID})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)

	finished, err := f.service.FinishSession(ctx, FinishSessionCommand{
		SessionID:                dto.SessionID,
		AcknowledgeDiscrepancies: true,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStateCompleted), finished.State)
}

func TestGetQuotes_RequiresDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)
	_, err = f.service.SetQuantity(ctx, SetQuantityCommand{
		SessionID: created.SessionID,
		ProductID: "prod-measured",
		Quantity:  20,
	})
	require.NoError(t, err)

	_, err = f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: created.SessionID})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPStatus)
}

func TestGetQuotes_ReportsMissingAddressFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.CreateSession(ctx, createCommand())
	require.NoError(t, err)
	_, err = f.service.SetQuantity(ctx, SetQuantityCommand{
		SessionID: created.SessionID,
		ProductID: "prod-measured",
		Quantity:  20,
	})
	require.NoError(t, err)

	_, err = f.service.SetDestination(ctx, SetDestinationCommand{
		SessionID:    created.SessionID,
		Destination:  domain.Address{Street1: "4 Harbour St", Country: "NZ"},
		ShipmentType: domain.ShipmentTypeDelivery,
	})
	require.NoError(t, err)

	quotes, err := f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: created.SessionID})
	require.NoError(t, err)
	require.NotNil(t, quotes.AddressValidation)
	assert.Equal(t, []string{"city", "postcode"}, quotes.AddressValidation.MissingFields)
	assert.Empty(t, quotes.Quotes)
}

func TestForceOversized_UnblocksCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dto, err := f.service.CreateSession(ctx, CreateSessionCommand{
		TransferID: "transfer-heavy",
		Items: []ItemInput{
			{ProductID: "prod-heavy", SKU: "SKU-H", Name: "Engine Block", QuantityPlanned: 2},
			{ProductID: "prod-measured", SKU: "SKU-1", Name: "Measured Product", QuantityPlanned: 4},
		},
	})
	require.NoError(t, err)

	for _, item := range []struct {
		id  string
		qty int
	}{{"prod-heavy", 2}, {"prod-measured", 4}} {
		dto, err = f.service.SetQuantity(ctx, SetQuantityCommand{
			SessionID: dto.SessionID,
			ProductID: item.id,
			Quantity:  item.qty,
		})
		require.NoError(t, err)
	}
	require.Len(t, dto.Unpackable, 1)
	assert.Equal(t, "prod-heavy", dto.Unpackable[0].ProductID)

	dto, err = f.service.SetDestination(ctx, SetDestinationCommand{
		SessionID:    dto.SessionID,
		Destination:  domain.Address{Street1: "4 Harbour St", City: "Wellington", PostalCode: "6011", Country: "NZ"},
		ShipmentType: domain.ShipmentTypeDelivery,
	})
	require.NoError(t, err)

	_, err = f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	_, err = f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)

	// The unresolved unpackable line blocks completion regardless of
	// acknowledgement.
	_, err = f.service.FinishSession(ctx, FinishSessionCommand{
		SessionID:                dto.SessionID,
		AcknowledgeDiscrepancies: true,
	})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)

	forced, err := f.service.ForceOversized(ctx, ForceOversizedCommand{
		SessionID: dto.SessionID,
		ProductID: "prod-heavy",
	})
	require.NoError(t, err)
	assert.Empty(t, forced.Unpackable)

	exempt := 0
	for _, box := range forced.Boxes {
		if box.OverweightExempt {
			exempt++
			assert.Greater(t, box.WeightKg, 25.0)
		}
	}
	assert.Equal(t, 2, exempt, "one flagged box per oversized unit")

	// Forcing recomputed the manifest, so freight selection was invalidated;
	// select again and finish.
	_, err = f.service.GetQuotes(ctx, GetQuotesQuery{SessionID: dto.SessionID})
	require.NoError(t, err)
	_, err = f.service.SelectQuote(ctx, SelectQuoteCommand{
		SessionID:   dto.SessionID,
		CarrierName: "nz-post",
		ServiceName: "CourierPost Standard",
	})
	require.NoError(t, err)

	finished, err := f.service.FinishSession(ctx, FinishSessionCommand{SessionID: dto.SessionID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SessionStateCompleted), finished.State)
}

func TestForceOversized_RejectsPackableLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto := f.createPackedSession(t)

	_, err := f.service.ForceOversized(ctx, ForceOversizedCommand{
		SessionID: dto.SessionID,
		ProductID: "prod-measured",
	})
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.HTTPStatus)
}
