package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/internal/packer"
	"github.com/wms-platform/freight-service/internal/rates"
	"github.com/wms-platform/freight-service/internal/weights"
	"github.com/wms-platform/freight-service/pkg/errors"
	"github.com/wms-platform/freight-service/pkg/logging"
	"github.com/wms-platform/freight-service/pkg/metrics"
)

// maxQuoteAttempts bounds the requote loop when concurrent edits keep
// changing the manifest under an in-flight rate request.
const maxQuoteAttempts = 3

// sessionEntry is the in-memory working copy of one active session. The
// mutex serializes all access: every session has exactly one writer at a
// time, so edits never interleave. The generation counter detects manifest
// changes that race an in-flight rate request.
type sessionEntry struct {
	mu         sync.Mutex
	session    *domain.PackingSession
	generation uint64
	dirty      bool
	lastEdit   time.Time
}

// SessionService handles packing session use cases: item edits, manifest
// recomputes, carrier rating and completion.
type SessionService struct {
	repo      domain.SessionRepository
	resolver  *weights.Resolver
	packing   config.PackingConfig
	origin    domain.Address
	engine    *rates.Engine
	publisher domain.EventPublisher
	logger    *logging.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	saver *debouncer
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewSessionService creates a new SessionService
func NewSessionService(
	repo domain.SessionRepository,
	resolver *weights.Resolver,
	packing config.PackingConfig,
	origin domain.Address,
	engine *rates.Engine,
	publisher domain.EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		repo:      repo,
		resolver:  resolver,
		packing:   packing,
		origin:    origin,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		sessions:  make(map[string]*sessionEntry),
		saver:     newDebouncer(saveDebounceDelay),
	}
}

// Start launches the background autosave loop.
func (s *SessionService) Start() {
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.autosaveLoop(s.stop)
}

// Stop flushes pending work and stops background goroutines.
func (s *SessionService) Stop() {
	if s.stop != nil {
		close(s.stop)
	}
	s.saver.Stop()
	s.wg.Wait()
	s.flushSettled()
}

// CreateSession opens a packing session for a transfer, resolves item
// weights and computes the initial manifest.
func (s *SessionService) CreateSession(ctx context.Context, cmd CreateSessionCommand) (*SessionDTO, error) {
	if existing, err := s.repo.FindActiveByTransferID(ctx, cmd.TransferID); err != nil {
		return nil, fmt.Errorf("failed to check existing session: %w", err)
	} else if existing != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("transfer %s already has an active packing session", cmd.TransferID))
	}

	session, err := domain.NewPackingSession(uuid.New().String(), cmd.TransferID, ToTransferItems(cmd.Items))
	if err != nil {
		return nil, errors.ErrValidation(err.Error())
	}
	session.OutletFrom = cmd.OutletFrom
	session.OutletTo = cmd.OutletTo

	productIDs := make([]string, 0, len(session.Items))
	for i := range session.Items {
		productIDs = append(productIDs, session.Items[i].ProductID)
	}
	resolved, err := s.resolver.Resolve(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve item weights: %w", err)
	}
	session.SetResolvedWeights(resolved)

	s.recompute(session)

	if err := s.repo.Save(ctx, session); err != nil {
		s.logger.WithError(err).Error("Failed to create session", "transferId", cmd.TransferID)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.publishEvents(ctx, session)
	s.metrics.RecordSessionCreated()

	s.mu.Lock()
	s.sessions[session.SessionID] = &sessionEntry{session: session, lastEdit: time.Now()}
	s.mu.Unlock()

	s.logger.Info("Packing session created",
		"sessionId", session.SessionID,
		"transferId", cmd.TransferID,
		"items", len(session.Items),
	)
	return ToSessionDTO(session), nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, query GetSessionQuery) (*SessionDTO, error) {
	entry, err := s.entry(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return ToSessionDTO(entry.session), nil
}

// SetQuantity records a packed-quantity edit and recomputes the manifest.
// Persistence is debounced so a burst of edits produces one write.
func (s *SessionService) SetQuantity(ctx context.Context, cmd SetQuantityCommand) (*SessionDTO, error) {
	entry, err := s.entry(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.SetPackedQuantity(cmd.ProductID, cmd.Quantity); err != nil {
		return nil, mapDomainError(err)
	}
	s.recompute(entry.session)
	s.markEdited(entry)
	s.publishEvents(ctx, entry.session)

	return ToSessionDTO(entry.session), nil
}

// SetDestination updates the consignment destination and handover mode.
func (s *SessionService) SetDestination(ctx context.Context, cmd SetDestinationCommand) (*SessionDTO, error) {
	entry, err := s.entry(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.SetDestination(cmd.Destination, cmd.ShipmentType, cmd.ServiceLevel); err != nil {
		return nil, mapDomainError(err)
	}
	s.markEdited(entry)
	s.publishEvents(ctx, entry.session)

	return ToSessionDTO(entry.session), nil
}

// ForceOversized approves an unpackable line for flagged overweight boxes
// and recomputes the manifest with the exemption applied.
func (s *SessionService) ForceOversized(ctx context.Context, cmd ForceOversizedCommand) (*SessionDTO, error) {
	entry, err := s.entry(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.ForceOversized(cmd.ProductID); err != nil {
		return nil, mapDomainError(err)
	}
	s.recompute(entry.session)
	s.markEdited(entry)
	s.publishEvents(ctx, entry.session)

	s.logger.Info("Oversized line force-placed",
		"sessionId", cmd.SessionID,
		"productId", cmd.ProductID,
	)
	return ToSessionDTO(entry.session), nil
}

// GetQuotes rates the session's current manifest. The carrier round trip
// runs outside the session lock; if an edit changes the manifest while rates
// are in flight, the stale response is discarded and the request retried
// against the new manifest.
func (s *SessionService) GetQuotes(ctx context.Context, query GetQuotesQuery) (*QuotesDTO, error) {
	entry, err := s.entry(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxQuoteAttempts; attempt++ {
		entry.mu.Lock()
		if entry.session.State == domain.SessionStateCompleted {
			entry.mu.Unlock()
			return nil, mapDomainError(domain.ErrSessionCompleted)
		}
		req, gen, buildErr := s.buildRateRequest(entry)
		entry.mu.Unlock()
		if buildErr != nil {
			return nil, buildErr
		}

		result, err := s.engine.GetQuotes(ctx, req)
		if err != nil {
			return nil, mapDomainError(err)
		}

		entry.mu.Lock()
		if entry.generation != gen {
			entry.mu.Unlock()
			continue
		}
		entry.session.Quotes = result.Quotes
		entry.mu.Unlock()
		return ToQuotesDTO(result), nil
	}

	return nil, errors.ErrConflict("session changed repeatedly while rating; retry")
}

// SelectQuote records the operator's carrier choice.
func (s *SessionService) SelectQuote(ctx context.Context, cmd SelectQuoteCommand) (*SessionDTO, error) {
	entry, err := s.entry(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	requested := domain.CarrierQuote{CarrierName: cmd.CarrierName, ServiceName: cmd.ServiceName}
	var selected *domain.CarrierQuote
	for i := range entry.session.Quotes {
		if requested.SameOffer(&entry.session.Quotes[i]) {
			selected = &entry.session.Quotes[i]
			break
		}
	}
	if selected == nil {
		return nil, errors.ErrValidation(fmt.Sprintf("quote %s/%s is not in the current quote set; refresh quotes first",
			cmd.CarrierName, cmd.ServiceName))
	}

	if err := entry.session.SelectQuote(*selected); err != nil {
		return nil, mapDomainError(err)
	}

	if err := s.repo.Save(ctx, entry.session); err != nil {
		s.logger.WithError(err).Error("Failed to save quote selection", "sessionId", cmd.SessionID)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	entry.dirty = false
	s.publishEvents(ctx, entry.session)
	s.metrics.RecordQuoteSelected(selected.CarrierName)

	return ToSessionDTO(entry.session), nil
}

// FinishSession completes the session: the manifest and carrier choice
// become the transfer's consignment record.
func (s *SessionService) FinishSession(ctx context.Context, cmd FinishSessionCommand) (*SessionDTO, error) {
	entry, err := s.entry(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	hadDiscrepancies := entry.session.HasDiscrepancies()
	if err := entry.session.Finish(cmd.AcknowledgeDiscrepancies); err != nil {
		return nil, mapDomainError(err)
	}

	if err := s.repo.Save(ctx, entry.session); err != nil {
		s.logger.WithError(err).Error("Failed to save completed session", "sessionId", cmd.SessionID)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	entry.dirty = false
	s.saver.Cancel(cmd.SessionID)
	s.publishEvents(ctx, entry.session)
	s.metrics.RecordSessionCompleted(hadDiscrepancies)

	s.mu.Lock()
	delete(s.sessions, cmd.SessionID)
	s.mu.Unlock()

	s.logger.Info("Packing session completed",
		"sessionId", cmd.SessionID,
		"transferId", entry.session.TransferID,
		"boxes", len(entry.session.Boxes),
		"discrepancies", hadDiscrepancies,
	)
	return ToSessionDTO(entry.session), nil
}

// entry returns the in-memory working copy for a session, loading the
// snapshot from storage on first touch.
func (s *SessionService) entry(ctx context.Context, sessionID string) (*sessionEntry, error) {
	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	session, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, errors.ErrNotFoundWithID("packing session", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	loaded := &sessionEntry{session: session, lastEdit: time.Now()}
	s.sessions[sessionID] = loaded
	return loaded, nil
}

// recompute runs the box packer over the session's packed quantities and
// installs the resulting manifest. Caller holds the entry lock.
func (s *SessionService) recompute(session *domain.PackingSession) {
	start := time.Now()

	forced := make(map[string]bool, len(session.ForcedOversized))
	for _, id := range session.ForcedOversized {
		forced[id] = true
	}

	result := packer.Pack(session.PackerLines(), packer.Constraints{
		MaxBoxWeightKg:     s.packing.MaxBoxWeightKg,
		SatchelLimitKg:     s.packing.SatchelLimitKg,
		MaxBoxVolumeM3:     s.packing.MaxBoxVolumeM3,
		WeightSafetyFactor: s.packing.WeightSafetyFactor,
		ForceOversized:     forced,
	})
	session.ApplyManifest(result.Boxes, result.Unpackable)

	summary := domain.SummarizeBoxes(result.Boxes)
	s.metrics.RecordPackingRun(len(result.Unpackable), summary.BoxCount, summary.SatchelCount, time.Since(start))
}

// markEdited bumps the generation, marks the entry dirty and schedules the
// debounced save. Caller holds the entry lock.
func (s *SessionService) markEdited(entry *sessionEntry) {
	entry.generation++
	entry.dirty = true
	entry.lastEdit = time.Now()
	s.saver.Trigger(entry.session.SessionID, func() { s.flushEntry(entry) })
}

// buildRateRequest snapshots the rating inputs. Caller holds the entry lock.
func (s *SessionService) buildRateRequest(entry *sessionEntry) (domain.RateRequest, uint64, error) {
	session := entry.session
	if session.Destination == nil {
		return domain.RateRequest{}, 0, errors.ErrValidation("session has no destination address")
	}

	boxes := make([]domain.Box, len(session.Boxes))
	copy(boxes, session.Boxes)

	return domain.RateRequest{
		Manifest:     domain.SummarizeBoxes(boxes),
		Boxes:        boxes,
		Origin:       s.origin,
		Destination:  *session.Destination,
		ShipmentType: session.Shipment,
		ServiceLevel: session.Service,
	}, entry.generation, nil
}

// publishEvents drains the session's domain events to the broker. Publish
// failures are logged, not surfaced: the snapshot is already durable and the
// events can be rebuilt from it.
func (s *SessionService) publishEvents(ctx context.Context, session *domain.PackingSession) {
	events := session.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.PublishAll(ctx, events); err != nil {
		s.logger.WithError(err).Warn("Failed to publish session events",
			"sessionId", session.SessionID,
			"events", len(events),
		)
	}
	session.ClearDomainEvents()
}
