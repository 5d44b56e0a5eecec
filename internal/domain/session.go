package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrSessionCompleted     = errors.New("packing session is already completed")
	ErrNoItems              = errors.New("no items to pack")
	ErrItemNotFound         = errors.New("item not found in session")
	ErrNegativeQuantity     = errors.New("packed quantity cannot be negative")
	ErrNoPackedWeight       = errors.New("at least one box with non-zero weight is required before selecting freight")
	ErrNoQuoteSelected      = errors.New("a carrier quote must be selected before finishing")
	ErrDiscrepanciesUnacked = errors.New("quantity discrepancies must be acknowledged before finishing")
	ErrUnassignedQuantity   = errors.New("session has packed quantity not assigned to any box")
	ErrNotOversized         = errors.New("item is not an unpackable line")
)

// SessionState is the packing session lifecycle state.
type SessionState string

const (
	SessionStatePlanning        SessionState = "planning"
	SessionStatePacking         SessionState = "packing"
	SessionStateFreightSelected SessionState = "freight_selected"
	SessionStateCompleted       SessionState = "completed"
)

// PackingSession is the aggregate root for one transfer's packing run. Boxes
// and quotes are a derived projection of the items: they are recomputed on
// qualifying edits and only materialized into storage at completion (plus
// best-effort autosave snapshots along the way).
type PackingSession struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SessionID   string             `bson:"sessionId"`
	TransferID  string             `bson:"transferId"`
	OutletFrom  string             `bson:"outletFrom,omitempty"`
	OutletTo    string             `bson:"outletTo,omitempty"`
	State       SessionState       `bson:"state"`
	Items       []TransferItem     `bson:"items"`
	Boxes       []Box              `bson:"boxes"`
	Unpackable  []UnpackableLine   `bson:"unpackable,omitempty"`
	Destination *Address           `bson:"destination,omitempty"`
	Shipment    ShipmentType       `bson:"shipmentType"`
	Service     ServiceLevel       `bson:"serviceLevel,omitempty"`

	// ForcedOversized lists product ids the operator has explicitly allowed
	// to overflow the box weight limit (one flagged box per unit).
	ForcedOversized []string `bson:"forcedOversized,omitempty"`

	SelectedQuote *CarrierQuote  `bson:"selectedQuote,omitempty"`
	Quotes        []CarrierQuote `bson:"-"`

	CreatedAt   time.Time  `bson:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewPackingSession creates a session in Planning for a transfer entering
// packing. Items come pre-normalized from the transfer loader boundary.
func NewPackingSession(sessionID, transferID string, items []TransferItem) (*PackingSession, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for i := range items {
		if items[i].QuantityPlanned < 0 || items[i].QuantityPacked < 0 {
			return nil, ErrNegativeQuantity
		}
	}

	now := time.Now().UTC()
	s := &PackingSession{
		SessionID:    sessionID,
		TransferID:   transferID,
		State:        SessionStatePlanning,
		Items:        items,
		Shipment:     ShipmentTypeDelivery,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	s.AddDomainEvent(&SessionCreatedEvent{
		SessionID:  sessionID,
		TransferID: transferID,
		ItemCount:  len(items),
		CreatedAt:  now,
	})

	return s, nil
}

// SetPackedQuantity records an operator quantity edit. The first non-zero
// edit moves Planning to Packing. Edits while FreightSelected revert the
// session to Packing and clear the stale selection: a quote chosen against an
// old manifest must never silently survive a manifest change.
func (s *PackingSession) SetPackedQuantity(productID string, qty int) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}
	if qty < 0 {
		return ErrNegativeQuantity
	}

	item := s.findItem(productID)
	if item == nil {
		return ErrItemNotFound
	}

	item.QuantityPacked = qty
	s.UpdatedAt = time.Now().UTC()

	if s.State == SessionStatePlanning && qty > 0 {
		s.State = SessionStatePacking
		s.AddDomainEvent(&PackingStartedEvent{
			SessionID:  s.SessionID,
			TransferID: s.TransferID,
			StartedAt:  s.UpdatedAt,
		})
	}
	if s.State == SessionStateFreightSelected {
		s.invalidateFreightSelection("quantity edit")
	}

	return nil
}

// SetResolvedWeights applies weight resolution results to the item lines.
func (s *PackingSession) SetResolvedWeights(weights map[string]ResolvedWeight) {
	for i := range s.Items {
		if w, ok := weights[s.Items[i].ProductID]; ok {
			s.Items[i].UnitWeightG = w.WeightGrams
			s.Items[i].WeightTier = w.Confidence
		}
	}
	s.UpdatedAt = time.Now().UTC()
}

// SetDestination updates the destination and shipment type. A changed
// destination invalidates any selected quote since rates no longer apply.
func (s *PackingSession) SetDestination(addr Address, shipment ShipmentType, service ServiceLevel) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}

	s.Destination = &addr
	s.Shipment = shipment
	s.Service = service
	s.UpdatedAt = time.Now().UTC()

	if s.State == SessionStateFreightSelected {
		s.invalidateFreightSelection("destination change")
	}

	return nil
}

// ApplyManifest installs a freshly computed box manifest and rewrites each
// item's box assignments from the box contents, preserving box order.
func (s *PackingSession) ApplyManifest(boxes []Box, unpackable []UnpackableLine) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}

	s.Boxes = boxes
	s.Unpackable = unpackable

	for i := range s.Items {
		s.Items[i].BoxAssignments = nil
	}
	for _, box := range boxes {
		for _, content := range box.Contents {
			if item := s.findItem(content.ItemID); item != nil {
				item.BoxAssignments = append(item.BoxAssignments, BoxAssignment{
					BoxID:    box.BoxID,
					Quantity: content.Quantity,
				})
			}
		}
	}

	s.UpdatedAt = time.Now().UTC()

	if s.State == SessionStateFreightSelected {
		s.invalidateFreightSelection("manifest recomputed")
	}

	return nil
}

// ForceOversized allows an unpackable line to be packed into flagged
// overweight-exempt boxes on the next recompute.
func (s *PackingSession) ForceOversized(productID string) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}

	for _, u := range s.Unpackable {
		if u.ProductID == productID {
			for _, existing := range s.ForcedOversized {
				if existing == productID {
					return nil
				}
			}
			s.ForcedOversized = append(s.ForcedOversized, productID)
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotOversized
}

// SelectQuote records the operator's carrier choice and moves the session to
// FreightSelected. Requires at least one box with real weight.
func (s *PackingSession) SelectQuote(quote CarrierQuote) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}
	if !s.hasPackedWeight() {
		return ErrNoPackedWeight
	}

	now := time.Now().UTC()
	s.SelectedQuote = &quote
	s.State = SessionStateFreightSelected
	s.UpdatedAt = now

	s.AddDomainEvent(&FreightSelectedEvent{
		SessionID:   s.SessionID,
		TransferID:  s.TransferID,
		CarrierName: quote.CarrierName,
		ServiceName: quote.ServiceName,
		Price:       quote.Price.String(),
		EtaDays:     quote.EtaDays,
		SelectedAt:  now,
	})

	return nil
}

// Finish completes the session. Under/Over discrepancies are allowed but must
// be explicitly acknowledged; unassigned packed quantity (an unresolved
// unpackable line) always blocks completion.
func (s *PackingSession) Finish(acknowledgeDiscrepancies bool) error {
	if s.State == SessionStateCompleted {
		return ErrSessionCompleted
	}
	if s.State != SessionStateFreightSelected || s.SelectedQuote == nil {
		return ErrNoQuoteSelected
	}

	for i := range s.Items {
		if s.Items[i].AssignedQuantity() != s.Items[i].QuantityPacked {
			return ErrUnassignedQuantity
		}
	}

	if s.HasDiscrepancies() && !acknowledgeDiscrepancies {
		return ErrDiscrepanciesUnacked
	}

	now := time.Now().UTC()
	s.State = SessionStateCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now

	s.AddDomainEvent(&SessionCompletedEvent{
		SessionID:   s.SessionID,
		TransferID:  s.TransferID,
		Boxes:       s.Boxes,
		CarrierName: s.SelectedQuote.CarrierName,
		ServiceName: s.SelectedQuote.ServiceName,
		Price:       s.SelectedQuote.Price.String(),
		CompletedAt: now,
	})

	return nil
}

// HasDiscrepancies reports whether any item's packed quantity diverges from
// plan (Zero, Under or Over status).
func (s *PackingSession) HasDiscrepancies() bool {
	for i := range s.Items {
		if s.Items[i].Status() != ItemStatusOK {
			return true
		}
	}
	return false
}

// PackerLines projects the item list into packer input, skipping unpacked
// lines. Order follows the item list; the packer applies its own sort.
func (s *PackingSession) PackerLines() []PackerLine {
	lines := make([]PackerLine, 0, len(s.Items))
	for i := range s.Items {
		if s.Items[i].QuantityPacked == 0 {
			continue
		}
		lines = append(lines, PackerLine{
			ProductID:   s.Items[i].ProductID,
			Quantity:    s.Items[i].QuantityPacked,
			UnitWeightG: s.Items[i].UnitWeightG,
		})
	}
	return lines
}

func (s *PackingSession) invalidateFreightSelection(reason string) {
	now := time.Now().UTC()
	s.State = SessionStatePacking
	s.SelectedQuote = nil
	s.AddDomainEvent(&FreightSelectionInvalidatedEvent{
		SessionID:     s.SessionID,
		TransferID:    s.TransferID,
		Reason:        reason,
		InvalidatedAt: now,
	})
}

func (s *PackingSession) hasPackedWeight() bool {
	for _, b := range s.Boxes {
		if b.WeightKg > 0 {
			return true
		}
	}
	return false
}

func (s *PackingSession) findItem(productID string) *TransferItem {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return &s.Items[i]
		}
	}
	return nil
}

// AddDomainEvent adds a domain event
func (s *PackingSession) AddDomainEvent(event DomainEvent) {
	s.DomainEvents = append(s.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (s *PackingSession) ClearDomainEvents() {
	s.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (s *PackingSession) GetDomainEvents() []DomainEvent {
	return s.DomainEvents
}
