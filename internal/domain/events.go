package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// SessionCreatedEvent is published when a packing session is opened.
type SessionCreatedEvent struct {
	SessionID  string    `json:"sessionId"`
	TransferID string    `json:"transferId"`
	ItemCount  int       `json:"itemCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (e *SessionCreatedEvent) EventType() string     { return "wms.freight.session-created" }
func (e *SessionCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// PackingStartedEvent is published on the first non-zero packed quantity.
type PackingStartedEvent struct {
	SessionID  string    `json:"sessionId"`
	TransferID string    `json:"transferId"`
	StartedAt  time.Time `json:"startedAt"`
}

func (e *PackingStartedEvent) EventType() string     { return "wms.freight.packing-started" }
func (e *PackingStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// FreightSelectedEvent is published when the operator picks a carrier quote.
type FreightSelectedEvent struct {
	SessionID   string    `json:"sessionId"`
	TransferID  string    `json:"transferId"`
	CarrierName string    `json:"carrierName"`
	ServiceName string    `json:"serviceName"`
	Price       string    `json:"price"`
	EtaDays     int       `json:"etaDays"`
	SelectedAt  time.Time `json:"selectedAt"`
}

func (e *FreightSelectedEvent) EventType() string     { return "wms.freight.freight-selected" }
func (e *FreightSelectedEvent) OccurredAt() time.Time { return e.SelectedAt }

// FreightSelectionInvalidatedEvent is published when a manifest-affecting
// edit clears a previously selected quote.
type FreightSelectionInvalidatedEvent struct {
	SessionID     string    `json:"sessionId"`
	TransferID    string    `json:"transferId"`
	Reason        string    `json:"reason"`
	InvalidatedAt time.Time `json:"invalidatedAt"`
}

func (e *FreightSelectionInvalidatedEvent) EventType() string {
	return "wms.freight.selection-invalidated"
}
func (e *FreightSelectionInvalidatedEvent) OccurredAt() time.Time { return e.InvalidatedAt }

// SessionCompletedEvent is published at completion. The box manifest it
// carries is the handoff contract for label issuance: one shipment, one
// parcel per box, one tracking number per parcel, all downstream of here.
type SessionCompletedEvent struct {
	SessionID   string    `json:"sessionId"`
	TransferID  string    `json:"transferId"`
	Boxes       []Box     `json:"boxes"`
	CarrierName string    `json:"carrierName"`
	ServiceName string    `json:"serviceName"`
	Price       string    `json:"price"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *SessionCompletedEvent) EventType() string     { return "wms.freight.session-completed" }
func (e *SessionCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
