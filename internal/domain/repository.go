package domain

import "context"

// SessionRepository defines the interface for session snapshot persistence.
// Writes are idempotent full-snapshot upserts; last write wins.
type SessionRepository interface {
	Save(ctx context.Context, session *PackingSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*PackingSession, error)
	// FindActiveByTransferID returns the transfer's non-completed session,
	// or nil when every session for the transfer has been completed.
	FindActiveByTransferID(ctx context.Context, transferID string) (*PackingSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// WeightSource supplies recorded product weights. Both lookups may return
// partial maps; absence means no data at that tier.
type WeightSource interface {
	// MeasuredWeights returns product-specific recorded weights in grams.
	MeasuredWeights(ctx context.Context, productIDs []string) (map[string]int, error)

	// CategoryAverageWeights returns per-product weights averaged from each
	// product's category, for products without a measured weight.
	CategoryAverageWeights(ctx context.Context, productIDs []string) (map[string]int, error)
}

// PackerLine is one item line handed to the box packer.
type PackerLine struct {
	ProductID   string
	Quantity    int
	UnitWeightG int
}

// RateRequest asks a carrier for quotes on a packed manifest.
type RateRequest struct {
	Manifest     ManifestSummary
	Boxes        []Box
	Origin       Address
	Destination  Address
	ShipmentType ShipmentType
	ServiceLevel ServiceLevel
}

// RateProvider is the port for carrier rating integrations. Adapters
// translate domain models to carrier-specific APIs (anti-corruption layer).
type RateProvider interface {
	CarrierName() string
	GetRates(ctx context.Context, req RateRequest) ([]CarrierQuote, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}
