package application

import "github.com/wms-platform/freight-service/internal/domain"

// CreateSessionCommand opens a packing session for a transfer
type CreateSessionCommand struct {
	TransferID string
	OutletFrom string
	OutletTo   string
	Items      []ItemInput
}

// ItemInput is one transfer line supplied at session creation. Transfer
// loaders are inconsistent about the display-name key, so both name and
// product_name bind; name wins when both are present.
type ItemInput struct {
	ProductID       string `json:"productId" binding:"required"`
	SKU             string `json:"sku"`
	Name            string `json:"name"`
	ProductName     string `json:"product_name"`
	QuantityPlanned int    `json:"quantityPlanned" binding:"required,gt=0"`
}

// DisplayName resolves the loose inbound naming to one value.
func (i ItemInput) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ProductName
}

// SetQuantityCommand records an operator packed-quantity edit
type SetQuantityCommand struct {
	SessionID string
	ProductID string
	Quantity  int
}

// SetDestinationCommand updates the consignment destination and handover mode
type SetDestinationCommand struct {
	SessionID    string
	Destination  domain.Address
	ShipmentType domain.ShipmentType
	ServiceLevel domain.ServiceLevel
}

// ForceOversizedCommand approves an unpackable line for overweight boxes
type ForceOversizedCommand struct {
	SessionID string
	ProductID string
}

// SelectQuoteCommand records the operator's carrier choice
type SelectQuoteCommand struct {
	SessionID   string
	CarrierName string
	ServiceName string
}

// FinishSessionCommand completes the session
type FinishSessionCommand struct {
	SessionID                string
	AcknowledgeDiscrepancies bool
}

// GetSessionQuery retrieves a session by ID
type GetSessionQuery struct {
	SessionID string
}

// GetQuotesQuery requests carrier quotes for a session's current manifest
type GetQuotesQuery struct {
	SessionID string
}
