package application

import "time"

// SessionDTO represents a packing session in responses
type SessionDTO struct {
	SessionID        string          `json:"sessionId"`
	TransferID       string          `json:"transferId"`
	OutletFrom       string          `json:"outletFrom,omitempty"`
	OutletTo         string          `json:"outletTo,omitempty"`
	State            string          `json:"state"`
	Items            []ItemDTO       `json:"items"`
	Boxes            []BoxDTO        `json:"boxes"`
	Unpackable       []UnpackableDTO `json:"unpackable,omitempty"`
	Manifest         ManifestDTO     `json:"manifest"`
	Destination      *AddressDTO     `json:"destination,omitempty"`
	ShipmentType     string          `json:"shipmentType"`
	ServiceLevel     string          `json:"serviceLevel,omitempty"`
	SelectedQuote    *QuoteDTO       `json:"selectedQuote,omitempty"`
	HasDiscrepancies bool            `json:"hasDiscrepancies"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// ItemDTO represents one transfer line. WeightConfidence carries the legend
// code shown beside weights: P measured, C category average, D default.
type ItemDTO struct {
	ProductID        string             `json:"productId"`
	SKU              string             `json:"sku"`
	Name             string             `json:"name"`
	QuantityPlanned  int                `json:"quantityPlanned"`
	QuantityPacked   int                `json:"quantityPacked"`
	UnitWeightG      int                `json:"unitWeightG"`
	WeightConfidence string             `json:"weightConfidence"`
	Status           string             `json:"status"`
	BoxAssignments   []BoxAssignmentDTO `json:"boxAssignments,omitempty"`
}

// BoxAssignmentDTO records how much of a line landed in one box
type BoxAssignmentDTO struct {
	BoxID    string `json:"boxId"`
	Quantity int    `json:"quantity"`
}

// BoxDTO represents one parcel in the manifest
type BoxDTO struct {
	BoxID            string          `json:"boxId"`
	Kind             string          `json:"kind"`
	MaxWeightKg      float64         `json:"maxWeightKg"`
	WeightKg         float64         `json:"weightKg"`
	OverweightExempt bool            `json:"overweightExempt,omitempty"`
	Contents         []BoxContentDTO `json:"contents"`
}

// BoxContentDTO is one item line inside a box
type BoxContentDTO struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// UnpackableDTO reports a line whose single unit exceeds the box limit
type UnpackableDTO struct {
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	UnitWeightG int     `json:"unitWeightG"`
	MaxWeightKg float64 `json:"maxWeightKg"`
}

// ManifestDTO summarizes the computed manifest
type ManifestDTO struct {
	BoxCount      int     `json:"boxCount"`
	SatchelCount  int     `json:"satchelCount"`
	TotalWeightKg float64 `json:"totalWeightKg"`
}

// AddressDTO represents a consignment address
type AddressDTO struct {
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Street1  string `json:"street1"`
	Street2  string `json:"street2,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

// QuoteDTO represents one carrier quote. Price is a decimal string.
type QuoteDTO struct {
	CarrierName  string    `json:"carrierName"`
	ServiceName  string    `json:"serviceName"`
	ServiceLevel string    `json:"serviceLevel,omitempty"`
	Price        string    `json:"price"`
	Currency     string    `json:"currency"`
	EtaDays      int       `json:"etaDays"`
	Tags         []string  `json:"tags,omitempty"`
	QuotedAt     time.Time `json:"quotedAt"`
}

// QuotesDTO is the response to a quote request. AddressValidation is set in
// place of quotes when the destination is incomplete.
type QuotesDTO struct {
	Quotes            []QuoteDTO            `json:"quotes,omitempty"`
	AddressValidation *AddressValidationDTO `json:"addressValidation,omitempty"`
	FromCache         bool                  `json:"fromCache,omitempty"`
	Degraded          bool                  `json:"degraded,omitempty"`
	CarrierErrors     map[string]string     `json:"carrierErrors,omitempty"`
}

// AddressValidationDTO lists the destination fields still required
type AddressValidationDTO struct {
	MissingFields []string `json:"missingFields"`
}
