package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShipmentType selects how the consignment reaches the carrier network.
type ShipmentType string

const (
	ShipmentTypeDelivery ShipmentType = "delivery"
	ShipmentTypePickup   ShipmentType = "pickup"
	ShipmentTypeDropoff  ShipmentType = "dropoff"
)

// ServiceLevel filters which carrier services are quoted.
type ServiceLevel string

const (
	ServiceLevelAny       ServiceLevel = ""
	ServiceLevelStandard  ServiceLevel = "standard"
	ServiceLevelOvernight ServiceLevel = "overnight"
)

// QuoteTag marks a quote in the comparison view. Zero or more may apply.
type QuoteTag string

const (
	QuoteTagRecommended QuoteTag = "recommended"
	QuoteTagCheapest    QuoteTag = "cheapest"
	QuoteTagFastest     QuoteTag = "fastest"
)

// CarrierQuote is one carrier+service price/ETA offer.
type CarrierQuote struct {
	CarrierName  string          `bson:"carrierName" json:"carrierName"`
	ServiceName  string          `bson:"serviceName" json:"serviceName"`
	ServiceLevel ServiceLevel    `bson:"serviceLevel" json:"serviceLevel"`
	Price        decimal.Decimal `bson:"price" json:"price"`
	Currency     string          `bson:"currency" json:"currency"`
	EtaDays      int             `bson:"etaDays" json:"etaDays"`
	Tags         []QuoteTag      `bson:"tags,omitempty" json:"tags,omitempty"`
	QuotedAt     time.Time       `bson:"quotedAt" json:"quotedAt"`
}

// HasTag reports whether the quote carries the given tag.
func (q *CarrierQuote) HasTag(tag QuoteTag) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SameOffer reports whether two quotes refer to the same carrier service.
// Tags and quote time are ignored: a reselected offer after a recompute is
// still the same offer.
func (q *CarrierQuote) SameOffer(other *CarrierQuote) bool {
	if other == nil {
		return false
	}
	return q.CarrierName == other.CarrierName && q.ServiceName == other.ServiceName
}

// Address is a consignment destination or origin.
type Address struct {
	Name       string `bson:"name,omitempty" json:"name,omitempty"`
	Company    string `bson:"company,omitempty" json:"company,omitempty"`
	Street1    string `bson:"street1" json:"street1"`
	Street2    string `bson:"street2,omitempty" json:"street2,omitempty"`
	Suburb     string `bson:"suburb,omitempty" json:"suburb,omitempty"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postcode" json:"postcode"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// MissingFields lists required address fields that are empty. Rating cannot
// proceed until the list is empty; see AddressValidationRequired.
func (a Address) MissingFields() []string {
	var missing []string
	if a.Street1 == "" {
		missing = append(missing, "street1")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postcode")
	}
	if a.Country == "" {
		missing = append(missing, "country")
	}
	return missing
}

// AddressValidationRequired is a first-class rating outcome, not an error:
// the caller must surface the missing fields and keep item editing available.
type AddressValidationRequired struct {
	MissingFields []string `json:"missingFields"`
}
