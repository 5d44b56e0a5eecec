// Package carriers holds the anti-corruption layer between the freight
// domain and carrier rating APIs. Each adapter translates domain models to
// one carrier's request shapes and back.
package carriers

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
)

// NZPostAdapter integrates the NZ Post / CourierPost rating API. Pricing is
// computed from the configured rate card; the request translation mirrors
// the shapes the live API expects so a real client can slot in behind it.
type NZPostAdapter struct {
	// NZ Post API client would go here
	// client *nzpost.Client
	apiKey   string
	apiURL   string
	card     config.RateCard
	currency string
}

// NewNZPostAdapter creates a new NZ Post carrier adapter
func NewNZPostAdapter(apiKey, apiURL string, card config.RateCard, currency string) *NZPostAdapter {
	return &NZPostAdapter{
		apiKey:   apiKey,
		apiURL:   apiURL,
		card:     card,
		currency: currency,
	}
}

// CarrierName returns the carrier identifier this adapter handles
func (a *NZPostAdapter) CarrierName() string {
	return "nz-post"
}

// GetRates retrieves parcel rates from NZ Post
func (a *NZPostAdapter) GetRates(ctx context.Context, request domain.RateRequest) ([]domain.CarrierQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Translate domain RateRequest → NZ Post rate request
	nzpostRequest := a.toNZPostRateRequest(request)

	// 2. Call NZ Post Rating API
	// nzpostResponse, err := a.client.ParcelRates(ctx, nzpostRequest)
	// if err != nil {
	//     return nil, a.translateNZPostError(err)
	// }
	nzpostResponse := a.rateFromCard(nzpostRequest, request)

	// 3. Translate NZ Post rate lines → domain CarrierQuotes
	quotes := make([]domain.CarrierQuote, 0, len(nzpostResponse.Rates))
	for _, rate := range nzpostResponse.Rates {
		quotes = append(quotes, domain.CarrierQuote{
			CarrierName:  a.CarrierName(),
			ServiceName:  rate.ServiceDescription,
			ServiceLevel: domain.ServiceLevel(rate.ServiceLevel),
			Price:        rate.TotalPrice,
			Currency:     a.currency,
			EtaDays:      rate.TransitDays,
			QuotedAt:     time.Now().UTC(),
		})
	}
	return quotes, nil
}

// toNZPostRateRequest translates a domain RateRequest to the NZ Post shape
func (a *NZPostAdapter) toNZPostRateRequest(request domain.RateRequest) *nzpostRateRequest {
	parcels := make([]nzpostParcel, len(request.Boxes))
	for i, box := range request.Boxes {
		parcels[i] = nzpostParcel{
			Reference: box.BoxID,
			Type:      mapKindToNZPost(box.Kind),
			WeightKg:  box.WeightKg,
		}
	}
	return &nzpostRateRequest{
		PickupAddress: nzpostAddress{
			Street:   request.Origin.Street1,
			Suburb:   request.Origin.Suburb,
			City:     request.Origin.City,
			Postcode: request.Origin.PostalCode,
			Country:  request.Origin.Country,
		},
		DeliveryAddress: nzpostAddress{
			Street:   request.Destination.Street1,
			Suburb:   request.Destination.Suburb,
			City:     request.Destination.City,
			Postcode: request.Destination.PostalCode,
			Country:  request.Destination.Country,
		},
		Parcels: parcels,
	}
}

// rateFromCard prices the request from the configured rate card. This stands
// in for the live API response and is deterministic for a given manifest.
func (a *NZPostAdapter) rateFromCard(req *nzpostRateRequest, domainReq domain.RateRequest) *nzpostRateResponse {
	base := decimal.Zero
	for _, parcel := range req.Parcels {
		if parcel.Type == "satchel" {
			base = base.Add(decimal.NewFromFloat(a.card.SatchelRate))
			continue
		}
		parcelPrice := decimal.NewFromFloat(a.card.BoxBaseRate).
			Add(decimal.NewFromFloat(a.card.BoxPerKgRate).Mul(decimal.NewFromFloat(parcel.WeightKg)))
		base = base.Add(parcelPrice)
	}

	response := &nzpostRateResponse{}
	for _, svc := range a.card.Services {
		if domainReq.ServiceLevel != domain.ServiceLevelAny &&
			domain.ServiceLevel(svc.Level) != domainReq.ServiceLevel {
			continue
		}
		price := base.Mul(decimal.NewFromFloat(svc.Multiplier))
		price = applyShipmentType(price, domainReq.ShipmentType, a.card)
		response.Rates = append(response.Rates, nzpostRate{
			ServiceCode:        fmt.Sprintf("CPOST_%s", svc.Level),
			ServiceDescription: svc.Name,
			ServiceLevel:       svc.Level,
			TotalPrice:         price.Round(2),
			TransitDays:        svc.EtaDays,
		})
	}
	return response
}

func mapKindToNZPost(kind domain.BoxKind) string {
	if kind == domain.BoxKindSatchel {
		return "satchel"
	}
	return "box"
}

// applyShipmentType adjusts a price for the consignment handover mode:
// dropoffs earn the card's percentage discount, pickups pay the booking fee.
func applyShipmentType(price decimal.Decimal, shipmentType domain.ShipmentType, card config.RateCard) decimal.Decimal {
	switch shipmentType {
	case domain.ShipmentTypeDropoff:
		discount := decimal.NewFromFloat(card.DropoffDiscountPct).Div(decimal.NewFromInt(100))
		return price.Mul(decimal.NewFromInt(1).Sub(discount))
	case domain.ShipmentTypePickup:
		return price.Add(decimal.NewFromFloat(card.PickupFee))
	default:
		return price
	}
}

// --- NZ Post API models (would come from the NZ Post SDK) ---

type nzpostRateRequest struct {
	PickupAddress   nzpostAddress
	DeliveryAddress nzpostAddress
	Parcels         []nzpostParcel
}

type nzpostAddress struct {
	Street   string
	Suburb   string
	City     string
	Postcode string
	Country  string
}

type nzpostParcel struct {
	Reference string
	Type      string
	WeightKg  float64
}

type nzpostRateResponse struct {
	Rates []nzpostRate
}

type nzpostRate struct {
	ServiceCode        string
	ServiceDescription string
	ServiceLevel       string
	TotalPrice         decimal.Decimal
	TransitDays        int
}
