package carriers

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
)

// NZCouriersAdapter integrates the NZ Couriers rating API.
type NZCouriersAdapter struct {
	// NZ Couriers API client would go here
	// client *nzcouriers.Client
	accountNumber string
	siteCode      string
	apiURL        string
	card          config.RateCard
	currency      string
}

// NewNZCouriersAdapter creates a new NZ Couriers carrier adapter
func NewNZCouriersAdapter(accountNumber, siteCode, apiURL string, card config.RateCard, currency string) *NZCouriersAdapter {
	return &NZCouriersAdapter{
		accountNumber: accountNumber,
		siteCode:      siteCode,
		apiURL:        apiURL,
		card:          card,
		currency:      currency,
	}
}

// CarrierName returns the carrier identifier this adapter handles
func (a *NZCouriersAdapter) CarrierName() string {
	return "nz-couriers"
}

// GetRates retrieves consignment rates from NZ Couriers
func (a *NZCouriersAdapter) GetRates(ctx context.Context, request domain.RateRequest) ([]domain.CarrierQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Translate domain RateRequest → NZ Couriers consignment quote request
	ncRequest := a.toConsignmentQuoteRequest(request)

	// 2. Call NZ Couriers Quote API
	// ncResponse, err := a.client.QuoteConsignment(ctx, ncRequest)
	// if err != nil {
	//     return nil, a.translateError(err)
	// }
	ncResponse := a.quoteFromCard(ncRequest, request)

	// 3. Translate quote options → domain CarrierQuotes
	quotes := make([]domain.CarrierQuote, 0, len(ncResponse.Options))
	for _, option := range ncResponse.Options {
		quotes = append(quotes, domain.CarrierQuote{
			CarrierName:  a.CarrierName(),
			ServiceName:  option.ServiceName,
			ServiceLevel: domain.ServiceLevel(option.Level),
			Price:        option.Total,
			Currency:     a.currency,
			EtaDays:      option.EtaDays,
			QuotedAt:     time.Now().UTC(),
		})
	}
	return quotes, nil
}

func (a *NZCouriersAdapter) toConsignmentQuoteRequest(request domain.RateRequest) *ncQuoteRequest {
	items := make([]ncQuoteItem, len(request.Boxes))
	for i, box := range request.Boxes {
		items[i] = ncQuoteItem{
			PackageCode: ncPackageCode(box.Kind),
			WeightKg:    box.WeightKg,
			Units:       1,
		}
	}
	return &ncQuoteRequest{
		Account:         a.accountNumber,
		Site:            a.siteCode,
		OriginPostcode:  request.Origin.PostalCode,
		DestPostcode:    request.Destination.PostalCode,
		DestCity:        strings.ToUpper(request.Destination.City),
		Items:           items,
		SaturdayRequest: false,
	}
}

func (a *NZCouriersAdapter) quoteFromCard(req *ncQuoteRequest, domainReq domain.RateRequest) *ncQuoteResponse {
	base := decimal.Zero
	for _, item := range req.Items {
		if item.PackageCode == "DLE" {
			base = base.Add(decimal.NewFromFloat(a.card.SatchelRate))
			continue
		}
		base = base.Add(decimal.NewFromFloat(a.card.BoxBaseRate).
			Add(decimal.NewFromFloat(a.card.BoxPerKgRate).Mul(decimal.NewFromFloat(item.WeightKg))))
	}

	response := &ncQuoteResponse{}
	for _, svc := range a.card.Services {
		if domainReq.ServiceLevel != domain.ServiceLevelAny &&
			domain.ServiceLevel(svc.Level) != domainReq.ServiceLevel {
			continue
		}
		total := base.Mul(decimal.NewFromFloat(svc.Multiplier))
		total = applyShipmentType(total, domainReq.ShipmentType, a.card)
		response.Options = append(response.Options, ncQuoteOption{
			ServiceName: svc.Name,
			Level:       svc.Level,
			Total:       total.Round(2),
			EtaDays:     svc.EtaDays,
		})
	}
	return response
}

func ncPackageCode(kind domain.BoxKind) string {
	if kind == domain.BoxKindSatchel {
		return "DLE"
	}
	return "CTN"
}

// --- NZ Couriers API models ---

type ncQuoteRequest struct {
	Account         string
	Site            string
	OriginPostcode  string
	DestPostcode    string
	DestCity        string
	Items           []ncQuoteItem
	SaturdayRequest bool
}

type ncQuoteItem struct {
	PackageCode string
	WeightKg    float64
	Units       int
}

type ncQuoteResponse struct {
	Options []ncQuoteOption
}

type ncQuoteOption struct {
	ServiceName string
	Level       string
	Total       decimal.Decimal
	EtaDays     int
}
