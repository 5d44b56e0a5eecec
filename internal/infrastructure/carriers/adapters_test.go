package carriers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/internal/config"
	"github.com/wms-platform/freight-service/internal/domain"
)

func testCard() config.RateCard {
	return config.RateCard{
		SatchelRate:        5.00,
		BoxBaseRate:        8.00,
		BoxPerKgRate:       1.00,
		DropoffDiscountPct: 10,
		PickupFee:          4.00,
		Services: []config.ServiceOption{
			{Name: "Standard", Level: "standard", Multiplier: 1.0, EtaDays: 2},
			{Name: "Overnight", Level: "overnight", Multiplier: 2.0, EtaDays: 1},
		},
	}
}

func testRequest(shipmentType domain.ShipmentType, level domain.ServiceLevel) domain.RateRequest {
	boxes := []domain.Box{
		{BoxID: "BOX-001", Kind: domain.BoxKindBox, WeightKg: 10}, // 8 + 10*1 = 18
		{BoxID: "SAT-001", Kind: domain.BoxKindSatchel, WeightKg: 1.5},
	}
	return domain.RateRequest{
		Manifest:     domain.SummarizeBoxes(boxes),
		Boxes:        boxes,
		Origin:       domain.Address{Street1: "1 Warehouse Way", City: "Auckland", PostalCode: "1010", Country: "NZ"},
		Destination:  domain.Address{Street1: "4 Harbour St", City: "Wellington", PostalCode: "6011", Country: "NZ"},
		ShipmentType: shipmentType,
		ServiceLevel: level,
	}
}

func priceOf(t *testing.T, quotes []domain.CarrierQuote, service string) decimal.Decimal {
	t.Helper()
	for _, q := range quotes {
		if q.ServiceName == service {
			return q.Price
		}
	}
	t.Fatalf("service %q not quoted", service)
	return decimal.Zero
}

func TestNZPostAdapter_RatesFromCard(t *testing.T) {
	adapter := NewNZPostAdapter("key", "https://api.nzpost.co.nz", testCard(), "NZD")

	quotes, err := adapter.GetRates(context.Background(), testRequest(domain.ShipmentTypeDelivery, domain.ServiceLevelAny))

	require.NoError(t, err)
	require.Len(t, quotes, 2)

	// Base: box 18.00 + satchel 5.00 = 23.00
	assert.True(t, priceOf(t, quotes, "Standard").Equal(decimal.RequireFromString("23.00")))
	assert.True(t, priceOf(t, quotes, "Overnight").Equal(decimal.RequireFromString("46.00")))
	for _, q := range quotes {
		assert.Equal(t, "nz-post", q.CarrierName)
		assert.Equal(t, "NZD", q.Currency)
	}
}

func TestNZPostAdapter_ServiceLevelFilter(t *testing.T) {
	adapter := NewNZPostAdapter("key", "", testCard(), "NZD")

	quotes, err := adapter.GetRates(context.Background(), testRequest(domain.ShipmentTypeDelivery, domain.ServiceLevelOvernight))

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, domain.ServiceLevelOvernight, quotes[0].ServiceLevel)
	assert.Equal(t, 1, quotes[0].EtaDays)
}

func TestNZPostAdapter_DropoffDiscount(t *testing.T) {
	adapter := NewNZPostAdapter("key", "", testCard(), "NZD")

	quotes, err := adapter.GetRates(context.Background(), testRequest(domain.ShipmentTypeDropoff, domain.ServiceLevelStandard))

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	// 23.00 less 10%
	assert.True(t, quotes[0].Price.Equal(decimal.RequireFromString("20.70")), "got %s", quotes[0].Price)
}

func TestNZPostAdapter_PickupFee(t *testing.T) {
	adapter := NewNZPostAdapter("key", "", testCard(), "NZD")

	quotes, err := adapter.GetRates(context.Background(), testRequest(domain.ShipmentTypePickup, domain.ServiceLevelStandard))

	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Price.Equal(decimal.RequireFromString("27.00")), "got %s", quotes[0].Price)
}

func TestNZCouriersAdapter_RatesFromCard(t *testing.T) {
	adapter := NewNZCouriersAdapter("ACC123", "AKL", "", testCard(), "NZD")

	quotes, err := adapter.GetRates(context.Background(), testRequest(domain.ShipmentTypeDelivery, domain.ServiceLevelAny))

	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, priceOf(t, quotes, "Standard").Equal(decimal.RequireFromString("23.00")))
	for _, q := range quotes {
		assert.Equal(t, "nz-couriers", q.CarrierName)
	}
}

func TestAdapters_Deterministic(t *testing.T) {
	adapter := NewNZPostAdapter("key", "", testCard(), "NZD")
	req := testRequest(domain.ShipmentTypeDelivery, domain.ServiceLevelAny)

	first, err := adapter.GetRates(context.Background(), req)
	require.NoError(t, err)
	second, err := adapter.GetRates(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Price.Equal(second[i].Price))
		assert.Equal(t, first[i].ServiceName, second[i].ServiceName)
	}
}

func TestAdapters_CancelledContext(t *testing.T) {
	adapter := NewNZCouriersAdapter("ACC123", "AKL", "", testCard(), "NZD")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := adapter.GetRates(ctx, testRequest(domain.ShipmentTypeDelivery, domain.ServiceLevelAny))
	assert.ErrorIs(t, err, context.Canceled)
}
