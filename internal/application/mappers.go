package application

import (
	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/internal/rates"
)

// ToSessionDTO converts a domain PackingSession to SessionDTO
func ToSessionDTO(session *domain.PackingSession) *SessionDTO {
	if session == nil {
		return nil
	}

	items := make([]ItemDTO, 0, len(session.Items))
	for i := range session.Items {
		items = append(items, ToItemDTO(&session.Items[i]))
	}

	boxes := make([]BoxDTO, 0, len(session.Boxes))
	for i := range session.Boxes {
		boxes = append(boxes, ToBoxDTO(&session.Boxes[i]))
	}

	unpackable := make([]UnpackableDTO, 0, len(session.Unpackable))
	for _, u := range session.Unpackable {
		unpackable = append(unpackable, UnpackableDTO{
			ProductID:   u.ProductID,
			Quantity:    u.Quantity,
			UnitWeightG: u.UnitWeightG,
			MaxWeightKg: u.MaxWeightKg,
		})
	}

	summary := domain.SummarizeBoxes(session.Boxes)

	dto := &SessionDTO{
		SessionID:        session.SessionID,
		TransferID:       session.TransferID,
		OutletFrom:       session.OutletFrom,
		OutletTo:         session.OutletTo,
		State:            string(session.State),
		Items:            items,
		Boxes:            boxes,
		Unpackable:       unpackable,
		Manifest:         ManifestDTO{BoxCount: summary.BoxCount, SatchelCount: summary.SatchelCount, TotalWeightKg: summary.TotalWeightKg},
		ShipmentType:     string(session.Shipment),
		ServiceLevel:     string(session.Service),
		HasDiscrepancies: session.HasDiscrepancies(),
		CreatedAt:        session.CreatedAt,
		UpdatedAt:        session.UpdatedAt,
		CompletedAt:      session.CompletedAt,
	}

	if session.Destination != nil {
		dto.Destination = ToAddressDTO(session.Destination)
	}
	if session.SelectedQuote != nil {
		quote := ToQuoteDTO(*session.SelectedQuote)
		dto.SelectedQuote = &quote
	}

	return dto
}

// ToItemDTO converts a domain TransferItem to ItemDTO
func ToItemDTO(item *domain.TransferItem) ItemDTO {
	assignments := make([]BoxAssignmentDTO, 0, len(item.BoxAssignments))
	for _, a := range item.BoxAssignments {
		assignments = append(assignments, BoxAssignmentDTO{BoxID: a.BoxID, Quantity: a.Quantity})
	}

	return ItemDTO{
		ProductID:        item.ProductID,
		SKU:              item.SKU,
		Name:             item.Name,
		QuantityPlanned:  item.QuantityPlanned,
		QuantityPacked:   item.QuantityPacked,
		UnitWeightG:      item.UnitWeightG,
		WeightConfidence: item.WeightTier.LegendCode(),
		Status:           string(item.Status()),
		BoxAssignments:   assignments,
	}
}

// ToBoxDTO converts a domain Box to BoxDTO
func ToBoxDTO(box *domain.Box) BoxDTO {
	contents := make([]BoxContentDTO, 0, len(box.Contents))
	for _, c := range box.Contents {
		contents = append(contents, BoxContentDTO{ItemID: c.ItemID, Quantity: c.Quantity})
	}

	return BoxDTO{
		BoxID:            box.BoxID,
		Kind:             string(box.Kind),
		MaxWeightKg:      box.MaxWeightKg,
		WeightKg:         box.WeightKg,
		OverweightExempt: box.OverweightExempt,
		Contents:         contents,
	}
}

// ToAddressDTO converts a domain Address to AddressDTO
func ToAddressDTO(addr *domain.Address) *AddressDTO {
	return &AddressDTO{
		Name:     addr.Name,
		Company:  addr.Company,
		Street1:  addr.Street1,
		Street2:  addr.Street2,
		Suburb:   addr.Suburb,
		City:     addr.City,
		Postcode: addr.PostalCode,
		Country:  addr.Country,
		Phone:    addr.Phone,
	}
}

// FromAddressDTO converts an AddressDTO to a domain Address
func FromAddressDTO(dto AddressDTO) domain.Address {
	return domain.Address{
		Name:       dto.Name,
		Company:    dto.Company,
		Street1:    dto.Street1,
		Street2:    dto.Street2,
		Suburb:     dto.Suburb,
		City:       dto.City,
		PostalCode: dto.Postcode,
		Country:    dto.Country,
		Phone:      dto.Phone,
	}
}

// ToQuoteDTO converts a domain CarrierQuote to QuoteDTO
func ToQuoteDTO(quote domain.CarrierQuote) QuoteDTO {
	tags := make([]string, 0, len(quote.Tags))
	for _, t := range quote.Tags {
		tags = append(tags, string(t))
	}

	return QuoteDTO{
		CarrierName:  quote.CarrierName,
		ServiceName:  quote.ServiceName,
		ServiceLevel: string(quote.ServiceLevel),
		Price:        quote.Price.StringFixed(2),
		Currency:     quote.Currency,
		EtaDays:      quote.EtaDays,
		Tags:         tags,
		QuotedAt:     quote.QuotedAt,
	}
}

// ToQuotesDTO converts a rates Result to QuotesDTO
func ToQuotesDTO(result *rates.Result) *QuotesDTO {
	if result == nil {
		return nil
	}

	dto := &QuotesDTO{
		FromCache:     result.FromCache,
		Degraded:      result.Degraded,
		CarrierErrors: result.CarrierErrors,
	}
	if result.AddressValidation != nil {
		dto.AddressValidation = &AddressValidationDTO{MissingFields: result.AddressValidation.MissingFields}
		return dto
	}

	dto.Quotes = make([]QuoteDTO, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		dto.Quotes = append(dto.Quotes, ToQuoteDTO(q))
	}
	return dto
}

// ToTransferItems converts creation inputs to domain items
func ToTransferItems(inputs []ItemInput) []domain.TransferItem {
	items := make([]domain.TransferItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, domain.TransferItem{
			ProductID:       in.ProductID,
			SKU:             in.SKU,
			Name:            in.DisplayName(),
			QuantityPlanned: in.QuantityPlanned,
			WeightTier:      domain.WeightTierDefault,
		})
	}
	return items
}
