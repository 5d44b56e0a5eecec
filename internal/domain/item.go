package domain

// WeightTier classifies how a product's shipping weight was obtained.
type WeightTier string

const (
	WeightTierMeasured        WeightTier = "measured"
	WeightTierCategoryAverage WeightTier = "category_average"
	WeightTierDefault         WeightTier = "default"
)

// LegendCode returns the one-letter code shown next to weights in the
// packing UI so operators can judge how trustworthy the freight numbers are.
func (t WeightTier) LegendCode() string {
	switch t {
	case WeightTierMeasured:
		return "P"
	case WeightTierCategoryAverage:
		return "C"
	default:
		return "D"
	}
}

// ResolvedWeight is the outcome of weight resolution for one product.
type ResolvedWeight struct {
	WeightGrams int        `bson:"weightGrams" json:"weightGrams"`
	Confidence  WeightTier `bson:"confidence" json:"confidence"`
}

// ItemStatus is derived from packed vs planned quantities. It is a business
// signal, not an error: over-packing is a valid state.
type ItemStatus string

const (
	ItemStatusZero  ItemStatus = "zero"
	ItemStatusUnder ItemStatus = "under"
	ItemStatusOK    ItemStatus = "ok"
	ItemStatusOver  ItemStatus = "over"
)

// DeriveItemStatus is a total function over non-negative quantities.
func DeriveItemStatus(packed, planned int) ItemStatus {
	switch {
	case packed == 0:
		return ItemStatusZero
	case packed < planned:
		return ItemStatusUnder
	case packed == planned:
		return ItemStatusOK
	default:
		return ItemStatusOver
	}
}

// BoxAssignment records how much of an item's packed quantity landed in a box.
// The order follows box packing order.
type BoxAssignment struct {
	BoxID    string `bson:"boxId" json:"boxId"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// TransferItem is one line of a stock transfer being packed.
type TransferItem struct {
	ProductID       string          `bson:"productId" json:"productId"`
	SKU             string          `bson:"sku" json:"sku"`
	Name            string          `bson:"name" json:"name"`
	QuantityPlanned int             `bson:"quantityPlanned" json:"quantityPlanned"`
	QuantityPacked  int             `bson:"quantityPacked" json:"quantityPacked"`
	UnitWeightG     int             `bson:"unitWeightG" json:"unitWeightG"`
	WeightTier      WeightTier      `bson:"weightTier" json:"weightTier"`
	BoxAssignments  []BoxAssignment `bson:"boxAssignments" json:"boxAssignments"`
}

// Status derives the packing status from the item's quantities.
func (i *TransferItem) Status() ItemStatus {
	return DeriveItemStatus(i.QuantityPacked, i.QuantityPlanned)
}

// AssignedQuantity sums the quantities placed into boxes. For a fully packed
// line this equals QuantityPacked; a shortfall means the line is unresolved
// (typically an unpackable line awaiting operator action).
func (i *TransferItem) AssignedQuantity() int {
	total := 0
	for _, a := range i.BoxAssignments {
		total += a.Quantity
	}
	return total
}

// LineWeightGrams is the total shipping weight of the packed quantity.
func (i *TransferItem) LineWeightGrams() int {
	return i.QuantityPacked * i.UnitWeightG
}
