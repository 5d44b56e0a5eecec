// Package packer assigns packed item quantities to boxes and satchels using
// weight-first greedy allocation. The algorithm is deterministic and
// order-stable: identical input always yields an identical manifest.
package packer

import (
	"fmt"
	"math"
	"sort"

	"github.com/wms-platform/freight-service/internal/domain"
)

// epsilonGrams stands in for a zero unit weight during packing decisions so
// an all-zero-weight item set still yields a parcel. Reported box weights
// always use the true unit weights.
const epsilonGrams = 1

// Constraints bound the packing run. SatchelLimitKg is the small-parcel
// threshold: a whole line at or under it ships as a standalone satchel.
type Constraints struct {
	MaxBoxWeightKg     float64
	SatchelLimitKg     float64
	MaxBoxVolumeM3     float64
	WeightSafetyFactor float64

	// ForceOversized lists product ids the operator has approved to overflow
	// the weight limit; their units go one per flagged box instead of being
	// reported as unpackable.
	ForceOversized map[string]bool
}

// Result is the outcome of one packing run. Boxes holds both full boxes and
// satchels in allocation order. Unpackable lines did not pack; the rest of
// the manifest is unaffected by them.
type Result struct {
	Boxes      []domain.Box
	Unpackable []domain.UnpackableLine
}

// Pack allocates lines to parcels:
//
//  1. Lines are sorted by total line weight descending, ties broken by
//     product id ascending.
//  2. A line whose total weight fits the satchel limit becomes a standalone
//     satchel.
//  3. Remaining lines fill a current-box accumulator; a line that would
//     overflow the box closes it and opens a new one.
//  4. A line too heavy for any single box is split across as many new boxes
//     as needed, conserving quantity exactly.
//  5. A single unit heavier than the box limit is reported as unpackable.
//
// An empty line list yields zero boxes and zero satchels.
func Pack(lines []domain.PackerLine, c Constraints) Result {
	if c.WeightSafetyFactor <= 0 || c.WeightSafetyFactor > 1 {
		c.WeightSafetyFactor = 1.0
	}

	sorted := make([]domain.PackerLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		wi := lineWeightGrams(sorted[i])
		wj := lineWeightGrams(sorted[j])
		if wi != wj {
			return wi > wj
		}
		return sorted[i].ProductID < sorted[j].ProductID
	})

	capacityG := c.MaxBoxWeightKg * 1000 * c.WeightSafetyFactor
	satchelLimitG := c.SatchelLimitKg * 1000

	b := &builder{constraints: c}

	for _, line := range sorted {
		if line.Quantity <= 0 {
			continue
		}

		effUnitG := float64(line.UnitWeightG)
		if effUnitG == 0 {
			effUnitG = epsilonGrams
		}
		effLineG := effUnitG * float64(line.Quantity)

		// Whole-line satchel allocation comes before box stepping: small
		// parcels are the cheaper packaging.
		if satchelLimitG > 0 && float64(lineWeightGrams(line)) <= satchelLimitG {
			b.addSatchel(line)
			continue
		}

		if effUnitG > capacityG {
			if c.ForceOversized[line.ProductID] {
				b.addOversized(line)
			} else {
				b.unpackable = append(b.unpackable, domain.UnpackableLine{
					ProductID:   line.ProductID,
					Quantity:    line.Quantity,
					UnitWeightG: line.UnitWeightG,
					MaxWeightKg: c.MaxBoxWeightKg,
				})
			}
			continue
		}

		if effLineG > capacityG {
			b.splitAcrossBoxes(line, effUnitG, capacityG)
			continue
		}

		b.addToCurrentBox(line, effLineG, capacityG)
	}

	b.closeCurrent()
	return Result{Boxes: b.boxes, Unpackable: b.unpackable}
}

type builder struct {
	constraints Constraints
	boxes       []domain.Box
	unpackable  []domain.UnpackableLine

	current     *domain.Box
	currentEffG float64

	boxSeq     int
	satchelSeq int
}

func (b *builder) nextBoxID() string {
	b.boxSeq++
	return fmt.Sprintf("BOX-%03d", b.boxSeq)
}

func (b *builder) nextSatchelID() string {
	b.satchelSeq++
	return fmt.Sprintf("SAT-%03d", b.satchelSeq)
}

func (b *builder) addSatchel(line domain.PackerLine) {
	b.boxes = append(b.boxes, domain.Box{
		BoxID:       b.nextSatchelID(),
		Kind:        domain.BoxKindSatchel,
		MaxWeightKg: b.constraints.SatchelLimitKg,
		Contents:    []domain.BoxContent{{ItemID: line.ProductID, Quantity: line.Quantity}},
		WeightKg:    float64(lineWeightGrams(line)) / 1000,
	})
}

// addOversized places one unit per flagged box for an operator-approved
// overweight line. This is the single permitted weight-limit exception.
func (b *builder) addOversized(line domain.PackerLine) {
	b.closeCurrent()
	for u := 0; u < line.Quantity; u++ {
		b.boxes = append(b.boxes, domain.Box{
			BoxID:            b.nextBoxID(),
			Kind:             domain.BoxKindBox,
			MaxWeightKg:      b.constraints.MaxBoxWeightKg,
			MaxVolumeM3:      b.constraints.MaxBoxVolumeM3,
			Contents:         []domain.BoxContent{{ItemID: line.ProductID, Quantity: 1}},
			WeightKg:         float64(line.UnitWeightG) / 1000,
			OverweightExempt: true,
		})
	}
}

// splitAcrossBoxes distributes an over-capacity line over the minimum number
// of new boxes. Quantity is conserved exactly: the per-box quantities sum to
// the original line quantity.
func (b *builder) splitAcrossBoxes(line domain.PackerLine, effUnitG, capacityG float64) {
	b.closeCurrent()

	unitsPerBox := int(capacityG / effUnitG)
	boxesNeeded := (line.Quantity + unitsPerBox - 1) / unitsPerBox

	base := line.Quantity / boxesNeeded
	remainder := line.Quantity % boxesNeeded

	for n := 0; n < boxesNeeded; n++ {
		qty := base
		if n < remainder {
			qty++
		}
		b.boxes = append(b.boxes, domain.Box{
			BoxID:       b.nextBoxID(),
			Kind:        domain.BoxKindBox,
			MaxWeightKg: b.constraints.MaxBoxWeightKg,
			MaxVolumeM3: b.constraints.MaxBoxVolumeM3,
			Contents:    []domain.BoxContent{{ItemID: line.ProductID, Quantity: qty}},
			WeightKg:    float64(qty*line.UnitWeightG) / 1000,
		})
	}
}

func (b *builder) addToCurrentBox(line domain.PackerLine, effLineG, capacityG float64) {
	if b.current != nil && b.currentEffG+effLineG > capacityG {
		b.closeCurrent()
	}
	if b.current == nil {
		b.current = &domain.Box{
			BoxID:       b.nextBoxID(),
			Kind:        domain.BoxKindBox,
			MaxWeightKg: b.constraints.MaxBoxWeightKg,
			MaxVolumeM3: b.constraints.MaxBoxVolumeM3,
		}
		b.currentEffG = 0
	}

	b.current.Contents = append(b.current.Contents, domain.BoxContent{
		ItemID:   line.ProductID,
		Quantity: line.Quantity,
	})
	b.current.WeightKg = roundGrams(b.current.WeightKg + float64(lineWeightGrams(line))/1000)
	b.currentEffG += effLineG
}

func (b *builder) closeCurrent() {
	if b.current != nil {
		b.boxes = append(b.boxes, *b.current)
		b.current = nil
		b.currentEffG = 0
	}
}

func lineWeightGrams(line domain.PackerLine) int {
	return line.Quantity * line.UnitWeightG
}

// roundGrams keeps accumulated kilogram weights exact to the gram.
func roundGrams(kg float64) float64 {
	return math.Round(kg*1000) / 1000
}
