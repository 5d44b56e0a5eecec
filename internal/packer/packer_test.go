package packer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/freight-service/internal/domain"
)

func defaultConstraints() Constraints {
	return Constraints{
		MaxBoxWeightKg:     25,
		SatchelLimitKg:     2,
		WeightSafetyFactor: 1.0,
	}
}

func line(id string, qty, unitG int) domain.PackerLine {
	return domain.PackerLine{ProductID: id, Quantity: qty, UnitWeightG: unitG}
}

func totalQuantity(boxes []domain.Box, productID string) int {
	total := 0
	for _, box := range boxes {
		for _, c := range box.Contents {
			if c.ItemID == productID {
				total += c.Quantity
			}
		}
	}
	return total
}

func TestPack_SingleBoxUnderLimit(t *testing.T) {
	// 20 units at 920g is 18.4kg, inside a 25kg box.
	result := Pack([]domain.PackerLine{line("prod-1", 20, 920)}, defaultConstraints())

	require.Len(t, result.Boxes, 1)
	assert.Empty(t, result.Unpackable)
	assert.Equal(t, domain.BoxKindBox, result.Boxes[0].Kind)
	assert.InDelta(t, 18.4, result.Boxes[0].WeightKg, 0.0001)
	assert.Equal(t, 20, totalQuantity(result.Boxes, "prod-1"))
}

func TestPack_ThreeLinesShareOneBox(t *testing.T) {
	c := defaultConstraints()
	c.SatchelLimitKg = 1

	// 5kg + 8kg + 5.4kg fits a single 25kg box; no line is light
	// enough for a satchel on its own.
	result := Pack([]domain.PackerLine{
		line("prod-a", 10, 500),
		line("prod-b", 20, 400),
		line("prod-c", 18, 300),
	}, c)

	require.Len(t, result.Boxes, 1)
	assert.Empty(t, result.Unpackable)
	assert.Equal(t, domain.BoxKindBox, result.Boxes[0].Kind)
	assert.InDelta(t, 18.4, result.Boxes[0].WeightKg, 0.0001)
	assert.Equal(t, 10, totalQuantity(result.Boxes, "prod-a"))
	assert.Equal(t, 20, totalQuantity(result.Boxes, "prod-b"))
	assert.Equal(t, 18, totalQuantity(result.Boxes, "prod-c"))
}

func TestPack_EmptyInput(t *testing.T) {
	result := Pack(nil, defaultConstraints())

	assert.Empty(t, result.Boxes)
	assert.Empty(t, result.Unpackable)
}

func TestPack_SatchelForLightLine(t *testing.T) {
	result := Pack([]domain.PackerLine{line("prod-1", 3, 500)}, defaultConstraints())

	require.Len(t, result.Boxes, 1)
	assert.Equal(t, domain.BoxKindSatchel, result.Boxes[0].Kind)
	assert.Equal(t, "SAT-001", result.Boxes[0].BoxID)
	assert.InDelta(t, 1.5, result.Boxes[0].WeightKg, 0.0001)
}

func TestPack_UnitHeavierThanBoxIsUnpackable(t *testing.T) {
	result := Pack([]domain.PackerLine{
		line("prod-heavy", 1, 30000),
		line("prod-2", 4, 1000),
	}, defaultConstraints())

	require.Len(t, result.Unpackable, 1)
	assert.Equal(t, "prod-heavy", result.Unpackable[0].ProductID)
	assert.Equal(t, 30000, result.Unpackable[0].UnitWeightG)
	assert.Equal(t, 25.0, result.Unpackable[0].MaxWeightKg)

	// The rest of the manifest still packs.
	require.Len(t, result.Boxes, 1)
	assert.Equal(t, 4, totalQuantity(result.Boxes, "prod-2"))
}

func TestPack_ForcedOversizedGetsFlaggedBoxes(t *testing.T) {
	c := defaultConstraints()
	c.ForceOversized = map[string]bool{"prod-heavy": true}

	result := Pack([]domain.PackerLine{line("prod-heavy", 2, 30000)}, c)

	assert.Empty(t, result.Unpackable)
	require.Len(t, result.Boxes, 2)
	for _, box := range result.Boxes {
		assert.True(t, box.OverweightExempt)
		assert.Equal(t, []domain.BoxContent{{ItemID: "prod-heavy", Quantity: 1}}, box.Contents)
		assert.InDelta(t, 30.0, box.WeightKg, 0.0001)
	}
}

func TestPack_SplitConservesQuantity(t *testing.T) {
	// 100 units at 400g is 40kg: two boxes, quantities summing to 100.
	result := Pack([]domain.PackerLine{line("prod-1", 100, 400)}, defaultConstraints())

	assert.Empty(t, result.Unpackable)
	require.Len(t, result.Boxes, 2)
	assert.Equal(t, 100, totalQuantity(result.Boxes, "prod-1"))
	for _, box := range result.Boxes {
		assert.LessOrEqual(t, box.WeightKg, 25.0)
	}
}

func TestPack_SplitRemainderDistribution(t *testing.T) {
	// 7 units at 9kg: two per box, four boxes, 2+2+2+1.
	result := Pack([]domain.PackerLine{line("prod-1", 7, 9000)}, defaultConstraints())

	require.Len(t, result.Boxes, 4)
	quantities := make([]int, 0, 4)
	for _, box := range result.Boxes {
		require.Len(t, box.Contents, 1)
		quantities = append(quantities, box.Contents[0].Quantity)
	}
	assert.Equal(t, []int{2, 2, 2, 1}, quantities)
}

func TestPack_ZeroWeightStillYieldsParcel(t *testing.T) {
	c := defaultConstraints()
	c.SatchelLimitKg = 0

	result := Pack([]domain.PackerLine{
		line("prod-1", 10, 0),
		line("prod-2", 5, 0),
	}, c)

	require.Len(t, result.Boxes, 1)
	assert.Equal(t, 0.0, result.Boxes[0].WeightKg)
	assert.Equal(t, 10, totalQuantity(result.Boxes, "prod-1"))
	assert.Equal(t, 5, totalQuantity(result.Boxes, "prod-2"))
}

func TestPack_MultipleLinesSharedBox(t *testing.T) {
	result := Pack([]domain.PackerLine{
		line("prod-a", 10, 1200), // 12kg
		line("prod-b", 10, 1000), // 10kg
		line("prod-c", 2, 2500),  // 5kg, overflows the first box
	}, defaultConstraints())

	assert.Empty(t, result.Unpackable)
	require.Len(t, result.Boxes, 2)
	assert.Equal(t, 10, totalQuantity(result.Boxes[:1], "prod-a"))
	assert.Equal(t, 10, totalQuantity(result.Boxes[:1], "prod-b"))
	assert.Equal(t, 2, totalQuantity(result.Boxes[1:], "prod-c"))
}

func TestPack_SafetyFactorShrinksCapacity(t *testing.T) {
	c := defaultConstraints()
	c.WeightSafetyFactor = 0.9 // effective 22.5kg

	result := Pack([]domain.PackerLine{line("prod-1", 20, 1150)}, c) // 23kg

	require.Len(t, result.Boxes, 2)
	assert.Equal(t, 20, totalQuantity(result.Boxes, "prod-1"))
}

func TestPack_Deterministic(t *testing.T) {
	lines := []domain.PackerLine{
		line("prod-c", 4, 3000),
		line("prod-a", 6, 2000), // ties with prod-b on total weight
		line("prod-b", 4, 3000),
		line("prod-d", 1, 800),
	}

	first := Pack(lines, defaultConstraints())
	for i := 0; i < 10; i++ {
		again := Pack(lines, defaultConstraints())
		assert.Equal(t, first, again)
	}

	// Equal-weight lines resolve by product id.
	require.NotEmpty(t, first.Boxes)
	assert.Equal(t, "prod-a", first.Boxes[0].Contents[0].ItemID)
}

func TestPack_BoxIDsAreSequential(t *testing.T) {
	result := Pack([]domain.PackerLine{
		line("prod-1", 100, 400),
		line("prod-2", 1, 500),
	}, defaultConstraints())

	require.Len(t, result.Boxes, 3)
	assert.Equal(t, "BOX-001", result.Boxes[0].BoxID)
	assert.Equal(t, "BOX-002", result.Boxes[1].BoxID)
	assert.Equal(t, "SAT-001", result.Boxes[2].BoxID)
}

func BenchmarkPack(b *testing.B) {
	lines := make([]domain.PackerLine, 200)
	for i := range lines {
		lines[i] = line(fmt.Sprintf("prod-%03d", i), 1+i%15, 100+i*13%4000)
	}
	c := defaultConstraints()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Pack(lines, c)
	}
}
