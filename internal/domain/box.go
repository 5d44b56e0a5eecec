package domain

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// BoxKind distinguishes full boxes from satchels. A satchel is a small-parcel
// allocation bounded by a lower weight threshold than a box.
type BoxKind string

const (
	BoxKindBox     BoxKind = "box"
	BoxKindSatchel BoxKind = "satchel"
)

// BoxContent is one item line inside a box.
type BoxContent struct {
	ItemID   string `bson:"itemId" json:"itemId"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// Box is one parcel in the computed manifest.
type Box struct {
	BoxID       string       `bson:"boxId" json:"boxId"`
	Kind        BoxKind      `bson:"kind" json:"kind"`
	MaxWeightKg float64      `bson:"maxWeightKg" json:"maxWeightKg"`
	MaxVolumeM3 float64      `bson:"maxVolumeM3,omitempty" json:"maxVolumeM3,omitempty"`
	Contents    []BoxContent `bson:"contents" json:"contents"`
	WeightKg    float64      `bson:"weightKg" json:"weightKg"`
	VolumeM3    float64      `bson:"volumeM3,omitempty" json:"volumeM3,omitempty"`

	// OverweightExempt marks the single permitted weight-limit exception: an
	// oversized unsplittable unit force-placed by the operator.
	OverweightExempt bool `bson:"overweightExempt,omitempty" json:"overweightExempt,omitempty"`
}

// UnpackableLine reports an item whose single unit exceeds the box weight
// limit. It is a per-line outcome; other lines pack normally.
type UnpackableLine struct {
	ProductID   string  `bson:"productId" json:"productId"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	UnitWeightG int     `bson:"unitWeightG" json:"unitWeightG"`
	MaxWeightKg float64 `bson:"maxWeightKg" json:"maxWeightKg"`
}

// ManifestSummary condenses a box list for rate requests and cache keys.
type ManifestSummary struct {
	BoxCount      int     `json:"boxCount"`
	SatchelCount  int     `json:"satchelCount"`
	TotalWeightKg float64 `json:"totalWeightKg"`
	TotalVolumeM3 float64 `json:"totalVolumeM3,omitempty"`
}

// SummarizeBoxes builds a ManifestSummary from a packed box list.
func SummarizeBoxes(boxes []Box) ManifestSummary {
	s := ManifestSummary{}
	for _, b := range boxes {
		if b.Kind == BoxKindSatchel {
			s.SatchelCount++
		} else {
			s.BoxCount++
		}
		s.TotalWeightKg += b.WeightKg
		s.TotalVolumeM3 += b.VolumeM3
	}
	return s
}

// ManifestHash produces a stable fingerprint of the manifest-affecting parts
// of a box list. Used to key the quote cache: any edit that changes parcel
// count or weights changes the hash and so invalidates cached quotes.
func ManifestHash(boxes []Box) string {
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		parts = append(parts, fmt.Sprintf("%s:%07.3f", b.Kind, b.WeightKg))
	}
	sort.Strings(parts)

	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
