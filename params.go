package rtree

import (
	"errors"
	"math"
)

// Default node capacities used for stroke bounds.
const (
	DefaultIndexCapacity = 80
	DefaultLeafCapacity  = 410
)

// Params controls how a tree is packed. The capacities and fill factor
// shape the tree; the remaining fields are recorded in the header for
// compatibility with the native library and are not otherwise used.
type Params struct {
	Variant                  Variant
	FillFactor               float64
	IndexCapacity            uint32
	LeafCapacity             uint32
	NearMinimumOverlapFactor uint32
	SplitDistributionFactor  float64
	ReinsertFactor           float64
	TightMBRs                bool
}

// DefaultParams returns the parameters used for stroke bounds.
func DefaultParams() Params {
	return Params{
		Variant:                  VariantRStar,
		FillFactor:               0.7,
		IndexCapacity:            DefaultIndexCapacity,
		LeafCapacity:             DefaultLeafCapacity,
		NearMinimumOverlapFactor: 32,
		SplitDistributionFactor:  0.4,
		ReinsertFactor:           0.3,
		TightMBRs:                true,
	}
}

// WithLeafMultiplier scales the leaf capacity, truncating towards zero.
// Capacities past the largest the header can hold are clamped to it, and a
// multiplier that is not positive gives a capacity of zero, which packing
// rejects.
func (p Params) WithLeafMultiplier(m float64) Params {
	c := float64(p.LeafCapacity) * m
	switch {
	case !(c > 0):
		p.LeafCapacity = 0
	case c >= math.MaxUint32:
		p.LeafCapacity = math.MaxUint32
	default:
		p.LeafCapacity = uint32(c)
	}
	return p
}

func paramsFromHeader(h *Header) Params {
	return Params{
		Variant:                  h.Variant,
		FillFactor:               h.FillFactor,
		IndexCapacity:            h.IndexCapacity,
		LeafCapacity:             h.LeafCapacity,
		NearMinimumOverlapFactor: h.NearMinimumOverlapFactor,
		SplitDistributionFactor:  h.SplitDistributionFactor,
		ReinsertFactor:           h.ReinsertFactor,
		TightMBRs:                h.TightMBRs,
	}
}

func (p Params) validate() error {
	if p.LeafCapacity < 1 {
		return errors.New("leaf capacity must be at least 1")
	}
	if p.IndexCapacity < 2 {
		return errors.New("index capacity must be at least 2")
	}
	if !(p.FillFactor > 0 && p.FillFactor <= 1) {
		return errors.New("fill factor must be in (0, 1]")
	}
	return nil
}

// leafLoad and indexLoad are the number of entries the packer puts in each
// node. Index nodes need at least two so that each level shrinks.
func (p Params) leafLoad() int {
	return max(1, int(math.Floor(float64(p.LeafCapacity)*p.FillFactor)))
}

func (p Params) indexLoad() int {
	return max(2, int(math.Floor(float64(p.IndexCapacity)*p.FillFactor)))
}
