package rtree

import "fmt"

// Variant is the split algorithm the tree was built with.
type Variant uint32

const (
	VariantLinear Variant = iota
	VariantQuadratic
	VariantRStar
)

// Header holds the global parameters and statistics of a stored tree.
type Header struct {
	RootID                   int64
	Variant                  Variant
	FillFactor               float64
	IndexCapacity            uint32
	LeafCapacity             uint32
	NearMinimumOverlapFactor uint32
	SplitDistributionFactor  float64
	ReinsertFactor           float64
	Dimension                uint32
	TightMBRs                bool
	NodeCount                uint32
	DataCount                uint64
	TreeHeight               uint32
	NodesInLevel             []uint32
}

// DecodeHeader decodes a header page. A header is only returned if every
// field, including the full per-level node counts, was present.
func DecodeHeader(data []byte) (*Header, error) {
	var (
		h       Header
		rootID  uint64
		variant uint32
	)
	r := newReader(data)
	if err := r.read(
		&rootID,
		&variant,
		&h.FillFactor,
		&h.IndexCapacity,
		&h.LeafCapacity,
		&h.NearMinimumOverlapFactor,
		&h.SplitDistributionFactor,
		&h.ReinsertFactor,
		&h.Dimension,
		&h.TightMBRs,
		&h.NodeCount,
		&h.DataCount,
		&h.TreeHeight,
	); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if h.Dimension != 3 {
		return nil, fmt.Errorf("header: dimension %d: %w", h.Dimension, ErrUnsupportedDimension)
	}
	// Check the length up front so a corrupt height can't drive a huge
	// allocation.
	if need := 4 * int(h.TreeHeight); r.remaining() < need {
		return nil, fmt.Errorf("header: %d levels need %d bytes, %d left: %w",
			h.TreeHeight, need, r.remaining(), ErrShortRead)
	}
	h.NodesInLevel = make([]uint32, h.TreeHeight)
	if err := r.read(h.NodesInLevel); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	h.RootID = int64(rootID)
	h.Variant = Variant(variant)
	return &h, nil
}

// Encode produces the on-disk form of the header.
func (h *Header) Encode() []byte {
	var w writer
	w.write(
		uint64(h.RootID),
		uint32(h.Variant),
		h.FillFactor,
		h.IndexCapacity,
		h.LeafCapacity,
		h.NearMinimumOverlapFactor,
		h.SplitDistributionFactor,
		h.ReinsertFactor,
		h.Dimension,
		h.TightMBRs,
		h.NodeCount,
		h.DataCount,
		h.TreeHeight,
	)
	// One count per level; levels missing from NodesInLevel are written as
	// zero.
	if h.TreeHeight > 0 {
		levels := make([]uint32, h.TreeHeight)
		copy(levels, h.NodesInLevel)
		w.write(levels)
	}
	return w.buf
}

func (h *Header) String() string {
	return fmt.Sprintf("RTree variant=%d  index nodes=%d  data items=%d  height=%d",
		h.Variant, h.NodeCount, h.DataCount, h.TreeHeight)
}
