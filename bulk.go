package rtree

import (
	"fmt"
	"iter"
	"math"
	"sort"
)

// Item is a terminal item to be bulk loaded.
type Item struct {
	ID   int64
	BBox BBox
	Data []byte
}

// BulkLoad packs items into a new in-memory tree using the default
// parameters, with the leaf capacity scaled by leafMultiplier.
func BulkLoad(items iter.Seq[Item], leafMultiplier float64) (*Tree, error) {
	return BulkLoadWith(items, DefaultParams().WithLeafMultiplier(leafMultiplier))
}

// BulkLoadWith packs items into a new in-memory tree. The pages are decoded
// back with Load, so a bulk loaded tree is held to exactly the same rules as
// one read from a file.
func BulkLoadWith(items iter.Seq[Item], p Params) (*Tree, error) {
	store := NewMemStore()
	headerID, err := Pack(store, items, p)
	if err != nil {
		return nil, err
	}
	return Load(store, headerID)
}

// Pack bulk loads items into store, using sort-tile-recursive packing, and
// returns the id of the header page. Pages are allocated in the same order
// as the native library: a placeholder root first, then the header, then the
// packed nodes from the leaves up. The placeholder is deleted once the real
// root is known, unless there is nothing to pack.
func Pack(store Storage, items iter.Seq[Item], p Params) (int64, error) {
	if err := p.validate(); err != nil {
		return 0, fmt.Errorf("pack: %w", err)
	}

	var entries []*Child
	for item := range items {
		entries = append(entries, &Child{BBox: item.BBox, ID: item.ID, Data: item.Data})
	}

	placeholder := &Node{Type: TypeLeaf, BBox: emptyBBox()}
	placeholderID, err := store.Store(NewPage, placeholder.Encode())
	if err != nil {
		return 0, fmt.Errorf("pack: store root: %w", err)
	}
	h := &Header{
		RootID:                   placeholderID,
		Variant:                  p.Variant,
		FillFactor:               p.FillFactor,
		IndexCapacity:            p.IndexCapacity,
		LeafCapacity:             p.LeafCapacity,
		NearMinimumOverlapFactor: p.NearMinimumOverlapFactor,
		SplitDistributionFactor:  p.SplitDistributionFactor,
		ReinsertFactor:           p.ReinsertFactor,
		Dimension:                3,
		TightMBRs:                p.TightMBRs,
		NodeCount:                1,
		TreeHeight:               1,
		NodesInLevel:             []uint32{1},
	}
	headerID, err := store.Store(NewPage, h.Encode())
	if err != nil {
		return 0, fmt.Errorf("pack: store header: %w", err)
	}
	if len(entries) == 0 {
		return headerID, nil
	}

	h.DataCount = uint64(len(entries))
	h.NodeCount = 0
	h.NodesInLevel = nil

	load := p.leafLoad()
	typ := TypeLeaf
	for level := uint32(0); ; level++ {
		var parents []*Child
		for _, group := range tile(entries, load) {
			n := &Node{Type: typ, Level: level, Children: group, BBox: group[0].BBox}
			for _, c := range group[1:] {
				n.BBox = combine(n.BBox, c.BBox)
			}
			id, err := store.Store(NewPage, n.Encode())
			if err != nil {
				return 0, fmt.Errorf("pack: store level %d node: %w", level, err)
			}
			parents = append(parents, &Child{BBox: n.BBox, ID: id})
		}
		h.NodeCount += uint32(len(parents))
		h.NodesInLevel = append(h.NodesInLevel, uint32(len(parents)))

		if len(parents) == 1 {
			h.RootID = parents[0].ID
			break
		}
		entries = parents
		load = p.indexLoad()
		typ = TypeIndex
	}
	h.TreeHeight = uint32(len(h.NodesInLevel))

	if err := store.Delete(placeholderID); err != nil {
		return 0, fmt.Errorf("pack: delete placeholder root: %w", err)
	}
	if _, err := store.Store(headerID, h.Encode()); err != nil {
		return 0, fmt.Errorf("pack: store header: %w", err)
	}
	return headerID, nil
}

// tile groups entries into nodes of at most load entries each. The entries
// are cut into slabs along x, each slab into runs along y, and each run into
// nodes along z, so that every node covers a compact region.
func tile(entries []*Child, load int) [][]*Child {
	var groups [][]*Child
	var recurse func(entries []*Child, axis int)
	recurse = func(entries []*Child, axis int) {
		sort.SliceStable(entries, func(i, j int) bool {
			return center(entries[i].BBox, axis) < center(entries[j].BBox, axis)
		})

		nodes := (len(entries) + load - 1) / load
		if axis == 2 || nodes <= 1 {
			for len(entries) > 0 {
				n := min(load, len(entries))
				groups = append(groups, entries[:n:n])
				entries = entries[n:]
			}
			return
		}

		// Split the remaining dimensions evenly between the slabs.
		dims := float64(3 - axis)
		slabs := int(math.Ceil(math.Pow(float64(nodes), 1/dims) - 1e-9))
		slabSize := load * ((nodes + slabs - 1) / slabs)
		for len(entries) > 0 {
			n := min(slabSize, len(entries))
			recurse(entries[:n:n], axis+1)
			entries = entries[n:]
		}
	}
	recurse(entries, 0)
	return groups
}
