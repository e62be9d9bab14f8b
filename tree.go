package rtree

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Tree is a stored R-Tree decoded into memory. Edits made through Collapse
// and Resplit only change the in-memory nodes; writing them back is up to
// the caller.
//
// A Tree is not safe for concurrent use. Read-only traversals may run
// together, but never alongside an edit.
type Tree struct {
	Header *Header
	Root   *Node

	// Nodes holds every node reachable from Root, keyed by page id.
	Nodes map[int64]*Node

	// Params are the packing parameters from the header. Resplit packs
	// with them.
	Params Params

	// lastPendingID is the most recent synthetic id handed out by Resplit.
	lastPendingID int64
}

// Load decodes the header in page headerID and every node reachable from
// its root. The pages must form a tree: a page referenced twice is
// ErrInvalidPage.
func Load(store Storage, headerID int64) (*Tree, error) {
	data, err := loadPage(store, headerID)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, &PageError{Page: headerID, Err: err}
	}

	t := &Tree{
		Header: h,
		Nodes:  make(map[int64]*Node),
		Params: paramsFromHeader(h),
	}

	type work struct {
		id     int64
		parent *Child
	}
	stack := []work{{id: h.RootID}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := t.Nodes[w.id]; ok {
			return nil, &PageError{Page: w.id, Err: fmt.Errorf("referenced more than once: %w", ErrInvalidPage)}
		}
		data, err := loadPage(store, w.id)
		if err != nil {
			return nil, err
		}
		n, err := DecodeNode(w.id, data)
		if err != nil {
			return nil, &PageError{Page: w.id, Err: err}
		}
		t.Nodes[w.id] = n
		if w.parent == nil {
			t.Root = n
		} else {
			w.parent.Node = n
		}

		if n.IsIndex() {
			// Reverse so that children are decoded in order.
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, work{id: n.Children[i].ID, parent: n.Children[i]})
			}
		}
	}
	return t, nil
}

func loadPage(store Storage, id int64) ([]byte, error) {
	data, err := store.Load(id)
	if err != nil {
		var pe *PageError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PageError{Page: id, Err: err}
	}
	return data, nil
}

// Traverse yields every node breadth first, starting at the root. Each call
// starts a fresh traversal.
func (t *Tree) Traverse() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if t.Root == nil {
			return
		}
		queue := []*Node{t.Root}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if !yield(n) {
				return
			}
			if n.IsIndex() {
				for _, c := range n.Children {
					if c.Node != nil {
						queue = append(queue, c.Node)
					}
				}
			}
		}
	}
}

// Leaves returns the entries of every leaf, in breadth first order.
func (t *Tree) Leaves() []*Child {
	var out []*Child
	for n := range t.Traverse() {
		if n.IsLeaf() {
			out = append(out, n.Children...)
		}
	}
	return out
}

// Stop is a special sentinel error that can be used to stop a search
// operation without any error.
var Stop = errors.New("stop")

// Search looks for any leaf entries in the tree that overlap with the given
// bounding box. The callback is called with each entry found. If the
// callback returns an error the search ends early and the error is
// returned, except for Stop, in which case nil is returned.
func (t *Tree) Search(bb BBox, callback func(*Child) error) error {
	if t.Root == nil {
		return nil
	}
	var recurse func(*Node) error
	recurse = func(n *Node) error {
		for _, c := range n.Children {
			if !overlap(c.BBox, bb) {
				continue
			}
			var err error
			if n.IsLeaf() {
				err = callback(c)
			} else if c.Node != nil {
				err = recurse(c.Node)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	err := recurse(t.Root)
	if errors.Is(err, Stop) {
		return nil
	}
	return err
}

// Check verifies the structure of the tree: each node's box is the union of
// its children's boxes, each index entry's box is its child's box, and
// levels decrease by one towards the leaves.
func (t *Tree) Check() error {
	for n := range t.Traverse() {
		if len(n.Children) > 0 {
			union := n.Children[0].BBox
			for _, c := range n.Children[1:] {
				union = combine(union, c.BBox)
			}
			if union != n.BBox {
				return fmt.Errorf("node %d: stored box %+v, children cover %+v", n.ID, n.BBox, union)
			}
		}
		if !n.IsIndex() {
			continue
		}
		for i, c := range n.Children {
			switch {
			case c.Node == nil:
				return fmt.Errorf("node %d: entry %d not loaded", n.ID, i)
			case c.BBox != c.Node.BBox:
				return fmt.Errorf("node %d: entry %d box %+v, child box %+v", n.ID, i, c.BBox, c.Node.BBox)
			case c.Node.Level+1 != n.Level:
				return fmt.Errorf("node %d: level %d has child %d at level %d", n.ID, n.Level, c.Node.ID, c.Node.Level)
			}
		}
	}
	return nil
}

// Collapse merges the leaves under children i and j of n, as Node.Collapse
// does, and forgets the emptied leaf.
func (t *Tree) Collapse(n *Node, i, j int) error {
	var gone *Node
	if j >= 0 && j < len(n.Children) {
		gone = n.Children[j].Node
	}
	if err := n.Collapse(i, j); err != nil {
		return err
	}
	if gone != nil && t.Nodes[gone.ID] == gone {
		delete(t.Nodes, gone.ID)
	}
	return nil
}

// Resplit packs every leaf entry under n into a new, denser subtree whose
// leaves hold up to multiplier times the tree's leaf capacity. It returns
// the index entries that point at the new leaves, ready to be spliced into
// a parent. The new leaves have not been written anywhere, so each one and
// the entry pointing at it get a fresh negative id. Leaf entries keep their
// ids.
//
// If everything fits in a single leaf there is nothing to gain and
// ErrCannotSplit is returned.
func (t *Tree) Resplit(n *Node, multiplier float64) ([]*Child, error) {
	if !(multiplier > 0) {
		return nil, fmt.Errorf("resplit node %d: multiplier %v: %w", n.ID, multiplier, ErrPrecondition)
	}
	var items []Item
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.IsLeaf() {
			for _, c := range cur.Children {
				items = append(items, Item{ID: c.ID, BBox: c.BBox, Data: c.Data})
			}
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			c := cur.Children[i]
			if c.Node == nil {
				return nil, fmt.Errorf("resplit node %d: entry %d of node %d not loaded: %w", n.ID, c.ID, cur.ID, ErrPrecondition)
			}
			stack = append(stack, c.Node)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("resplit node %d: no entries: %w", n.ID, ErrPrecondition)
	}

	fresh, err := BulkLoadWith(slices.Values(items), t.Params.WithLeafMultiplier(multiplier))
	if err != nil {
		return nil, fmt.Errorf("resplit node %d: %w", n.ID, err)
	}
	if fresh.Root.IsLeaf() {
		return nil, fmt.Errorf("resplit node %d: %d entries fit in one leaf: %w", n.ID, len(items), ErrCannotSplit)
	}

	var out []*Child
	for node := range fresh.Traverse() {
		if !node.IsIndex() {
			continue
		}
		for _, c := range node.Children {
			if c.Node.IsLeaf() {
				c.ID = t.nextPendingID()
				c.Node.ID = c.ID
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (t *Tree) nextPendingID() int64 {
	t.lastPendingID--
	return t.lastPendingID
}
