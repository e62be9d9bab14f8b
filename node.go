package rtree

import (
	"fmt"
	"strings"
)

// NodeType is the tag at the start of every node page.
type NodeType uint32

const (
	TypeIndex NodeType = 1
	TypeLeaf  NodeType = 2
)

// childMinSize is the encoded size of a child with no payload.
const childMinSize = 6*8 + 8 + 4

// Node is a node in an R-Tree. Nodes can either be leaf nodes holding entries
// for terminal items, or index nodes holding entries for more nodes.
type Node struct {
	// ID is the page the node was decoded from. Nodes produced by Resplit
	// that have not been written anywhere yet carry negative ids.
	ID       int64
	Type     NodeType
	Level    uint32
	Children []*Child

	// BBox is the node's own box as stored on disk. It is only recomputed
	// by the structural edits.
	BBox BBox
}

// Child is an entry under a node, leading either to terminal items, or more
// nodes.
type Child struct {
	BBox BBox

	// ID is a page id under an index node. Under a leaf it is whatever the
	// caller stored, such as a stroke number.
	ID int64

	// Data is the opaque payload of a leaf entry, or nil if it has none.
	Data []byte

	// Node is the decoded child of an index node. It is nil for leaf
	// entries.
	Node *Node
}

// IsIndex reports whether the node holds entries for more nodes.
func (n *Node) IsIndex() bool { return n.Type == TypeIndex }

// IsLeaf reports whether the node holds entries for terminal items.
func (n *Node) IsLeaf() bool { return n.Type == TypeLeaf }

// DecodeNode decodes the node stored in page id. Children of index nodes
// are not followed; Load does that.
func DecodeNode(id int64, data []byte) (*Node, error) {
	r := newReader(data)
	var typ uint32
	if err := r.read(&typ); err != nil {
		return nil, err
	}
	n := &Node{ID: id, Type: NodeType(typ)}
	if !n.IsIndex() && !n.IsLeaf() {
		return nil, fmt.Errorf("type %d: %w", typ, ErrUnknownNodeType)
	}

	var count uint32
	if err := r.read(&n.Level, &count); err != nil {
		return nil, err
	}
	if need := int(count) * childMinSize; r.remaining() < need {
		return nil, fmt.Errorf("%d children need at least %d bytes, %d left: %w",
			count, need, r.remaining(), ErrShortRead)
	}

	n.Children = make([]*Child, count)
	for i := range n.Children {
		c := new(Child)
		var (
			childID uint64
			length  uint32
			err     error
		)
		if c.BBox, err = r.readBBox(); err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		if err := r.read(&childID, &length); err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		c.ID = int64(childID)
		if length > 0 {
			if c.Data, err = r.readBytes(int(length)); err != nil {
				return nil, fmt.Errorf("child %d payload: %w", i, err)
			}
		}
		n.Children[i] = c
	}

	var err error
	if n.BBox, err = r.readBBox(); err != nil {
		return nil, fmt.Errorf("node bounds: %w", err)
	}
	return n, nil
}

// Encode produces the on-disk form of the node. Child nodes are referenced
// by Child.ID; Child.Node is not consulted.
func (n *Node) Encode() []byte {
	var w writer
	w.write(uint32(n.Type), n.Level, uint32(len(n.Children)))
	for _, c := range n.Children {
		w.writeBBox(c.BBox)
		w.write(uint64(c.ID), uint32(len(c.Data)))
		w.writeBytes(c.Data)
	}
	w.writeBBox(n.BBox)
	return w.buf
}

// Collapse merges the leaf under child j into the leaf under child i, then
// removes child j. Child i's box, and its leaf's box, become the union of
// both. Nothing above n is adjusted.
func (n *Node) Collapse(i, j int) error {
	if !n.IsIndex() {
		return fmt.Errorf("collapse node %d: not an index node: %w", n.ID, ErrPrecondition)
	}
	if i == j || i < 0 || j < 0 || i >= len(n.Children) || j >= len(n.Children) {
		return fmt.Errorf("collapse node %d: bad children %d and %d of %d: %w",
			n.ID, i, j, len(n.Children), ErrPrecondition)
	}
	c1, c2 := n.Children[i], n.Children[j]
	for _, c := range []*Child{c1, c2} {
		if c.Node == nil || !c.Node.IsLeaf() {
			return fmt.Errorf("collapse node %d: child %d is not a leaf: %w", n.ID, c.ID, ErrPrecondition)
		}
	}

	bb, err := Union(c1.BBox, c2.BBox)
	if err != nil {
		return fmt.Errorf("collapse node %d: %w", n.ID, err)
	}
	c1.BBox = bb
	c1.Node.BBox = bb
	c1.Node.Children = append(c1.Node.Children, c2.Node.Children...)
	n.Children = append(n.Children[:j], n.Children[j+1:]...)
	return nil
}

func (n *Node) String() string {
	return fmt.Sprintf("id=%3d nc=%3d %v", n.ID, len(n.Children), n.BBox)
}

func (c *Child) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "leaf %4d: %v", c.ID, c.BBox)
	if c.Data != nil {
		fmt.Fprintf(&sb, " + %d bytes", len(c.Data))
	}
	return sb.String()
}
