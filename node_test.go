package rtree

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func sampleLeaf() *Node {
	return &Node{
		ID:    5,
		Type:  TypeLeaf,
		Level: 0,
		Children: []*Child{
			{ID: 100, BBox: box(0, 0, 0, 1, 1, 1), Data: []byte{1, 2, 3}},
			{ID: 101, BBox: box(1, 0, 0, 2, 1, 1)},
		},
		BBox: box(0, 0, 0, 2, 1, 1),
	}
}

func TestNodeRoundTrip(t *testing.T) {
	n := sampleLeaf()
	got, err := DecodeNode(n.ID, n.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, n) {
		t.Errorf("got %+v want %+v", got, n)
	}
	if !got.IsLeaf() || got.IsIndex() {
		t.Errorf("leaf classified as leaf=%t index=%t", got.IsLeaf(), got.IsIndex())
	}
}

func TestNodeLayout(t *testing.T) {
	data := sampleLeaf().Encode()
	if want := 12 + (childMinSize + 3) + childMinSize + 48; len(data) != want {
		t.Fatalf("encoded length %d, want %d", len(data), want)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != uint32(TypeLeaf) {
		t.Errorf("type: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[8:12]); got != 2 {
		t.Errorf("child count: got %d", got)
	}
	// The first child's id follows its two corners.
	if got := binary.LittleEndian.Uint64(data[12+48 : 12+56]); got != 100 {
		t.Errorf("first child id: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[12+56 : 12+60]); got != 3 {
		t.Errorf("first child payload length: got %d", got)
	}
}

func TestNodeEmptyPayload(t *testing.T) {
	n := sampleLeaf()
	n.Children[0].Data = []byte{}
	got, err := DecodeNode(n.ID, n.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.Children[0].Data != nil {
		t.Errorf("zero length payload decoded as %#v, want nil", got.Children[0].Data)
	}
}

func TestNodeUnknownType(t *testing.T) {
	valid := sampleLeaf().Encode()
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"tag only", []byte{3, 0, 0, 0}},
		{"garbage", []byte{3, 0, 0, 0, 0xff, 0xff}},
		{"valid body", append([]byte{3, 0, 0, 0}, valid[4:]...)},
		{"zero", []byte{0, 0, 0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeNode(1, tc.data); !errors.Is(err, ErrUnknownNodeType) {
				t.Errorf("got %v want %v", err, ErrUnknownNodeType)
			}
		})
	}
}

func TestNodeTruncated(t *testing.T) {
	data := sampleLeaf().Encode()
	for n := 0; n < len(data); n++ {
		if _, err := DecodeNode(1, data[:n]); !errors.Is(err, ErrShortRead) {
			t.Fatalf("%d of %d bytes: got %v want %v", n, len(data), err, ErrShortRead)
		}
	}
}

func TestNodeHugeChildCount(t *testing.T) {
	data := sampleLeaf().Encode()
	binary.LittleEndian.PutUint32(data[8:12], 0xffffffff)
	if _, err := DecodeNode(1, data); !errors.Is(err, ErrShortRead) {
		t.Errorf("got %v want %v", err, ErrShortRead)
	}
}

func TestCollapsePreconditions(t *testing.T) {
	leaf := sampleLeaf()
	if err := leaf.Collapse(0, 1); !errors.Is(err, ErrPrecondition) {
		t.Errorf("collapse on a leaf: got %v want %v", err, ErrPrecondition)
	}

	inner := &Node{ID: 9, Type: TypeIndex, Level: 2, BBox: box(0, 0, 0, 1, 1, 1)}
	index := &Node{
		ID:    1,
		Type:  TypeIndex,
		Level: 1,
		Children: []*Child{
			{ID: 5, BBox: leaf.BBox, Node: leaf},
			{ID: 9, BBox: inner.BBox, Node: inner},
			{ID: 7, BBox: leaf.BBox},
		},
	}
	for _, tc := range []struct {
		name string
		i, j int
	}{
		{"index child", 0, 1},
		{"unloaded child", 0, 2},
		{"same child", 0, 0},
		{"out of range", 0, 3},
		{"negative", -1, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := index.Collapse(tc.i, tc.j); !errors.Is(err, ErrPrecondition) {
				t.Errorf("got %v want %v", err, ErrPrecondition)
			}
			if len(index.Children) != 3 {
				t.Errorf("failed collapse changed the node: %d children", len(index.Children))
			}
		})
	}
}

func TestCollapseKeepsOrder(t *testing.T) {
	leaves := make([]*Node, 4)
	index := &Node{ID: 1, Type: TypeIndex, Level: 1}
	for i := range leaves {
		bb := box(float64(i), 0, 0, float64(i)+1, 1, 1)
		leaves[i] = &Node{
			ID:       int64(10 + i),
			Type:     TypeLeaf,
			Children: []*Child{{ID: int64(100 + i), BBox: bb}},
			BBox:     bb,
		}
		index.Children = append(index.Children, &Child{ID: leaves[i].ID, BBox: bb, Node: leaves[i]})
	}
	index.BBox = box(0, 0, 0, 4, 1, 1)

	// Merge child 1 into child 3; child 2 moves down to position 1.
	if err := index.Collapse(3, 1); err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, c := range index.Children {
		ids = append(ids, c.ID)
	}
	if want := []int64{10, 12, 13}; !reflect.DeepEqual(ids, want) {
		t.Errorf("children: got %v want %v", ids, want)
	}
	var merged []int64
	for _, c := range leaves[3].Children {
		merged = append(merged, c.ID)
	}
	if want := []int64{103, 101}; !reflect.DeepEqual(merged, want) {
		t.Errorf("merged leaf entries: got %v want %v", merged, want)
	}
	if want := box(1, 0, 0, 4, 1, 1); index.Children[2].BBox != want || leaves[3].BBox != want {
		t.Errorf("merged box: got %+v and %+v, want %+v", index.Children[2].BBox, leaves[3].BBox, want)
	}
}

func TestNodeString(t *testing.T) {
	n := sampleLeaf()
	if got, want := n.String(), "id=  5 nc=  2 (  2.0   1.0   1.0)"; got != want {
		t.Errorf("node: got %q want %q", got, want)
	}
	if got, want := n.Children[0].String(), "leaf  100: (  1.0   1.0   1.0) + 3 bytes"; got != want {
		t.Errorf("child: got %q want %q", got, want)
	}
	if got, want := n.Children[1].String(), "leaf  101: (  1.0   1.0   1.0)"; got != want {
		t.Errorf("child: got %q want %q", got, want)
	}
}
