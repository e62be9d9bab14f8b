package rtree

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRead is returned when a page ends in the middle of a field.
	ErrShortRead = errors.New("short read")

	// ErrInvalidPage is returned for a page id that is absent, deleted, or
	// referenced more than once from the tree.
	ErrInvalidPage = errors.New("invalid page")

	// ErrUnknownNodeType is returned when a node page has a type tag other
	// than index or leaf.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnsupportedDimension is returned for headers of trees that are not
	// three dimensional.
	ErrUnsupportedDimension = errors.New("unsupported dimension")

	// ErrPrecondition is returned when a structural edit is applied to the
	// wrong kind of node.
	ErrPrecondition = errors.New("precondition violated")

	// ErrCannotSplit is returned by Resplit when the rebuilt subtree fits in
	// a single leaf.
	ErrCannotSplit = errors.New("cannot split")

	// ErrDegenerateBox is returned when a union produces a box with no
	// volume.
	ErrDegenerateBox = errors.New("degenerate bounding box")
)

// PageError records which page failed to load or decode.
type PageError struct {
	Page int64
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
