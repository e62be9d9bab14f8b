package rtree

import (
	"encoding/binary"
	"fmt"
)

// reader extracts little-endian fixed width fields from a page, front to
// back. There is no way to seek; the page layouts are flat.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

// read decodes each field in turn. Fields must be pointers to fixed size
// values (uint8, uint32, uint64, float64, bool or arrays of them).
func (r *reader) read(fields ...any) error {
	for _, f := range fields {
		n := binary.Size(f)
		if n < 0 {
			panic(fmt.Sprintf("rtree: cannot decode into %T", f))
		}
		if r.remaining() < n {
			return fmt.Errorf("%d bytes needed at offset %d, %d left: %w",
				n, r.off, r.remaining(), ErrShortRead)
		}
		if _, err := binary.Decode(r.buf[r.off:r.off+n], binary.LittleEndian, f); err != nil {
			return err
		}
		r.off += n
	}
	return nil
}

// readBBox reads the min corner followed by the max corner.
func (r *reader) readBBox() (BBox, error) {
	var bb BBox
	err := r.read(&bb.Min, &bb.Max)
	return bb, err
}

// readBytes returns a copy of the next n bytes.
func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%d bytes needed at offset %d, %d left: %w",
			n, r.off, r.remaining(), ErrShortRead)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += n
	return out, nil
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// writer is the inverse of reader.
type writer struct {
	buf []byte
}

func (w *writer) write(fields ...any) {
	for _, f := range fields {
		var err error
		w.buf, err = binary.Append(w.buf, binary.LittleEndian, f)
		if err != nil {
			panic(fmt.Sprintf("rtree: cannot encode %T: %v", f, err))
		}
	}
}

func (w *writer) writeBBox(bb BBox) {
	w.write(bb.Min, bb.Max)
}

func (w *writer) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}
