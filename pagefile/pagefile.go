// Package pagefile reads and writes the pages of a MemStore as a single
// file.
//
// Layout, little-endian:
//
//	[4]byte magic "SIDX"
//	u32     version
//	u64     page count
//	per page, in id order:
//	  u8    state (0 absent, 1 live, 2 deleted)
//	  u32   length
//	  u8[length] bytes
package pagefile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tiltbrush/rtree"
	"github.com/tiltbrush/rtree/internal/mmap"
)

const (
	// Magic identifies page files.
	Magic = "SIDX"

	// Version of the file format.
	Version uint32 = 1

	headerSize     = 4 + 4 + 8
	pagePrefixSize = 1 + 4
)

// ErrFormat is returned for files that are not valid page files.
var ErrFormat = errors.New("pagefile: invalid format")

// Open reads the page file at path into a new MemStore.
func Open(path string) (*rtree.MemStore, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagefile: %w", err)
	}
	defer m.Close()

	store, err := Decode(m.Data())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Decode parses the contents of a page file. Page bytes are copied, so buf
// may be released afterwards.
func Decode(buf []byte) (*rtree.MemStore, error) {
	if len(buf) < headerSize || string(buf[:4]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, v)
	}
	count := binary.LittleEndian.Uint64(buf[8:16])
	off := headerSize

	store := rtree.NewMemStore()
	var deleted []int64
	for id := int64(0); uint64(id) < count; id++ {
		if len(buf)-off < pagePrefixSize {
			return nil, fmt.Errorf("%w: truncated at page %d", ErrFormat, id)
		}
		state := rtree.PageState(buf[off])
		length := int(binary.LittleEndian.Uint32(buf[off+1:]))
		off += pagePrefixSize
		if len(buf)-off < length {
			return nil, fmt.Errorf("%w: page %d needs %d bytes, %d left", ErrFormat, id, length, len(buf)-off)
		}

		switch state {
		case rtree.PageAbsent:
		case rtree.PageLive, rtree.PageDeleted:
			if err := store.Put(id, buf[off:off+length]); err != nil {
				return nil, err
			}
			if state == rtree.PageDeleted {
				deleted = append(deleted, id)
			}
		default:
			return nil, fmt.Errorf("%w: page %d has state %d", ErrFormat, id, state)
		}
		off += length
	}
	if off != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrFormat, len(buf)-off)
	}

	for _, id := range deleted {
		if err := store.Delete(id); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Save writes every page of store to path. The file is written beside path
// and renamed into place, so readers never see a partial file.
func Save(path string, store *rtree.MemStore) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	var hdr [headerSize]byte
	copy(hdr[:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], Version)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(store.Len()))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}

	err = store.Pages(func(id int64, state rtree.PageState, data []byte) error {
		var prefix [pagePrefixSize]byte
		prefix[0] = byte(state)
		binary.LittleEndian.PutUint32(prefix[1:], uint32(len(data)))
		if _, err := w.Write(prefix[:]); err != nil {
			return err
		}
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("pagefile: %w", err)
	}
	return nil
}
