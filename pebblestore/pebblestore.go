// Package pebblestore keeps tree pages in a Pebble database, with a
// ristretto cache in front of page reads.
//
// Pages keep the in-memory store's rules: ids are dense and allocated in
// order, and deleted pages stay behind as tombstones.
package pebblestore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/tiltbrush/rtree"
)

// Options configures a Store.
type Options struct {
	// CacheSize is the maximum number of page bytes held in the read cache.
	// Zero disables the cache.
	CacheSize int64

	// Sync makes every write durable before it returns.
	Sync bool

	// Pebble is passed to pebble.Open. Nil uses Pebble's defaults.
	Pebble *pebble.Options
}

// DefaultOptions returns a 16 MB cache and unsynced writes.
func DefaultOptions() Options {
	return Options{CacheSize: 16 << 20}
}

// Store is an rtree.Storage backed by Pebble.
type Store struct {
	db    *pebble.DB
	cache *ristretto.Cache[int64, []byte]
	write *pebble.WriteOptions
	next  int64
}

var _ rtree.Storage = (*Store)(nil)

// Open opens (or creates) a store in the directory dir.
func Open(dir string, opts Options) (*Store, error) {
	popts := opts.Pebble
	if popts == nil {
		popts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open: %w", err)
	}

	s := &Store{db: db, write: pebble.NoSync}
	if opts.Sync {
		s.write = pebble.Sync
	}
	if opts.CacheSize > 0 {
		s.cache, err = ristretto.NewCache(&ristretto.Config[int64, []byte]{
			// Ten counters per page that fits, assuming 4 KB pages.
			NumCounters: max(1000, 10*opts.CacheSize/4096),
			MaxCost:     opts.CacheSize,
			BufferItems: 64,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("pebblestore: cache: %w", err)
		}
	}

	if s.next, err = s.scanNext(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// scanNext finds the id after the highest page in the database.
func (s *Store) scanNext() (int64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, fmt.Errorf("pebblestore: scan: %w", err)
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, nil
	}
	k := iter.Key()
	if len(k) != 8 {
		return 0, fmt.Errorf("pebblestore: unexpected key length %d", len(k))
	}
	return int64(binary.BigEndian.Uint64(k)) + 1, nil
}

// Close closes the cache and the database.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

// Len returns the number of page ids in use, including deleted ones.
func (s *Store) Len() int64 {
	return s.next
}

// Load implements rtree.Storage.
func (s *Store) Load(id int64) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(id); ok {
			return data, nil
		}
	}
	state, data, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if state != rtree.PageLive {
		return nil, &rtree.PageError{Page: id, Err: rtree.ErrInvalidPage}
	}
	if s.cache != nil {
		s.cache.Set(id, data, int64(len(data)))
	}
	return data, nil
}

// Store implements rtree.Storage.
func (s *Store) Store(id int64, data []byte) (int64, error) {
	if id == rtree.NewPage {
		id = s.next
	} else {
		state, _, err := s.get(id)
		if err != nil {
			return 0, err
		}
		if state == rtree.PageAbsent {
			return 0, &rtree.PageError{Page: id, Err: rtree.ErrInvalidPage}
		}
	}
	if err := s.put(id, rtree.PageLive, data); err != nil {
		return 0, err
	}
	if id >= s.next {
		s.next = id + 1
	}
	return id, nil
}

// Delete implements rtree.Storage.
func (s *Store) Delete(id int64) error {
	state, _, err := s.get(id)
	if err != nil {
		return err
	}
	if state != rtree.PageLive {
		return &rtree.PageError{Page: id, Err: rtree.ErrInvalidPage}
	}
	return s.put(id, rtree.PageDeleted, nil)
}

// Import copies every page of src into an empty store, keeping page ids.
func (s *Store) Import(src *rtree.MemStore) error {
	if s.next != 0 {
		return errors.New("pebblestore: import into a non-empty store")
	}
	b := s.db.NewBatch()
	defer b.Close()
	err := src.Pages(func(id int64, state rtree.PageState, data []byte) error {
		if state == rtree.PageAbsent {
			return nil
		}
		return b.Set(encodeKey(id), encodeValue(state, data), nil)
	})
	if err != nil {
		return fmt.Errorf("pebblestore: import: %w", err)
	}
	if err := b.Commit(s.write); err != nil {
		return fmt.Errorf("pebblestore: import: %w", err)
	}
	s.next = src.Len()
	return nil
}

func (s *Store) get(id int64) (rtree.PageState, []byte, error) {
	if id < 0 {
		return rtree.PageAbsent, nil, nil
	}
	val, closer, err := s.db.Get(encodeKey(id))
	if err == pebble.ErrNotFound {
		return rtree.PageAbsent, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("pebblestore: get page %d: %w", id, err)
	}
	defer closer.Close()
	if len(val) == 0 {
		return 0, nil, fmt.Errorf("pebblestore: page %d has an empty record", id)
	}
	// val is only valid until closer.Close(), so we copy it.
	data := make([]byte, len(val)-1)
	copy(data, val[1:])
	return rtree.PageState(val[0]), data, nil
}

func (s *Store) put(id int64, state rtree.PageState, data []byte) error {
	if err := s.db.Set(encodeKey(id), encodeValue(state, data), s.write); err != nil {
		return fmt.Errorf("pebblestore: set page %d: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Del(id)
		// Drain the cache's buffers so an earlier Set can't resurrect the
		// old bytes.
		s.cache.Wait()
	}
	return nil
}

// encodeKey encodes a page id as a big-endian 8-byte slice, so pages sort
// by id.
func encodeKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func encodeValue(state rtree.PageState, data []byte) []byte {
	v := make([]byte, 1+len(data))
	v[0] = byte(state)
	copy(v[1:], data)
	return v
}
