package rtree

import "fmt"

// NewPage is passed to Storage.Store to have the storage pick the id.
const NewPage int64 = -1

// HeaderPage is where the native library keeps the header record. The root
// is created first and takes page 0, so the header always lands on page 1.
const HeaderPage int64 = 1

// Storage is page addressed byte storage. Implementations are not expected
// to be safe for concurrent use.
type Storage interface {
	// Load returns the bytes of a live page. The returned slice must not be
	// modified. Absent and deleted pages fail with ErrInvalidPage.
	Load(id int64) ([]byte, error)

	// Store writes a page. Given NewPage it allocates the next sequential id,
	// otherwise it overwrites an existing page. The id written is returned.
	Store(id int64, data []byte) (int64, error)

	// Delete tombstones a live page.
	Delete(id int64) error
}

// PageState distinguishes the three states a page id can be in.
type PageState uint8

const (
	PageAbsent PageState = iota
	PageLive
	PageDeleted
)

func (s PageState) String() string {
	switch s {
	case PageAbsent:
		return "absent"
	case PageLive:
		return "live"
	case PageDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("PageState(%d)", uint8(s))
	}
}

type page struct {
	state PageState
	data  []byte
}

// MemStore is an in-memory Storage. Ids are dense: a new page always gets
// the current page count as its id. Its zero value is an empty store.
type MemStore struct {
	pages []page
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Len returns the number of page ids in use, including deleted ones.
func (s *MemStore) Len() int64 {
	return int64(len(s.pages))
}

// State reports the state of a page id.
func (s *MemStore) State(id int64) PageState {
	if id < 0 || id >= int64(len(s.pages)) {
		return PageAbsent
	}
	return s.pages[id].state
}

// Put assigns page bytes directly, bypassing allocation. It is used to
// populate a store from an existing file, where the ids are already known.
func (s *MemStore) Put(id int64, data []byte) error {
	if id < 0 {
		return fmt.Errorf("put page %d: %w", id, ErrInvalidPage)
	}
	for int64(len(s.pages)) <= id {
		s.pages = append(s.pages, page{})
	}
	s.pages[id] = page{state: PageLive, data: append([]byte(nil), data...)}
	return nil
}

// Load implements Storage.
func (s *MemStore) Load(id int64) ([]byte, error) {
	if s.State(id) != PageLive {
		return nil, &PageError{Page: id, Err: ErrInvalidPage}
	}
	return s.pages[id].data, nil
}

// Store implements Storage. Overwriting a deleted page makes it live again,
// which is how the native library reuses the header page.
func (s *MemStore) Store(id int64, data []byte) (int64, error) {
	if id == NewPage {
		s.pages = append(s.pages, page{state: PageLive, data: append([]byte(nil), data...)})
		return int64(len(s.pages)) - 1, nil
	}
	if s.State(id) == PageAbsent {
		return 0, &PageError{Page: id, Err: ErrInvalidPage}
	}
	s.pages[id] = page{state: PageLive, data: append([]byte(nil), data...)}
	return id, nil
}

// Delete implements Storage.
func (s *MemStore) Delete(id int64) error {
	if s.State(id) != PageLive {
		return &PageError{Page: id, Err: ErrInvalidPage}
	}
	s.pages[id] = page{state: PageDeleted}
	return nil
}

// Pages calls fn for every page id in order, including absent and deleted
// ones, until fn returns an error.
func (s *MemStore) Pages(fn func(id int64, state PageState, data []byte) error) error {
	for i, p := range s.pages {
		if err := fn(int64(i), p.state, p.data); err != nil {
			return err
		}
	}
	return nil
}
