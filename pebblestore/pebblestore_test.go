package pebblestore

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/tiltbrush/rtree"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestStoreLoadDelete(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	for want := int64(0); want < 3; want++ {
		id, err := s.Store(rtree.NewPage, []byte{byte('a' + want)})
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Fatalf("expected page id %d, got %d", want, id)
		}
	}

	data, err := s.Load(1)
	if err != nil || string(data) != "b" {
		t.Fatalf("load: got %q, %v", data, err)
	}

	if err := s.Delete(1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(1); !errors.Is(err, rtree.ErrInvalidPage) {
		t.Errorf("load deleted: got %v want %v", err, rtree.ErrInvalidPage)
	}
	if err := s.Delete(1); !errors.Is(err, rtree.ErrInvalidPage) {
		t.Errorf("delete twice: got %v want %v", err, rtree.ErrInvalidPage)
	}
	if _, err := s.Load(7); !errors.Is(err, rtree.ErrInvalidPage) {
		t.Errorf("load absent: got %v want %v", err, rtree.ErrInvalidPage)
	}
	if _, err := s.Store(7, nil); !errors.Is(err, rtree.ErrInvalidPage) {
		t.Errorf("overwrite absent: got %v want %v", err, rtree.ErrInvalidPage)
	}

	// Deleted ids are not reused.
	if id, _ := s.Store(rtree.NewPage, nil); id != 3 {
		t.Errorf("expected page id 3, got %d", id)
	}
}

func TestOverwriteInvalidatesCache(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	id, err := s.Store(rtree.NewPage, []byte("old"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Load(id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Store(id, []byte("new")); err != nil {
		t.Fatal(err)
	}
	data, err := s.Load(id)
	if err != nil || string(data) != "new" {
		t.Errorf("load after overwrite: got %q, %v", data, err)
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s1 := openStore(t, dir)
	for i := 0; i < 4; i++ {
		if _, err := s1.Store(rtree.NewPage, []byte("page")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s1.Delete(2); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := openStore(t, dir)
	defer s2.Close()
	if s2.Len() != 4 {
		t.Errorf("expected 4 pages after reopen, got %d", s2.Len())
	}
	if _, err := s2.Load(2); !errors.Is(err, rtree.ErrInvalidPage) {
		t.Errorf("tombstone should persist, got %v", err)
	}
	if data, err := s2.Load(3); err != nil || string(data) != "page" {
		t.Errorf("data should persist, got %q, %v", data, err)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))
	items := make([]rtree.Item, 400)
	for i := range items {
		var bb rtree.BBox
		for a := 0; a < 3; a++ {
			bb.Min[a] = rnd.Float64()
			bb.Max[a] = bb.Min[a] + 0.01 + rnd.Float64()*0.1
		}
		items[i] = rtree.Item{ID: int64(i), BBox: bb}
	}
	p := rtree.DefaultParams().WithLeafMultiplier(0.02)

	t.Run("pack", func(t *testing.T) {
		s := openStore(t, t.TempDir())
		defer s.Close()
		headerID, err := rtree.Pack(s, slices.Values(items), p)
		if err != nil {
			t.Fatal(err)
		}
		checkTree(t, s, headerID, len(items))
	})

	t.Run("import", func(t *testing.T) {
		mem := rtree.NewMemStore()
		headerID, err := rtree.Pack(mem, slices.Values(items), p)
		if err != nil {
			t.Fatal(err)
		}
		s := openStore(t, t.TempDir())
		defer s.Close()
		if err := s.Import(mem); err != nil {
			t.Fatal(err)
		}
		if s.Len() != mem.Len() {
			t.Errorf("expected %d pages, got %d", mem.Len(), s.Len())
		}
		checkTree(t, s, headerID, len(items))

		if err := s.Import(mem); err == nil {
			t.Error("expected an error importing into a non-empty store")
		}
	})
}

func checkTree(t *testing.T, s *Store, headerID int64, n int) {
	t.Helper()
	tr, err := rtree.Load(s, headerID)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Check(); err != nil {
		t.Fatal(err)
	}
	seen := make(map[int64]bool)
	for _, c := range tr.Leaves() {
		seen[c.ID] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct leaf entries, got %d", n, len(seen))
	}
}
