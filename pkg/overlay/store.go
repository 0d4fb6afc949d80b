package overlay

import (
	"sort"
	"sync"
)

// Store maps logical page numbers to overlay snapshots. It is safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	pages map[int]Snapshot
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{pages: make(map[int]Snapshot)}
}

// Get returns the snapshot stored for page
func (s *Store) Get(page int) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.pages[page]
	if !ok {
		return Snapshot{}, false
	}
	return snap.Clone(), true
}

// Set stores snap for page, replacing any previous entry
func (s *Store) Set(page int, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page] = snap.Clone()
}

// Delete removes the entry for page
func (s *Store) Delete(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, page)
}

// Clear removes every entry
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[int]Snapshot)
}

// Len returns the number of stored pages
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Pages returns the stored page numbers in ascending order
func (s *Store) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]int, 0, len(s.pages))
	for p := range s.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Clone returns a copy of every entry
func (s *Store) Clone() map[int]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]Snapshot, len(s.pages))
	for p, snap := range s.pages {
		out[p] = snap.Clone()
	}
	return out
}
