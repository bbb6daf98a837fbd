// Package store holds the accumulated, de-duplicated project records of a
// session.
package store

import (
	"sort"
	"sync"

	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"
)

// Store is an append-only collection keyed by (nis_code, ac_code). The first
// record seen for a key wins; later duplicates are dropped. Safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	seen    map[model.Key]struct{}
	records []model.Project
	version uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{seen: make(map[model.Key]struct{})}
}

// Merge appends the records whose key has not been seen and returns how many
// were added. Merging the same batch twice adds nothing the second time.
func (s *Store) Merge(batch []model.Project) int {
	if len(batch) == 0 {
		return 0
	}
	defer metrics.Timer(metrics.StoreMerge)()

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for i := range batch {
		k := batch[i].Key()
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.records = append(s.records, batch[i])
		added++
	}
	if added > 0 {
		s.version++
		metrics.SetStoreRecords(len(s.records))
	}
	return added
}

// Snapshot returns the records merged so far. The returned slice is capped at
// its length, so later merges never write into it, and callers must not
// modify its elements.
func (s *Store) Snapshot() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	return s.records[:n:n]
}

// Len returns the number of distinct records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases every time Merge adds at least one record.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Contains reports whether a record with key k has been merged.
func (s *Store) Contains(k model.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[k]
	return ok
}

// Municipalities returns the distinct municipality names, sorted.
func (s *Store) Municipalities() []string {
	s.mu.RLock()
	set := make(map[string]struct{})
	for i := range s.records {
		set[s.records[i].Municipality] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
