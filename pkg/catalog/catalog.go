// Package catalog holds the reference signatures and product recommendations
// that uploads are matched against.
package catalog

import (
	"fmt"
	"time"

	"github.com/BitPonyLLC/huematch/pkg/palette"
)

// Entry is one reference image: its identifier, signature and the products
// recommended when an upload matches it.
type Entry struct {
	ID        string            `json:"id"`
	Signature palette.Signature `json:"signature"`
	Products  []string          `json:"products"`
}

// Snapshot is an immutable view of the catalog. It is never modified after
// NewSnapshot returns; reloads build a new Snapshot and swap it into a Store.
type Snapshot struct {
	entries  []Entry
	index    map[string]int
	k        int
	loadedAt time.Time
	source   string
}

// NewSnapshot validates and copies entries. Identifiers must be unique and
// every signature must have the same length.
func NewSnapshot(source string, entries []Entry) (*Snapshot, error) {
	s := &Snapshot{
		entries:  make([]Entry, len(entries)),
		index:    make(map[string]int, len(entries)),
		loadedAt: time.Now(),
		source:   source,
	}

	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}

		if _, dup := s.index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry: %s", e.ID)
		}

		if i == 0 {
			s.k = e.Signature.Len()
		} else if e.Signature.Len() != s.k {
			return nil, fmt.Errorf("catalog entry %s: %w", e.ID,
				&palette.LengthMismatchError{Want: s.k, Got: e.Signature.Len()})
		}

		products := make([]string, len(e.Products))
		copy(products, e.Products)

		s.entries[i] = Entry{ID: e.ID, Signature: e.Signature, Products: products}
		s.index[e.ID] = i
	}

	return s, nil
}

// Entries returns the entries in catalog order. The slice is a copy.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len is the number of entries.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// K is the signature length shared by every entry (0 for an empty catalog).
func (s *Snapshot) K() int {
	return s.k
}

// Products looks up the recommendations for a reference id.
func (s *Snapshot) Products(id string) ([]string, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}

	out := make([]string, len(s.entries[i].Products))
	copy(out, s.entries[i].Products)
	return out, true
}

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Source names where the snapshot came from (usually the catalog pathname).
func (s *Snapshot) Source() string {
	return s.source
}
