// Package idset implements a compressed set of entity identifiers backed by
// a 64-bit Roaring Bitmap. Backends use it to track which node ids are
// physically present, and the integrity checker uses it to validate path
// references without repeated point lookups.
package idset

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Set is a set of signed 64-bit entity ids. Ids are stored as their
// two's-complement bit patterns. Not safe for concurrent mutation; callers
// hold their own locks.
type Set struct {
	rb *roaring64.Bitmap
}

// New creates an empty set.
func New() *Set {
	return &Set{rb: roaring64.New()}
}

// Add inserts an id.
func (s *Set) Add(id int64) {
	s.rb.Add(uint64(id))
}

// Remove deletes an id.
func (s *Set) Remove(id int64) {
	s.rb.Remove(uint64(id))
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id int64) bool {
	return s.rb.Contains(uint64(id))
}

// Cardinality returns the number of ids in the set.
func (s *Set) Cardinality() uint64 {
	return s.rb.GetCardinality()
}

// IsEmpty reports whether the set is empty.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	return &Set{rb: s.rb.Clone()}
}

// Or merges other into this set.
func (s *Set) Or(other *Set) {
	s.rb.Or(other.rb)
}

// Clear removes all ids.
func (s *Set) Clear() {
	s.rb.Clear()
}

// Iterator yields the ids in ascending unsigned bit-pattern order.
func (s *Set) Iterator() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(int64(it.Next())) {
				return
			}
		}
	}
}
