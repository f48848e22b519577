// Package bitmapset provides a roaring-bitmap-backed distinct counter for
// 4-byte elements.
//
// When the element width is exactly 32 bits, a compressed bitmap beats the
// general sorted-buffer structure: membership is implicit, duplicates cost
// nothing, and the union of two partial states is a bitmap OR. The surface
// mirrors the general set (append, merge, count, ordered values, binary
// snapshot) so orchestrators can pick the representation per element type.
package bitmapset

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/distinctset/set"
)

// ItemSize is the only element width the bitmap representation supports.
const ItemSize = 4

// Set counts distinct 32-bit elements.
//
// Like the general sorted set, a Set is single-owner: no internal locking.
type Set struct {
	rb *roaring.Bitmap
}

// New creates an empty bitmap set.
func New() *Set {
	return &Set{rb: roaring.New()}
}

// Append adds one 4-byte little-endian element.
func (s *Set) Append(element []byte) error {
	if len(element) != ItemSize {
		return &set.ErrItemSizeMismatch{Expected: ItemSize, Actual: len(element)}
	}
	s.rb.Add(binary.LittleEndian.Uint32(element))
	return nil
}

// AppendUint32 adds one element without an encoding round trip.
func (s *Set) AppendUint32(v uint32) {
	s.rb.Add(v)
}

// Merge folds other into s. Commutative and associative, like the general
// set's merge.
func (s *Set) Merge(other *Set) error {
	if other == nil {
		return nil
	}
	s.rb.Or(other.rb)
	return nil
}

// Count returns the number of distinct elements.
func (s *Set) Count() uint64 {
	return s.rb.GetCardinality()
}

// Values returns the distinct elements in ascending order.
func (s *Set) Values() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// MarshalBinary serializes the bitmap using the portable roaring format.
func (s *Set) MarshalBinary() ([]byte, error) {
	if s.rb.IsEmpty() {
		return nil, set.ErrEmptySnapshot
	}
	return s.rb.ToBytes()
}

// UnmarshalBinary replaces the set's state with the serialized bitmap.
func (s *Set) UnmarshalBinary(data []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%w: %w", set.ErrMalformedSnapshot, err)
	}
	s.rb = rb
	return nil
}
