package set

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire format, little-endian:
//
//	item_size    uint32
//	sorted_count uint32  (always equals total_count on the wire)
//	total_count  uint32
//	elements     total_count * item_size bytes, packed, sorted, duplicate-free
//
// No free capacity crosses the wire; deserialization allocates exactly
// total_count * item_size bytes.

const headerSize = 12

var byteOrder = binary.LittleEndian

// MarshalBinary serializes the set. The set is compacted first so the sort
// happens on the producing side and the smallest possible payload is
// emitted. Serializing an empty set returns ErrEmptySnapshot.
func (s *Set) MarshalBinary() ([]byte, error) {
	if err := s.Compact(false); err != nil {
		return nil, err
	}
	if s.nall == 0 {
		return nil, ErrEmptySnapshot
	}
	if s.nall > math.MaxUint32 {
		return nil, fmt.Errorf("%w: element count %d overflows header", ErrMalformedSnapshot, s.nall)
	}

	payload := s.nall * s.itemSize
	out := make([]byte, headerSize+payload)
	byteOrder.PutUint32(out[0:], uint32(s.itemSize))
	byteOrder.PutUint32(out[4:], uint32(s.nsorted))
	byteOrder.PutUint32(out[8:], uint32(s.nall))
	copy(out[headerSize:], s.buf[:payload])
	return out, nil
}

// Unmarshal reconstructs a set from data produced by MarshalBinary.
// The new set's capacity is exactly the payload size; no free space is
// preserved across the wire.
func Unmarshal(data []byte, optFns ...func(*Options)) (*Set, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedSnapshot, len(data))
	}

	itemSize := int(byteOrder.Uint32(data[0:]))
	nsorted := int(byteOrder.Uint32(data[4:]))
	nall := int(byteOrder.Uint32(data[8:]))

	if itemSize <= 0 {
		return nil, fmt.Errorf("%w: item size %d", ErrMalformedSnapshot, itemSize)
	}
	if nall == 0 || nsorted != nall {
		return nil, fmt.Errorf("%w: counts sorted=%d total=%d", ErrMalformedSnapshot, nsorted, nall)
	}
	if len(data) != headerSize+nall*itemSize {
		return nil, fmt.Errorf("%w: length %d inconsistent with %d elements of %d bytes",
			ErrMalformedSnapshot, len(data), nall, itemSize)
	}

	s, err := New(itemSize, optFns...)
	if err != nil {
		return nil, err
	}

	buf, err := s.alloc.Alloc(nall * itemSize)
	if err != nil {
		return nil, err
	}
	copy(buf, data[headerSize:])

	s.buf = buf
	s.nsorted = nsorted
	s.nall = nall
	return s, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The receiver's
// state is replaced; its configured item size, if any elements were ever
// appended, must match the snapshot's.
func (s *Set) UnmarshalBinary(data []byte) error {
	loaded, err := Unmarshal(data, func(o *Options) {
		o.Allocator = s.alloc
		o.Growth = s.growth
	})
	if err != nil {
		return err
	}
	if s.nall > 0 && s.itemSize != loaded.itemSize {
		return &ErrItemSizeMismatch{Expected: s.itemSize, Actual: loaded.itemSize}
	}

	s.itemSize = loaded.itemSize
	s.buf = loaded.buf
	s.nsorted = loaded.nsorted
	s.nall = loaded.nall
	return nil
}

var _ interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
} = (*Set)(nil)
