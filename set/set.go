// Package set implements the sorted distinct set: an incremental,
// buffer-based structure that counts (and can return) the distinct
// fixed-size values seen in a stream without building a hash table.
//
// The backing buffer is split into three regions:
//
//	----------------------------------------------
//	|    sorted    |    unsorted    |    free    |
//	----------------------------------------------
//
// Appends land in the unsorted region; duplicates are tolerated there.
// When the buffer fills up, Compact sorts the unsorted region, removes
// duplicates and merges the result into the sorted prefix. Deferring the
// dedupe amortizes the sort over many appends and keeps the access pattern
// cache friendly, which is the point of this design over a hash table.
package set

import (
	"bytes"
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/hupe1980/distinctset/alloc"
)

// GrowthPolicy controls how a set's buffer capacity evolves.
//
// Small buffers double on growth. Once capacity reaches LargeThreshold the
// buffer grows by LargeFactor instead, which is just enough to clear the
// FreeFraction target without doubling memory use on large states. The
// threshold and factor mirror the allocator behavior the structure was tuned
// for and are exposed because a different allocator may round differently.
type GrowthPolicy struct {
	// InitialBytes is the capacity of the first allocation.
	InitialBytes int

	// FreeFraction is the fraction of capacity that must be free after a
	// compaction that requests space. A low value causes compaction
	// thrashing: freeing only a handful of slots triggers another expensive
	// compaction on the very next append.
	FreeFraction float64

	// LargeThreshold is the capacity (bytes) at which growth switches from
	// doubling to LargeFactor.
	LargeThreshold int

	// LargeFactor is the growth factor applied at or above LargeThreshold.
	LargeFactor float64
}

// DefaultGrowthPolicy returns the tuning the structure was designed with.
func DefaultGrowthPolicy() GrowthPolicy {
	return GrowthPolicy{
		InitialBytes:   32,
		FreeFraction:   0.2,
		LargeThreshold: 8 * 1024,
		LargeFactor:    1.25,
	}
}

func (p GrowthPolicy) withDefaults() GrowthPolicy {
	d := DefaultGrowthPolicy()
	if p.InitialBytes <= 0 {
		p.InitialBytes = d.InitialBytes
	}
	if p.FreeFraction <= 0 || p.FreeFraction >= 1 {
		p.FreeFraction = d.FreeFraction
	}
	if p.LargeThreshold <= 0 {
		p.LargeThreshold = d.LargeThreshold
	}
	if p.LargeFactor <= 1 {
		p.LargeFactor = d.LargeFactor
	}
	return p
}

// Options holds configuration for a Set.
type Options struct {
	// Allocator supplies all buffers. Defaults to alloc.Default.
	Allocator alloc.Allocator

	// Growth tunes buffer growth. Zero fields take their defaults.
	Growth GrowthPolicy
}

// Stats is a snapshot of a set's internal state.
type Stats struct {
	ItemSize      int
	Sorted        int
	Total         int
	CapacityBytes int
	Compactions   uint64
	Grows         uint64
	Merges        uint64
}

// Set accumulates fixed-size elements and yields their distinct count or
// the ordered sequence of distinct values.
//
// A Set is not safe for concurrent use. The intended model is one set per
// worker over a disjoint input partition, combined afterwards with Merge.
type Set struct {
	itemSize int
	nsorted  int    // elements in the sorted, duplicate-free prefix
	nall     int    // elements stored in total (sorted + unsorted)
	buf      []byte // len(buf) is the capacity in bytes

	alloc  alloc.Allocator
	growth GrowthPolicy

	compactions uint64
	grows       uint64
	merges      uint64
}

// New creates an empty set for elements of exactly itemSize bytes.
//
// The element representation must be fixed-length and ordered by raw byte
// comparison; variable-length types must be rejected by the caller before
// constructing a set.
func New(itemSize int, optFns ...func(*Options)) (*Set, error) {
	if itemSize <= 0 || itemSize > math.MaxUint32 {
		return nil, &ErrInvalidItemSize{Size: itemSize}
	}

	o := Options{
		Allocator: alloc.Default,
		Growth:    DefaultGrowthPolicy(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Allocator == nil {
		o.Allocator = alloc.Default
	}

	return &Set{
		itemSize: itemSize,
		alloc:    o.Allocator,
		growth:   o.Growth.withDefaults(),
	}, nil
}

// ItemSize returns the configured element width in bytes.
func (s *Set) ItemSize() int { return s.itemSize }

// Len returns the number of elements currently stored, including
// not-yet-deduplicated ones. Use Count for the distinct count.
func (s *Set) Len() int { return s.nall }

// Stats returns a snapshot of the set's internal counters.
func (s *Set) Stats() Stats {
	return Stats{
		ItemSize:      s.itemSize,
		Sorted:        s.nsorted,
		Total:         s.nall,
		CapacityBytes: len(s.buf),
		Compactions:   s.compactions,
		Grows:         s.grows,
		Merges:        s.merges,
	}
}

// Append adds one element to the set. The element is copied; duplicates are
// tolerated and eliminated by a later Compact.
func (s *Set) Append(element []byte) error {
	if len(element) != s.itemSize {
		return &ErrItemSizeMismatch{Expected: s.itemSize, Actual: len(element)}
	}

	if s.buf == nil {
		initial := s.growth.InitialBytes
		if initial < s.itemSize {
			initial = s.itemSize
		}
		buf, err := s.alloc.Alloc(initial)
		if err != nil {
			return err
		}
		s.buf = buf
	}

	if (s.nall+1)*s.itemSize > len(s.buf) {
		if err := s.Compact(true); err != nil {
			return err
		}
		// Compact(true) guarantees room for at least one more element.
		if (s.nall+1)*s.itemSize > len(s.buf) {
			return fmt.Errorf("set: compaction did not free space (total=%d capacity=%d)", s.nall, len(s.buf))
		}
	}

	copy(s.buf[s.nall*s.itemSize:], element)
	s.nall++
	return nil
}

// Compact restores the canonical state: all stored elements sorted and
// duplicate-free in the leading region. If needSpace is set, it additionally
// ensures the free-fraction target, growing the buffer when necessary.
//
// Compacting an already-compacted set is a no-op apart from the growth check.
func (s *Set) Compact(needSpace bool) error {
	if s.buf == nil {
		return nil
	}

	if s.nall > s.nsorted {
		s.compactions++

		base := s.nsorted * s.itemSize
		unsorted := s.buf[base : s.nall*s.itemSize]

		sort.Sort(&byteItems{data: unsorted, size: s.itemSize, tmp: make([]byte, s.itemSize)})

		// Left-compaction dedupe of the freshly sorted run: keep an element
		// only if it differs from the last kept one.
		kept := 1
		last := unsorted[:s.itemSize]
		for i := 1; i < len(unsorted)/s.itemSize; i++ {
			curr := unsorted[i*s.itemSize : (i+1)*s.itemSize]
			if !bytes.Equal(last, curr) {
				dst := unsorted[kept*s.itemSize : (kept+1)*s.itemSize]
				if &dst[0] != &curr[0] {
					copy(dst, curr)
				}
				last = dst
				kept++
			}
		}

		s.nall = s.nsorted + kept

		if s.nsorted == 0 {
			// No existing sorted run, the deduplicated run is the result.
			s.nsorted = s.nall
		} else {
			if err := s.mergeRuns(); err != nil {
				return err
			}
		}
	}

	if needSpace {
		return s.ensureFreeSpace()
	}
	return nil
}

// mergeRuns merges the sorted prefix with the deduplicated run behind it
// into a freshly allocated buffer of the same capacity, then swaps it in.
// Copy-then-swap keeps the old buffer intact until the result is complete.
func (s *Set) mergeRuns() error {
	out, err := s.alloc.Alloc(len(s.buf))
	if err != nil {
		return err
	}

	sz := s.itemSize
	a := s.buf[:s.nsorted*sz]
	b := s.buf[s.nsorted*sz : s.nall*sz]

	n := mergeDistinct(out, a, b, sz)

	s.buf = out
	s.nsorted = n
	s.nall = n
	return nil
}

// mergeDistinct merges two sorted, duplicate-free runs into dst, dropping
// cross-run duplicates, and returns the number of elements written.
// dst must not alias a or b and must hold len(a)+len(b) bytes.
func mergeDistinct(dst, a, b []byte, sz int) int {
	var ai, bi, n int
	for ai < len(a) && bi < len(b) {
		av := a[ai : ai+sz]
		bv := b[bi : bi+sz]
		switch r := bytes.Compare(av, bv); {
		case r == 0:
			// Same value on both sides: emit one copy, advance both.
			copy(dst[n*sz:], av)
			ai += sz
			bi += sz
		case r < 0:
			copy(dst[n*sz:], av)
			ai += sz
		default:
			copy(dst[n*sz:], bv)
			bi += sz
		}
		n++
	}
	if ai < len(a) {
		copy(dst[n*sz:], a[ai:])
		n += (len(a) - ai) / sz
	} else if bi < len(b) {
		copy(dst[n*sz:], b[bi:])
		n += (len(b) - bi) / sz
	}
	return n
}

// ensureFreeSpace grows the buffer until the free-fraction target is met and
// at least one more element fits.
func (s *Set) ensureFreeSpace() error {
	capacity := len(s.buf)
	used := s.nall * s.itemSize

	next := capacity
	for {
		free := next - used
		if float64(free) >= s.growth.FreeFraction*float64(next) && free >= s.itemSize {
			break
		}
		if next < s.growth.LargeThreshold {
			next *= 2
		} else {
			grown := int(float64(next) * s.growth.LargeFactor)
			// A factor close to 1 can truncate back to next on small
			// capacities; force progress so the loop terminates.
			if grown <= next {
				grown = next + s.itemSize
			}
			next = grown
		}
	}

	if next == capacity {
		return nil
	}

	buf, err := s.alloc.Grow(s.buf, next)
	if err != nil {
		return err
	}
	s.buf = buf
	s.grows++
	return nil
}

// Merge folds other into s. Both sets are compacted first; the result is the
// sorted, duplicate-free union. other is left compacted but otherwise
// untouched.
//
// Merge is commutative and associative over the sets of distinct elements,
// so partial results may be combined in any tree or pipeline order.
func (s *Set) Merge(other *Set) error {
	if other == nil {
		return nil
	}
	if s.itemSize != other.itemSize {
		return &ErrItemSizeMismatch{Expected: s.itemSize, Actual: other.itemSize}
	}

	if err := s.Compact(false); err != nil {
		return err
	}
	if err := other.Compact(false); err != nil {
		return err
	}

	if other.nall == 0 {
		return nil
	}

	s.merges++
	sz := s.itemSize

	if s.nall == 0 {
		// Nothing on our side: the result is a copy of the other set.
		capacity := len(other.buf)
		if capacity < other.nall*sz {
			capacity = other.nall * sz
		}
		buf, err := s.alloc.Alloc(capacity)
		if err != nil {
			return err
		}
		copy(buf, other.buf[:other.nall*sz])
		s.buf = buf
		s.nall = other.nall
		s.nsorted = other.nsorted
		return nil
	}

	// Worst case: no overlap at all. Excess capacity is retained; a later
	// Compact(true) rebalances if the caller keeps appending.
	out, err := s.alloc.Alloc((s.nall + other.nall) * sz)
	if err != nil {
		return err
	}

	n := mergeDistinct(out, s.buf[:s.nall*sz], other.buf[:other.nall*sz], sz)

	s.buf = out
	s.nall = n
	s.nsorted = n
	return nil
}

// Count compacts the set and returns the number of distinct elements.
func (s *Set) Count() (int, error) {
	if err := s.Compact(false); err != nil {
		return 0, err
	}
	return s.nall, nil
}

// Values compacts the set and returns the distinct elements in ascending
// byte order. The yielded slices alias the set's buffer and are valid only
// until the next mutating call; callers that retain them must copy.
//
// The sequence is finite and restartable.
func (s *Set) Values() (iter.Seq[[]byte], error) {
	if err := s.Compact(false); err != nil {
		return nil, err
	}

	buf, sz, n := s.buf, s.itemSize, s.nall
	return func(yield func([]byte) bool) {
		for i := 0; i < n; i++ {
			if !yield(buf[i*sz : (i+1)*sz : (i+1)*sz]) {
				return
			}
		}
	}, nil
}

// byteItems adapts a packed byte buffer of fixed-size elements to
// sort.Interface with whole-element byte ordering.
type byteItems struct {
	data []byte
	size int
	tmp  []byte
}

func (it *byteItems) Len() int { return len(it.data) / it.size }

func (it *byteItems) Less(i, j int) bool {
	return bytes.Compare(it.at(i), it.at(j)) < 0
}

func (it *byteItems) Swap(i, j int) {
	copy(it.tmp, it.at(i))
	copy(it.at(i), it.at(j))
	copy(it.at(j), it.tmp)
}

func (it *byteItems) at(i int) []byte {
	return it.data[i*it.size : (i+1)*it.size]
}
