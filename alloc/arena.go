package alloc

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/distinctset/internal/mmap"
)

const (
	// DefaultChunkSize is the default size of an arena chunk (256 KiB).
	DefaultChunkSize = 256 * 1024
	// chunkAlignment keeps carved buffers word aligned.
	chunkAlignment = 8
)

// ErrArenaClosed is returned when allocating from a freed arena.
var ErrArenaClosed = errors.New("alloc: arena is closed")

// MemoryAcquirer is an interface for reserving memory against a budget.
// *resource.Controller satisfies it.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

type chunk struct {
	mapping *mmap.Mapping
	data    []byte
	offset  int
}

// Arena is an Allocator that carves buffers out of large anonymous mappings.
//
// Memory is held off-heap and returned to the OS only on Free, matching the
// one-pass lifetime of an aggregation state: many small grow steps during
// accumulation, one release when the group is done. Buffers handed out are
// never reclaimed individually; Grow always carves a fresh region and copies.
//
// An Arena may back several sets, but Free must not run concurrently with
// allocations.
type Arena struct {
	mu        sync.Mutex
	chunkSize int
	chunks    []*chunk
	acquirer  MemoryAcquirer
	reserved  int64
	closed    bool
}

// ArenaOption is a configuration option for NewArena.
type ArenaOption func(*Arena)

// WithMemoryAcquirer sets the memory budget for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) ArenaOption {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// NewArena creates a new Arena with the given chunk size.
// If chunkSize is not positive, DefaultChunkSize is used.
func NewArena(chunkSize int, opts ...ArenaOption) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	a := &Arena{chunkSize: chunkSize}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Alloc implements Allocator.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrAllocationFailed
	}
	if size == 0 {
		return []byte{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrArenaClosed
	}

	aligned := (size + chunkAlignment - 1) &^ (chunkAlignment - 1)

	if c := a.current(); c != nil && c.offset+aligned <= len(c.data) {
		buf := c.data[c.offset : c.offset+size : c.offset+size]
		c.offset += aligned
		return buf, nil
	}

	// Oversized requests get a dedicated chunk so the tail of the previous
	// chunk stays usable for small allocations.
	chunkSize := a.chunkSize
	if aligned > chunkSize {
		chunkSize = aligned
	}

	c, err := a.addChunk(chunkSize)
	if err != nil {
		return nil, err
	}

	buf := c.data[:size:size]
	c.offset = aligned
	return buf, nil
}

// Grow implements Allocator. The arena cannot extend in place, so Grow
// carves a fresh region and copies; the old region stays reserved until Free.
func (a *Arena) Grow(buf []byte, size int) ([]byte, error) {
	if size < len(buf) {
		return nil, ErrAllocationFailed
	}
	next, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(next, buf)
	return next, nil
}

func (a *Arena) current() *chunk {
	if len(a.chunks) == 0 {
		return nil
	}
	return a.chunks[len(a.chunks)-1]
}

func (a *Arena) addChunk(size int) (*chunk, error) {
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(context.Background(), int64(size)); err != nil {
			return nil, err
		}
	}

	m, err := mmap.MapAnon(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		return nil, err
	}

	c := &chunk{mapping: m, data: m.Bytes()}
	a.chunks = append(a.chunks, c)
	a.reserved += int64(size)
	return c, nil
}

// Reserved returns the total bytes currently mapped by the arena.
func (a *Arena) Reserved() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

// Free unmaps all chunks and returns reserved memory to the acquirer.
// All buffers handed out by the arena become invalid. The arena cannot be
// reused after Free.
func (a *Arena) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true

	for _, c := range a.chunks {
		_ = c.mapping.Close()
	}
	a.chunks = nil

	if a.acquirer != nil && a.reserved > 0 {
		a.acquirer.ReleaseMemory(a.reserved)
	}
	a.reserved = 0
}
