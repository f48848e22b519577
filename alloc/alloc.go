// Package alloc provides the allocators that back sorted distinct sets.
//
// A set never allocates directly: every buffer comes from an injected
// Allocator, so the orchestrating code controls the lifetime of all memory a
// set holds. The Heap allocator defers to the Go runtime; Arena carves
// buffers out of large off-heap chunks and releases them all at once.
package alloc

import "errors"

// ErrAllocationFailed is returned when an allocator cannot satisfy a request.
var ErrAllocationFailed = errors.New("alloc: allocation failed")

// Allocator supplies the buffers backing a sorted distinct set.
//
// Implementations must keep every returned buffer valid until the allocator
// itself is released; the set replaces buffers wholesale and never frees
// individual ones.
type Allocator interface {
	// Alloc returns a zeroed buffer of exactly size bytes.
	Alloc(size int) ([]byte, error)

	// Grow returns a buffer of exactly size bytes holding the contents of
	// buf as a prefix. The returned buffer may alias buf if the allocator
	// can extend in place.
	Grow(buf []byte, size int) ([]byte, error)
}

// Heap is an Allocator backed by the Go runtime heap.
//
// The zero value is ready to use.
type Heap struct{}

// Alloc implements Allocator.
func (Heap) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrAllocationFailed
	}
	return make([]byte, size), nil
}

// Grow implements Allocator.
func (Heap) Grow(buf []byte, size int) ([]byte, error) {
	if size < len(buf) {
		return nil, ErrAllocationFailed
	}
	if size <= cap(buf) {
		return buf[:size], nil
	}
	next := make([]byte, size)
	copy(next, buf)
	return next, nil
}

// Default is the allocator used when none is injected.
var Default Allocator = Heap{}
