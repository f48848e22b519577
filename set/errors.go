package set

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySnapshot is returned when serializing a set that holds no
	// elements. Callers special-case the "no state yet" condition instead.
	ErrEmptySnapshot = errors.New("set: cannot serialize empty set")

	// ErrMalformedSnapshot is returned when serialized input is inconsistent
	// with its declared header.
	ErrMalformedSnapshot = errors.New("set: malformed snapshot")
)

// ErrInvalidItemSize indicates an item size the set cannot handle.
// Only fixed-length, byte-comparable elements with a positive size are
// supported.
type ErrInvalidItemSize struct {
	Size int
}

func (e *ErrInvalidItemSize) Error() string {
	return fmt.Sprintf("invalid item size: %d", e.Size)
}

// ErrItemSizeMismatch indicates an element or a peer set whose item size
// differs from the set's configured size.
type ErrItemSizeMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrItemSizeMismatch) Error() string {
	return fmt.Sprintf("item size mismatch: expected %d, got %d", e.Expected, e.Actual)
}
