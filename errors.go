package distinctset

import (
	"errors"
	"fmt"

	"github.com/hupe1980/distinctset/persistence"
	"github.com/hupe1980/distinctset/set"
)

var (
	// ErrEmptyState is returned when serializing an aggregate that has
	// seen no elements. An empty aggregate has no binary state.
	ErrEmptyState = errors.New("empty aggregate has no state")

	// ErrCorruptState is returned when deserialization rejects the input.
	ErrCorruptState = errors.New("corrupt aggregate state")
)

// ErrItemSizeMismatch indicates an element or a merge partner whose
// width differs from the aggregator's configured item size.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrItemSizeMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrItemSizeMismatch) Error() string {
	return fmt.Sprintf("item size mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrItemSizeMismatch) Unwrap() error { return e.cause }

// ErrInvalidItemSize indicates a non-positive configured item size.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidItemSize struct {
	Size  int
	cause error
}

func (e *ErrInvalidItemSize) Error() string {
	return fmt.Sprintf("invalid item size: %d", e.Size)
}

func (e *ErrInvalidItemSize) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Argument normalization.
	var ism *set.ErrItemSizeMismatch
	if errors.As(err, &ism) {
		return &ErrItemSizeMismatch{Expected: ism.Expected, Actual: ism.Actual, cause: err}
	}
	var iis *set.ErrInvalidItemSize
	if errors.As(err, &iis) {
		return &ErrInvalidItemSize{Size: iis.Size, cause: err}
	}

	// State unification.
	if errors.Is(err, set.ErrEmptySnapshot) {
		return fmt.Errorf("%w: %w", ErrEmptyState, err)
	}
	if errors.Is(err, set.ErrMalformedSnapshot) {
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if errors.Is(err, persistence.ErrInvalidMagic) ||
		errors.Is(err, persistence.ErrInvalidVersion) ||
		errors.Is(err, persistence.ErrInvalidCompression) ||
		errors.Is(err, persistence.ErrTruncated) ||
		persistence.IsChecksumMismatch(err) {
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	return err
}
