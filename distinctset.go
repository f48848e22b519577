package distinctset

import (
	"bytes"
	"context"
	"encoding/binary"
	"iter"
	"sync"
	"time"
	"unsafe"

	"github.com/hupe1980/distinctset/blobstore"
	"github.com/hupe1980/distinctset/persistence"
	"github.com/hupe1980/distinctset/set"
)

// Aggregator accumulates fixed-size elements and answers exact distinct
// counts over them. It is safe for concurrent use; for write-heavy
// parallel workloads, prefer one Aggregator per goroutine plus Merge
// (see the parallel package), which avoids lock contention entirely.
type Aggregator struct {
	mu      sync.Mutex
	set     *set.Set
	opts    options
	metrics MetricsCollector
	logger  *Logger
}

// New creates an Aggregator for elements of itemSize bytes.
func New(itemSize int, optFns ...Option) (*Aggregator, error) {
	opts := applyOptions(optFns)

	s, err := set.New(itemSize, func(o *set.Options) {
		o.Allocator = opts.allocator
		o.Growth = opts.growth
	})
	if err != nil {
		return nil, translateError(err)
	}

	return &Aggregator{
		set:     s,
		opts:    opts,
		metrics: opts.metricsCollector,
		logger:  opts.logger.WithItemSize(itemSize),
	}, nil
}

// ItemSize returns the configured element width in bytes.
func (a *Aggregator) ItemSize() int {
	return a.set.ItemSize()
}

// Append adds one element. Duplicates are accepted and resolved lazily.
func (a *Aggregator) Append(element []byte) error {
	start := time.Now()

	a.mu.Lock()
	err := a.set.Append(element)
	a.mu.Unlock()

	err = translateError(err)
	a.metrics.RecordAppend(time.Since(start), err)
	return err
}

// AppendUint32 encodes v little-endian and appends it. The aggregator
// must have been created with item size 4.
func (a *Aggregator) AppendUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return a.Append(buf[:])
}

// AppendUint64 encodes v little-endian and appends it. The aggregator
// must have been created with item size 8.
func (a *Aggregator) AppendUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return a.Append(buf[:])
}

// AppendElements adds a batch of elements, skipping nil entries and any
// whose index is marked in nulls. nulls may be nil when no element is
// null. It returns the number of elements appended.
//
// This matches how aggregate inputs arrive from row-oriented sources:
// a column of values plus a validity mask.
func (a *Aggregator) AppendElements(ctx context.Context, elements [][]byte, nulls []bool) (int, error) {
	start := time.Now()
	appended, skipped := 0, 0

	a.mu.Lock()
	var err error
	for i, element := range elements {
		if element == nil || (nulls != nil && i < len(nulls) && nulls[i]) {
			skipped++
			continue
		}
		if err = a.set.Append(element); err != nil {
			break
		}
		appended++

		if appended%1024 == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
		}
	}
	a.mu.Unlock()

	err = translateError(err)
	a.metrics.RecordAppendBatch(appended, skipped, time.Since(start))
	a.logger.LogAppendBatch(ctx, appended, skipped, err)
	return appended, err
}

// Merge folds other into a. After a successful merge a covers the union
// of both inputs; other keeps its elements and remains usable.
//
// Merge is commutative and associative: partial aggregates may be
// combined in any order and any tree shape with identical results.
func (a *Aggregator) Merge(other *Aggregator) error {
	start := time.Now()

	// The merge compacts other's set too, so both aggregators are locked.
	unlock := a.lockPair(other)
	leftLen, rightLen := a.set.Len(), other.set.Len()
	err := a.set.Merge(other.set)
	unlock()

	err = translateError(err)
	a.metrics.RecordMerge(time.Since(start), err)
	a.logger.LogMerge(context.Background(), leftLen, rightLen, err)
	return err
}

// lockPair locks a and other in address order so concurrent merges in
// opposite directions cannot deadlock. It returns the matching unlock.
func (a *Aggregator) lockPair(other *Aggregator) func() {
	if a == other {
		a.mu.Lock()
		return a.mu.Unlock
	}

	first, second := a, other
	if uintptr(unsafe.Pointer(other)) < uintptr(unsafe.Pointer(a)) {
		first, second = other, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

// Count returns the exact number of distinct elements seen so far.
func (a *Aggregator) Count() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.set.Count()
	return n, translateError(err)
}

// Len returns the number of buffered elements, counting still-unresolved
// duplicates. Use Count for the distinct cardinality.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.set.Len()
}

// Values returns the distinct elements in ascending byte order.
// The yielded slices alias internal storage and are only valid during
// the iteration; the aggregator must not be written to while iterating.
func (a *Aggregator) Values() (iter.Seq[[]byte], error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, err := a.set.Values()
	return seq, translateError(err)
}

// ValuesBytes returns the distinct elements in ascending byte order as
// freshly allocated copies that stay valid after further mutation.
func (a *Aggregator) ValuesBytes() ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, err := a.set.Values()
	if err != nil {
		return nil, translateError(err)
	}

	out := make([][]byte, 0, a.set.Len())
	for v := range seq {
		c := make([]byte, len(v))
		copy(c, v)
		out = append(out, c)
	}
	return out, nil
}

// Stats returns a snapshot of internal counters for observability.
func (a *Aggregator) Stats() set.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.set.Stats()
}

// Serialize returns the portable binary state of the aggregator.
// An aggregator that has seen no elements returns ErrEmptyState.
func (a *Aggregator) Serialize() ([]byte, error) {
	start := time.Now()

	a.mu.Lock()
	data, err := a.set.MarshalBinary()
	a.mu.Unlock()

	err = translateError(err)
	a.metrics.RecordSerialize(len(data), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Deserialize restores an Aggregator from state produced by Serialize.
func Deserialize(data []byte, optFns ...Option) (*Aggregator, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	s, err := set.Unmarshal(data, func(o *set.Options) {
		o.Allocator = opts.allocator
		o.Growth = opts.growth
	})
	err = translateError(err)
	opts.metricsCollector.RecordDeserialize(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		set:     s,
		opts:    opts,
		metrics: opts.metricsCollector,
		logger:  opts.logger.WithItemSize(s.ItemSize()),
	}, nil
}

// SaveSnapshot serializes the aggregator, wraps the state in a
// checksummed envelope (compressed per WithCompression), and writes it
// to the store under name.
func (a *Aggregator) SaveSnapshot(ctx context.Context, store blobstore.BlobStore, name string) error {
	payload, err := a.Serialize()
	if err != nil {
		a.logger.LogSnapshot(ctx, name, 0, err)
		return err
	}

	var envelope bytes.Buffer
	if err := persistence.Write(&envelope, payload, func(o *persistence.Options) {
		o.Compression = a.opts.compression
	}); err != nil {
		a.logger.LogSnapshot(ctx, name, 0, err)
		return err
	}

	err = store.Put(ctx, name, envelope.Bytes())
	a.logger.LogSnapshot(ctx, name, envelope.Len(), err)
	return err
}

// LoadSnapshot restores an Aggregator from a snapshot written by
// SaveSnapshot.
func LoadSnapshot(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Aggregator, error) {
	opts := applyOptions(optFns)

	blob, err := store.Open(ctx, name)
	if err != nil {
		opts.logger.LogRestore(ctx, name, 0, err)
		return nil, err
	}
	defer blob.Close()

	envelope, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		opts.logger.LogRestore(ctx, name, 0, err)
		return nil, err
	}

	payload, err := persistence.Read(bytes.NewReader(envelope))
	if err != nil {
		err = translateError(err)
		opts.logger.LogRestore(ctx, name, 0, err)
		return nil, err
	}

	agg, err := Deserialize(payload, optFns...)
	if err != nil {
		opts.logger.LogRestore(ctx, name, 0, err)
		return nil, err
	}

	count, _ := agg.Count()
	opts.logger.LogRestore(ctx, name, count, nil)
	return agg, nil
}

// SaveToFile writes a snapshot envelope to the local filesystem,
// atomically via temp file and rename.
func (a *Aggregator) SaveToFile(filename string) error {
	payload, err := a.Serialize()
	if err != nil {
		return err
	}
	return persistence.SaveToFile(filename, payload, func(o *persistence.Options) {
		o.Compression = a.opts.compression
	})
}

// LoadFromFile restores an Aggregator from a file written by SaveToFile.
func LoadFromFile(filename string, optFns ...Option) (*Aggregator, error) {
	payload, err := persistence.LoadFromFile(filename)
	if err != nil {
		return nil, translateError(err)
	}
	return Deserialize(payload, optFns...)
}
