package distinctset

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/distinctset/alloc"
	"github.com/hupe1980/distinctset/blobstore"
	"github.com/hupe1980/distinctset/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func appendU32s(t *testing.T, a *Aggregator, vs ...uint32) {
	t.Helper()
	for _, v := range vs {
		require.NoError(t, a.Append(u32(v)))
	}
}

func collectU32s(t *testing.T, a *Aggregator) []uint32 {
	t.Helper()
	seq, err := a.Values()
	require.NoError(t, err)

	var out []uint32
	for v := range seq {
		out = append(out, binary.LittleEndian.Uint32(v))
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("ValidItemSize", func(t *testing.T) {
		a, err := New(8)
		require.NoError(t, err)
		assert.Equal(t, 8, a.ItemSize())
	})

	t.Run("InvalidItemSize", func(t *testing.T) {
		_, err := New(0)
		require.Error(t, err)

		var iis *ErrInvalidItemSize
		require.ErrorAs(t, err, &iis)
		assert.Equal(t, 0, iis.Size)
	})
}

func TestAppendCount(t *testing.T) {
	a, err := New(4)
	require.NoError(t, err)

	appendU32s(t, a, 5, 3, 5, 1, 3, 3)

	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []uint32{1, 3, 5}, collectU32s(t, a))
}

func TestAppendWrongWidth(t *testing.T) {
	a, err := New(4)
	require.NoError(t, err)

	err = a.Append([]byte{1, 2})
	require.Error(t, err)

	var ism *ErrItemSizeMismatch
	require.ErrorAs(t, err, &ism)
	assert.Equal(t, 4, ism.Expected)
	assert.Equal(t, 2, ism.Actual)
}

func TestAppendElements(t *testing.T) {
	ctx := context.Background()

	t.Run("SkipsNulls", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		elements := [][]byte{u32(1), u32(2), u32(2), u32(3)}
		nulls := []bool{false, true, false, false}

		appended, err := a.AppendElements(ctx, elements, nulls)
		require.NoError(t, err)
		assert.Equal(t, 3, appended)

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, []uint32{1, 2, 3}, collectU32s(t, a))
	})

	t.Run("SkipsNilEntries", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		appended, err := a.AppendElements(ctx, [][]byte{u32(1), nil, u32(2)}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, appended)

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("NilMask", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		appended, err := a.AppendElements(ctx, [][]byte{u32(7), u32(7)}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, appended)

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestAppendValueConvenience(t *testing.T) {
	t.Run("Uint32", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		require.NoError(t, a.AppendUint32(7))
		require.NoError(t, a.AppendUint32(7))
		require.NoError(t, a.AppendUint32(9))

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Uint64WrongWidth", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		var ism *ErrItemSizeMismatch
		require.ErrorAs(t, a.AppendUint64(7), &ism)
	})
}

func TestValuesBytes(t *testing.T) {
	a, err := New(4)
	require.NoError(t, err)
	appendU32s(t, a, 3, 1, 3, 2)

	values, err := a.ValuesBytes()
	require.NoError(t, err)
	require.Len(t, values, 3)

	// Copies survive further mutation.
	appendU32s(t, a, 0, 9)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(values[0]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(values[1]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(values[2]))
}

func TestMerge(t *testing.T) {
	a, err := New(4)
	require.NoError(t, err)
	appendU32s(t, a, 1, 2, 3)

	b, err := New(4)
	require.NoError(t, err)
	appendU32s(t, b, 3, 4, 5)

	require.NoError(t, a.Merge(b))

	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// b is untouched.
	count, err = b.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMergeConcurrent(t *testing.T) {
	t.Run("WithQueriesOnSource", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)
		appendU32s(t, a, 1, 2, 3)

		b, err := New(4)
		require.NoError(t, err)
		appendU32s(t, b, 3, 4, 5)

		// Merge compacts the source set; querying it at the same time
		// must not observe the buffer mid-swap.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, a.Merge(b))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n, err := b.Count()
				assert.NoError(t, err)
				assert.Equal(t, 3, n)
			}
		}()
		wg.Wait()

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})

	t.Run("OppositeDirections", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)
		appendU32s(t, a, 1, 2)

		b, err := New(4)
		require.NoError(t, err)
		appendU32s(t, b, 2, 3)

		// a.Merge(b) racing b.Merge(a) must neither deadlock nor corrupt.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, a.Merge(b))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, b.Merge(a))
			}
		}()
		wg.Wait()

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("SelfMerge", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)
		appendU32s(t, a, 7, 8, 7)

		require.NoError(t, a.Merge(a))

		count, err := a.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestSerializeDeserialize(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)
		appendU32s(t, a, 9, 1, 9, 4)

		state, err := a.Serialize()
		require.NoError(t, err)

		restored, err := Deserialize(state)
		require.NoError(t, err)

		count, err := restored.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, []uint32{1, 4, 9}, collectU32s(t, restored))
	})

	t.Run("PayloadTrailsHeader", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)
		appendU32s(t, a, 20, 10)

		state, err := a.Serialize()
		require.NoError(t, err)
		require.Len(t, state, 12+8)
		assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(state[12:]))
		assert.Equal(t, uint32(20), binary.LittleEndian.Uint32(state[16:]))
	})

	t.Run("Empty", func(t *testing.T) {
		a, err := New(4)
		require.NoError(t, err)

		_, err = a.Serialize()
		assert.ErrorIs(t, err, ErrEmptyState)
	})

	t.Run("Corrupt", func(t *testing.T) {
		_, err := Deserialize([]byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrCorruptState)
	})
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	a, err := New(4, WithCompression(persistence.CompressionZSTD))
	require.NoError(t, err)
	appendU32s(t, a, 3, 1, 4, 1, 5)

	require.NoError(t, a.SaveSnapshot(ctx, store, "agg/state"))

	restored, err := LoadSnapshot(ctx, store, "agg/state")
	require.NoError(t, err)

	count, err := restored.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadSnapshot(ctx, store, "agg/other")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg.dst")

	a, err := New(4)
	require.NoError(t, err)
	appendU32s(t, a, 8, 6, 7, 5, 3, 0, 9)

	require.NoError(t, a.SaveToFile(path))

	restored, err := LoadFromFile(path)
	require.NoError(t, err)

	count, err := restored.Count()
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestArenaBacked(t *testing.T) {
	arena := alloc.NewArena(64 * 1024)
	defer arena.Free()

	a, err := New(4, WithAllocator(arena))
	require.NoError(t, err)

	for v := uint32(0); v < 1000; v++ {
		require.NoError(t, a.Append(u32(v%100)))
	}

	count, err := a.Count()
	require.NoError(t, err)
	assert.Equal(t, 100, count)
}

func TestMetricsCollector(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	a, err := New(4, WithMetricsCollector(metrics))
	require.NoError(t, err)

	appendU32s(t, a, 1, 2, 2)
	_, err = a.Serialize()
	require.NoError(t, err)

	b, err := New(4)
	require.NoError(t, err)
	require.NoError(t, a.Merge(b))

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats.AppendCount)
	assert.Equal(t, int64(0), stats.AppendErrors)
	assert.Equal(t, int64(1), stats.SerializeCount)
	assert.Equal(t, int64(1), stats.MergeCount)
}
