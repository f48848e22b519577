package parallel

import (
	"context"
	"encoding/binary"
	"iter"
	"testing"

	"github.com/hupe1980/distinctset/resource"
	"github.com/hupe1980/distinctset/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32Partition(vs ...uint32) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, v := range vs {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, v)
			if !yield(b) {
				return
			}
		}
	}
}

func collect(t *testing.T, s *set.Set) []uint32 {
	t.Helper()
	seq, err := s.Values()
	require.NoError(t, err)

	var out []uint32
	for v := range seq {
		out = append(out, binary.LittleEndian.Uint32(v))
	}
	return out
}

func TestDistinct(t *testing.T) {
	t.Run("DisjointPartitions", func(t *testing.T) {
		parts := []iter.Seq[[]byte]{
			u32Partition(1, 2, 3),
			u32Partition(4, 5, 6),
			u32Partition(7, 8, 9),
		}

		s, err := Distinct(context.Background(), 4, parts)
		require.NoError(t, err)

		count, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 9, count)
	})

	t.Run("OverlappingPartitions", func(t *testing.T) {
		parts := []iter.Seq[[]byte]{
			u32Partition(1, 2, 3, 3),
			u32Partition(3, 4, 5),
		}

		s, err := Distinct(context.Background(), 4, parts)
		require.NoError(t, err)

		count, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 5, count)
		assert.Equal(t, []uint32{1, 2, 3, 4, 5}, collect(t, s))
	})

	t.Run("MatchesSinglePass", func(t *testing.T) {
		// Split one stream across workers and compare with a single set.
		var all []uint32
		parts := make([]iter.Seq[[]byte], 8)
		for p := range parts {
			vs := make([]uint32, 0, 512)
			for i := 0; i < 512; i++ {
				v := uint32((p*31 + i*7) % 1000)
				vs = append(vs, v)
				all = append(all, v)
			}
			parts[p] = u32Partition(vs...)
		}

		got, err := Distinct(context.Background(), 4, parts, func(o *Options) {
			o.Concurrency = 4
		})
		require.NoError(t, err)

		want, err := set.New(4)
		require.NoError(t, err)
		b := make([]byte, 4)
		for _, v := range all {
			binary.LittleEndian.PutUint32(b, v)
			require.NoError(t, want.Append(b))
		}

		assert.Equal(t, collect(t, want), collect(t, got))
	})

	t.Run("EmptyPartition", func(t *testing.T) {
		parts := []iter.Seq[[]byte]{
			u32Partition(5, 6),
			u32Partition(),
		}

		s, err := Distinct(context.Background(), 4, parts)
		require.NoError(t, err)
		assert.Equal(t, []uint32{5, 6}, collect(t, s))
	})

	t.Run("AllEmpty", func(t *testing.T) {
		s, err := Distinct(context.Background(), 4, []iter.Seq[[]byte]{u32Partition()})
		require.NoError(t, err)

		count, err := s.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("BadElementWidth", func(t *testing.T) {
		bad := func(yield func([]byte) bool) {
			yield([]byte{1, 2})
		}
		_, err := Distinct(context.Background(), 4, []iter.Seq[[]byte]{bad})
		require.Error(t, err)
	})
}

func TestReduce(t *testing.T) {
	build := func(vs ...uint32) *set.Set {
		s, err := set.New(4)
		if err != nil {
			panic(err)
		}
		b := make([]byte, 4)
		for _, v := range vs {
			binary.LittleEndian.PutUint32(b, v)
			if err := s.Append(b); err != nil {
				panic(err)
			}
		}
		return s
	}

	t.Run("NilPartialsSkipped", func(t *testing.T) {
		got, err := Reduce(context.Background(), 4, []*set.Set{nil, build(1, 2), nil, build(2, 3)})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2, 3}, collect(t, got))
	})

	t.Run("OddFanIn", func(t *testing.T) {
		got, err := Reduce(context.Background(), 4,
			[]*set.Set{build(1), build(2), build(3), build(4), build(5)})
		require.NoError(t, err)
		assert.Equal(t, []uint32{1, 2, 3, 4, 5}, collect(t, got))
	})
}

func TestWorkerPool(t *testing.T) {
	t.Run("RunsTasks", func(t *testing.T) {
		wp := NewWorkerPool(4)
		defer wp.Close()

		results := make(chan int, 16)
		for i := 0; i < 16; i++ {
			require.NoError(t, wp.Submit(context.Background(), func() {
				results <- i
			}))
		}

		seen := make(map[int]bool)
		for i := 0; i < 16; i++ {
			seen[<-results] = true
		}
		assert.Len(t, seen, 16)
	})

	t.Run("SubmitAfterClose", func(t *testing.T) {
		wp := NewWorkerPool(1)
		wp.Close()

		err := wp.Submit(context.Background(), func() {})
		assert.ErrorIs(t, err, ErrPoolClosed)
	})
}

func TestDistinctResourceGated(t *testing.T) {
	ctrl := resource.NewController(resource.Config{MaxWorkers: 2})

	parts := []iter.Seq[[]byte]{
		u32Partition(1, 2, 3),
		u32Partition(3, 4),
		u32Partition(4, 5, 6),
		u32Partition(6, 1),
	}

	result, err := Distinct(context.Background(), 4, parts, func(o *Options) {
		o.Resources = ctrl
	})
	require.NoError(t, err)

	count, err := result.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}
