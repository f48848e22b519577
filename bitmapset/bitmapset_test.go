package bitmapset

import (
	"encoding/binary"
	"testing"

	"github.com/hupe1980/distinctset/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	t.Run("AppendAndCount", func(t *testing.T) {
		s := New()

		for _, v := range []uint32{5, 3, 5, 1, 3, 3} {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, v)
			require.NoError(t, s.Append(b))
		}

		assert.Equal(t, uint64(3), s.Count())

		var got []uint32
		for v := range s.Values() {
			got = append(got, v)
		}
		assert.Equal(t, []uint32{1, 3, 5}, got)
	})

	t.Run("WrongWidth", func(t *testing.T) {
		s := New()
		err := s.Append([]byte{1, 2, 3, 4, 5, 6, 7, 8})
		require.Error(t, err)
		assert.IsType(t, &set.ErrItemSizeMismatch{}, err)
	})

	t.Run("Merge", func(t *testing.T) {
		a, b := New(), New()
		for _, v := range []uint32{1, 2, 3} {
			a.AppendUint32(v)
		}
		for _, v := range []uint32{3, 4, 5} {
			b.AppendUint32(v)
		}

		require.NoError(t, a.Merge(b))
		assert.Equal(t, uint64(5), a.Count())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		s := New()
		for _, v := range []uint32{10, 20, 1 << 30} {
			s.AppendUint32(v)
		}

		data, err := s.MarshalBinary()
		require.NoError(t, err)

		loaded := New()
		require.NoError(t, loaded.UnmarshalBinary(data))
		assert.Equal(t, uint64(3), loaded.Count())
	})

	t.Run("EmptySnapshot", func(t *testing.T) {
		_, err := New().MarshalBinary()
		assert.ErrorIs(t, err, set.ErrEmptySnapshot)
	})

	t.Run("MalformedSnapshot", func(t *testing.T) {
		err := New().UnmarshalBinary([]byte{0x00, 0x01})
		assert.ErrorIs(t, err, set.ErrMalformedSnapshot)
	})
}

func TestAgreesWithGeneralSet(t *testing.T) {
	bm := New()
	general, err := set.New(4)
	require.NoError(t, err)

	b := make([]byte, 4)
	for i := 0; i < 3000; i++ {
		v := uint32((i * 17) % 500)
		bm.AppendUint32(v)
		binary.LittleEndian.PutUint32(b, v)
		require.NoError(t, general.Append(b))
	}

	count, err := general.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(count), bm.Count())

	seq, err := general.Values()
	require.NoError(t, err)
	var fromGeneral []uint32
	for v := range seq {
		fromGeneral = append(fromGeneral, binary.LittleEndian.Uint32(v))
	}

	var fromBitmap []uint32
	for v := range bm.Values() {
		fromBitmap = append(fromBitmap, v)
	}
	assert.Equal(t, fromGeneral, fromBitmap)
}
