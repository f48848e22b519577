package persistence

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/hupe1980/distinctset/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setPayload(t *testing.T, vs ...uint32) []byte {
	t.Helper()

	s, err := set.New(4)
	require.NoError(t, err)
	b := make([]byte, 4)
	for _, v := range vs {
		binary.LittleEndian.PutUint32(b, v)
		require.NoError(t, s.Append(b))
	}

	payload, err := s.MarshalBinary()
	require.NoError(t, err)
	return payload
}

func TestWriteRead(t *testing.T) {
	payload := setPayload(t, 3, 1, 4, 1, 5, 9, 2, 6)

	for name, compression := range map[string]Compression{
		"None": CompressionNone,
		"LZ4":  CompressionLZ4,
		"ZSTD": CompressionZSTD,
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, payload, func(o *Options) {
				o.Compression = compression
			}))

			got, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			// The payload is still a loadable set snapshot.
			loaded, err := set.Unmarshal(got)
			require.NoError(t, err)
			count, err := loaded.Count()
			require.NoError(t, err)
			assert.Equal(t, 7, count)
		})
	}
}

func TestReadRejects(t *testing.T) {
	payload := setPayload(t, 1, 2, 3)

	envelope := func(t *testing.T) []byte {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, payload))
		return buf.Bytes()
	}

	t.Run("BadMagic", func(t *testing.T) {
		data := envelope(t)
		data[0] ^= 0xFF
		_, err := Read(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("BadVersion", func(t *testing.T) {
		data := envelope(t)
		binary.LittleEndian.PutUint32(data[4:], 0x00990000)
		_, err := Read(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		data := envelope(t)
		data[len(data)-1] ^= 0xFF
		_, err := Read(bytes.NewReader(data))
		assert.True(t, IsChecksumMismatch(err))
	})

	t.Run("Truncated", func(t *testing.T) {
		data := envelope(t)
		_, err := Read(bytes.NewReader(data[:len(data)-4]))
		assert.ErrorIs(t, err, ErrTruncated)

		_, err = Read(bytes.NewReader(data[:8]))
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestSaveLoadFile(t *testing.T) {
	payload := setPayload(t, 42, 17, 42)
	path := filepath.Join(t.TempDir(), "state.dst")

	require.NoError(t, SaveToFile(path, payload, func(o *Options) {
		o.Compression = CompressionZSTD
	}))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestChecksumReader(t *testing.T) {
	payload := []byte("distinct")
	want := ComputeChecksum(payload)

	cr := NewChecksumReader(bytes.NewReader(payload))
	out := make([]byte, len(payload))
	_, err := cr.Read(out)
	require.NoError(t, err)

	assert.Equal(t, want, cr.Sum())
	require.NoError(t, cr.Verify(want))

	err = cr.Verify(want + 1)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
}
