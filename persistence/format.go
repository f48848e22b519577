// Package persistence wraps serialized aggregate state in a durable
// envelope: a fixed header with magic, version and CRC32, an optionally
// compressed payload, and atomic file save/load helpers.
//
// The payload itself is the core wire format produced by set.MarshalBinary
// (or a roaring bitmap snapshot); this package only guards it against
// corruption and shrinks it for transfer.
package persistence

import "errors"

const (
	// MagicNumber identifies distinctset snapshot files (ASCII: "DST0").
	MagicNumber = 0x44535430
	// Version is the current envelope format version.
	Version = 0x00010000
)

// Compression identifies the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD compression (better ratio).
	CompressionZSTD Compression = 2
)

var (
	ErrInvalidMagic       = errors.New("persistence: invalid magic number")
	ErrInvalidVersion     = errors.New("persistence: unsupported version")
	ErrInvalidCompression = errors.New("persistence: unknown compression type")
	ErrTruncated          = errors.New("persistence: truncated snapshot")
)

// FileHeader is the 32-byte header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Compression uint8
	Padding1    [3]byte
	StoredSize  uint64 // payload bytes as stored (possibly compressed)
	RawSize     uint64 // payload bytes after decompression
	Checksum    uint32 // CRC32 (IEEE) of the stored payload
}
