package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Options configures snapshot writing.
type Options struct {
	// Compression selects the payload encoding. Defaults to CompressionNone.
	Compression Compression
}

// Write writes an enveloped snapshot: header, then payload.
func Write(w io.Writer, payload []byte, optFns ...func(*Options)) error {
	var o Options
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	stored, used, err := compress(payload, o.Compression)
	if err != nil {
		return err
	}

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(used),
		StoredSize:  uint64(len(stored)),
		RawSize:     uint64(len(payload)),
		Checksum:    ComputeChecksum(stored),
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Read reads an enveloped snapshot and returns the raw payload.
func Read(r io.Reader) ([]byte, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}

	cr := NewChecksumReader(r)
	stored := make([]byte, header.StoredSize)
	if _, err := io.ReadFull(cr, stored); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}

	if err := cr.Verify(header.Checksum); err != nil {
		return nil, err
	}

	return decompress(stored, Compression(header.Compression), header.RawSize)
}

// SaveToFile writes a snapshot to filename atomically: the envelope goes to
// a temp file in the same directory, which is then renamed over the target.
func SaveToFile(filename string, payload []byte, optFns ...func(*Options)) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Write(buf, payload, optFns...); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile reads a snapshot written by SaveToFile.
func LoadFromFile(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(bufio.NewReaderSize(f, 256*1024))
}
