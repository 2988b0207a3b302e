// Package source defines the capability a ZIP archive's backing store must
// provide: total size reporting and exact positional reads.
//
// Adapters for local files and in-memory buffers live here; adapters for
// remote stores (S3, SFTP) live in their own packages so their dependencies
// stay out of the core.
package source

import (
	"fmt"
	"io"
)

// Source is the byte source an archive is read from.
//
// ReadAt follows the io.ReaderAt contract: it must read exactly len(p) bytes
// at offset off or return an error explaining why fewer were read. Reads whose
// range falls outside the store must fail. A Source whose ReadAt is safe for
// concurrent use can serve multiple entry streams at once.
type Source interface {
	io.ReaderAt

	// Size returns the total number of bytes addressable by ReadAt.
	Size() (int64, error)
}

// ReadFullAt reads exactly len(p) bytes at off from src.
//
// A Source that returns fewer bytes without an error violates the io.ReaderAt
// contract; ReadFullAt surfaces that case as an error so callers never see a
// partially filled buffer.
func ReadFullAt(src Source, p []byte, off int64) error {
	switch n, err := src.ReadAt(p, off); {
	case n == len(p):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("read %d bytes at offset %d: got %d bytes without error", len(p), off, n)
	}
}
