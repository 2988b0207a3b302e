package unzip

import (
	"errors"
	"fmt"

	"github.com/nguyengg/unzip/cd"
)

// Sentinel errors for malformed archives. The central-directory ones are
// re-exported from the cd package so callers only ever need to import unzip.
var (
	// ErrMissingEOCD is returned by New if no end-of-central-directory record
	// was found within the last 5 MiB of the archive.
	ErrMissingEOCD = cd.ErrMissingEOCD

	// ErrInvalidCentralDirectory is returned by New if the central directory
	// ends short or holds a malformed record.
	ErrInvalidCentralDirectory = cd.ErrInvalidCentralDirectory

	// ErrInvalidCDFileHeader is returned by New if the first central
	// directory record does not carry the file header signature.
	ErrInvalidCDFileHeader = cd.ErrInvalidCDFileHeader

	// ErrOverlappingEntries is returned by New if two entries claim
	// intersecting compressed byte ranges.
	ErrOverlappingEntries = cd.ErrOverlappingEntries

	// ErrInvalidLocalHeader is returned by Stream and Open if the entry's
	// local file header does not carry the expected signature.
	ErrInvalidLocalHeader = errors.New("Invalid zip file, invalid local file header")
)

// UnsupportedCompressionError is returned when an entry uses a compression
// method other than store (0) or deflate (8).
type UnsupportedCompressionError struct {
	Method uint16
}

func (e UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("Compression method %d is not supported", e.Method)
}

// EntryNotFoundError is returned by Stream and Open for a name the archive
// does not contain.
type EntryNotFoundError struct {
	Name string
}

func (e EntryNotFoundError) Error() string {
	return fmt.Sprintf("File %s not present in the zip", e.Name)
}

// CRCError is returned at end-of-stream when the checksum of the decompressed
// bytes disagrees with the one recorded in the central directory.
type CRCError struct {
	Expected, Got uint32
}

func (e CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch. expected: %d got: %d", e.Expected, e.Got)
}
