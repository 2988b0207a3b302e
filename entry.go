package unzip

import (
	"strings"
	"time"
)

// Entry is the public view of one file in the archive.
type Entry struct {
	// Name is the raw name bytes as stored in the archive, passed through
	// unchanged; the UTF-8 general-purpose flag is not interpreted. Names
	// ending in "/" denote directories.
	Name string

	// Modified is the entry's modification time at 2-second resolution, or
	// the zero time.Time if the stored MS-DOS date/time is not a valid
	// calendar date.
	Modified time.Time

	// CompressedSize and UncompressedSize are the entry's byte counts from
	// the central directory, 64-bit after ZIP64 merge.
	CompressedSize, UncompressedSize uint64
}

// IsDir reports whether the entry denotes a directory.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}
