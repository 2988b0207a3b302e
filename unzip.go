// Package unzip streams the contents of ZIP archives without requiring the
// archive to be a local file.
//
// Any backing store that reports its total size and serves exact positional
// reads can be the archive source (see [source.Source]); adapters exist for
// local files, in-memory buffers, S3 objects, and SFTP files. New enumerates
// the entries by reading the archive's central directory; Stream and Open
// return on-demand decompressed bytes for individual entries. Store (0) and
// deflate (8) compression methods are supported, as are the ZIP64 extensions
// for archives past the 32-bit limits.
package unzip

import (
	"context"
	"fmt"

	"github.com/nguyengg/unzip/cd"
	"github.com/nguyengg/unzip/source"
)

// Options customises New.
type Options struct {
	// Ctx can be given to cancel reading the central directory prematurely.
	Ctx context.Context

	// ChunkSize is the minimum number of bytes pulled per positional read
	// while locating and parsing the central directory; a read is shorter
	// only where fewer bytes remain before the end of the walk.
	//
	// Default to DefaultChunkSize. Must be a positive integer.
	ChunkSize int
}

// DefaultChunkSize is the default number of bytes per positional read, both
// while parsing the central directory and while streaming entries.
const DefaultChunkSize = 65_000

// Archive is a handle to a ZIP archive backed by a source.Source.
//
// An Archive is immutable once New returns and is safe for concurrent use;
// whether entries can be streamed concurrently depends on the Source being
// safe for concurrent ReadAt. The backing store is owned by the caller and
// must stay open for as long as entries are being streamed.
type Archive struct {
	src     source.Source
	names   []string
	entries map[string]cd.FileHeader
}

// New reads the central directory of the archive served by src.
//
// The end-of-central-directory record is located with a bounded backward scan
// (its comment may be at most 5 MiB), then every central directory record is
// decoded eagerly; errors from either phase are returned here rather than
// deferred to streaming time.
func New(src source.Source, optFns ...func(*Options)) (*Archive, error) {
	opts := &Options{
		Ctx:       context.Background(),
		ChunkSize: DefaultChunkSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize (%d) must be a positive integer", opts.ChunkSize)
	}

	cdOptFn := func(o *cd.Options) {
		o.Ctx = opts.Ctx
		o.ChunkSize = opts.ChunkSize
	}

	r, err := cd.FindEOCD(src, cdOptFn)
	if err != nil {
		return nil, err
	}

	records, err := cd.Parse(src, r, cdOptFn)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		src:     src,
		names:   make([]string, 0, r.CDCount),
		entries: make(map[string]cd.FileHeader, r.CDCount),
	}
	for fh, err := range records {
		if err != nil {
			return nil, err
		}

		// duplicate names: the later record wins but keeps the position of
		// the first so Entries stays in central-directory order.
		if _, ok := a.entries[fh.Name]; !ok {
			a.names = append(a.names, fh.Name)
		}
		a.entries[fh.Name] = fh
	}

	return a, nil
}

// Entries returns the archive's entries in central-directory order.
func (a *Archive) Entries() []Entry {
	entries := make([]Entry, 0, len(a.names))
	for _, name := range a.names {
		fh := a.entries[name]
		entries = append(entries, Entry{
			Name:             fh.Name,
			Modified:         fh.Modified,
			CompressedSize:   fh.CompressedSize,
			UncompressedSize: fh.UncompressedSize,
		})
	}

	return entries
}
