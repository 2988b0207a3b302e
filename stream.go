package unzip

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"iter"

	"github.com/klauspost/compress/flate"
	"github.com/nguyengg/unzip/cd"
	"github.com/nguyengg/unzip/source"
	"github.com/valyala/bytebufferpool"
)

const (
	lfhSig = 0x04034b50

	methodStore   = 0
	methodDeflate = 8
)

// StreamOptions customises Stream and Open.
type StreamOptions struct {
	// Ctx can be given to cancel streaming prematurely.
	Ctx context.Context

	// ChunkSize is the number of compressed bytes pulled per positional
	// read; every chunk read from the store is exactly this long except the
	// final one.
	//
	// Default to DefaultChunkSize. Must be a positive integer.
	ChunkSize int
}

func newStreamOptions(optFns []func(*StreamOptions)) (*StreamOptions, error) {
	opts := &StreamOptions{
		Ctx:       context.Background(),
		ChunkSize: DefaultChunkSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize (%d) must be a positive integer", opts.ChunkSize)
	}

	return opts, nil
}

// Stream returns a lazy sequence of decompressed byte chunks for the named
// entry.
//
// The entry's local file header is read eagerly so a bad name or corrupt
// header fails here; everything else happens on demand as the sequence is
// pulled, one positional read per chunk. An entry with an unsupported
// compression method yields UnsupportedCompressionError at first demand.
//
// The sequence is single-shot. The checksum of the decompressed bytes is
// compared against the central directory's CRC-32 strictly after the last
// chunk, yielding CRCError on mismatch; abandoning the sequence early skips
// the check.
func (a *Archive) Stream(name string, optFns ...func(*StreamOptions)) (iter.Seq2[[]byte, error], error) {
	opts, err := newStreamOptions(optFns)
	if err != nil {
		return nil, err
	}

	fh, ok := a.entries[name]
	if !ok {
		return nil, EntryNotFoundError{Name: name}
	}

	dataOff, method, err := a.readLocalHeader(fh)
	if err != nil {
		return nil, err
	}

	return func(yield func([]byte, error) bool) {
		r, err := a.newEntryReader(fh, dataOff, method, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer r.Close()

		bb := bytebufferpool.Get()
		defer bytebufferpool.Put(bb)
		if cap(bb.B) < opts.ChunkSize {
			bb.B = make([]byte, opts.ChunkSize)
		}
		buf := bb.B[:opts.ChunkSize]

		for {
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(bytes.Clone(buf[:n]), nil) {
					return
				}
			}

			switch {
			case errors.Is(err, io.EOF):
				return
			case err != nil:
				yield(nil, err)
				return
			}
		}
	}, nil
}

// Open returns an io.ReadCloser over the named entry's decompressed bytes for
// callers that want plain io.Reader composition.
//
// Unlike Stream, an unsupported compression method fails here rather than at
// first read. The CRC check behaves as in Stream: the final Read reports
// CRCError instead of io.EOF on mismatch. Close releases the inflater and must
// be called on all paths.
func (a *Archive) Open(name string, optFns ...func(*StreamOptions)) (io.ReadCloser, error) {
	opts, err := newStreamOptions(optFns)
	if err != nil {
		return nil, err
	}

	fh, ok := a.entries[name]
	if !ok {
		return nil, EntryNotFoundError{Name: name}
	}

	dataOff, method, err := a.readLocalHeader(fh)
	if err != nil {
		return nil, err
	}

	r, err := a.newEntryReader(fh, dataOff, method, opts)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// readLocalHeader reads the entry's local file header to compute where the
// compressed data starts. The sizes stored in the local header are ignored;
// the central directory's are authoritative.
func (a *Archive) readLocalHeader(fh cd.FileHeader) (dataOff int64, method uint16, err error) {
	b := make([]byte, 30)
	if err = source.ReadFullAt(a.src, b, int64(fh.Offset)); err != nil {
		return 0, 0, err
	}

	if binary.LittleEndian.Uint32(b[:4]) != lfhSig {
		return 0, 0, ErrInvalidLocalHeader
	}

	method = binary.LittleEndian.Uint16(b[8:10])
	n := int64(binary.LittleEndian.Uint16(b[26:28]))
	m := int64(binary.LittleEndian.Uint16(b[28:30]))
	return int64(fh.Offset) + 30 + n + m, method, nil
}

func (a *Archive) newEntryReader(fh cd.FileHeader, dataOff int64, method uint16, opts *StreamOptions) (*entryReader, error) {
	cr := &chunkReader{
		ctx:       opts.Ctx,
		src:       a.src,
		off:       dataOff,
		remaining: int64(fh.CompressedSize),
		chunkSize: opts.ChunkSize,
	}

	r := &entryReader{crc: crc32.NewIEEE(), expected: fh.CRC32}
	switch method {
	case methodStore:
		r.r = cr
	case methodDeflate:
		// the compressed range holds a raw deflate stream, no zlib wrapper.
		// the bufio.Reader sized to the chunk size keeps the inflater from
		// wrapping cr in its own smaller buffer, so store reads stay whole
		// chunks.
		r.inflater = flate.NewReader(bufio.NewReaderSize(cr, opts.ChunkSize))
		r.r = r.inflater
	default:
		return nil, UnsupportedCompressionError{Method: method}
	}

	return r, nil
}

// chunkReader reads the entry's compressed range in chunks of at most
// chunkSize bytes, one positional read per chunk.
type chunkReader struct {
	ctx       context.Context
	src       source.Source
	off       int64
	remaining int64
	chunkSize int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}

	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
	}

	n := min(int64(len(p)), int64(r.chunkSize), r.remaining)
	if n == 0 {
		return 0, nil
	}

	if err := source.ReadFullAt(r.src, p[:n], r.off); err != nil {
		return 0, err
	}

	r.off += n
	r.remaining -= n
	return int(n), nil
}

// entryReader pipes the compressed chunks through the inflater (or identity
// for stored entries) while keeping a running CRC-32 of the emitted bytes.
// Once the stream is exhausted the checksum is compared exactly once; all
// subsequent reads repeat the terminal result.
type entryReader struct {
	r        io.Reader
	inflater io.ReadCloser
	crc      hash.Hash32
	expected uint32
	err      error
}

func (r *entryReader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}

	n, err = r.r.Read(p)
	if n > 0 {
		_, _ = r.crc.Write(p[:n])
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if got := r.crc.Sum32(); got != r.expected {
			err = CRCError{Expected: r.expected, Got: got}
		}

		r.err = err
		r.release()
	default:
		r.err = err
		r.release()
	}

	return n, err
}

func (r *entryReader) Close() error {
	if r.err == nil {
		r.err = errors.New("reader already closed")
	}

	return r.release()
}

// release closes the inflater at most once so its allocations are returned as
// soon as the stream reaches a terminal state.
func (r *entryReader) release() error {
	if r.inflater == nil {
		return nil
	}

	err := r.inflater.Close()
	r.inflater = nil
	return err
}
