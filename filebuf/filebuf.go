// Package filebuf provides sliding read windows over a source.Source that
// coalesce small positional reads into large ones.
//
// Backward walks from the end of the store towards the start (used to locate
// the end-of-central-directory record); Forward walks from a start offset
// towards an upper limit (used to parse the central directory). Both pull
// max(chunk size, required) bytes per underlying read so that byte-at-a-time
// walking stays I/O-efficient.
package filebuf

import (
	"errors"
	"fmt"

	"github.com/nguyengg/unzip/source"
)

// DefaultChunkSize is the default value of [Options.ChunkSize].
const DefaultChunkSize = 65_000

var (
	// ErrShortRead is returned by NextChunk if the remaining addressable
	// range holds fewer bytes than requested.
	ErrShortRead = errors.New("short read: fewer bytes remain than requested")

	// ErrInvalidCount is returned by MoveBackwardBy and MoveForwardBy if the
	// count exceeds the currently buffered bytes.
	ErrInvalidCount = errors.New("invalid count: exceeds buffered bytes")
)

// Options customises the buffers.
type Options struct {
	// ChunkSize is the minimum number of bytes pulled per underlying read;
	// a read is shorter only where fewer bytes remain before the start of the
	// store (Backward) or the limit (Forward).
	//
	// Default to DefaultChunkSize. Must be a positive integer.
	ChunkSize int
}

func newOptions(optFns []func(*Options)) (*Options, error) {
	opts := &Options{ChunkSize: DefaultChunkSize}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize (%d) must be a positive integer", opts.ChunkSize)
	}

	return opts, nil
}

// Backward is a read window whose end starts at end-of-store and only ever
// moves towards offset 0.
//
// The buffered bytes always span [end-len(buf), end).
type Backward struct {
	src       source.Source
	buf       []byte
	end       int64
	chunkSize int
}

// NewBackward positions the window end at the end of src.
func NewBackward(src source.Source, optFns ...func(*Options)) (*Backward, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}

	size, err := src.Size()
	if err != nil {
		return nil, err
	}

	return &Backward{src: src, end: size, chunkSize: opts.ChunkSize}, nil
}

// NextChunk returns the n bytes ending at the current window end, pulling
// earlier bytes from the store if the buffer lacks them.
//
// The returned slice is valid until the next NextChunk call.
func (b *Backward) NextChunk(n int) ([]byte, error) {
	if need := n - len(b.buf); need > 0 {
		bufStart := b.end - int64(len(b.buf))
		if int64(need) > bufStart {
			return nil, ErrShortRead
		}

		readLen := min(bufStart, int64(max(b.chunkSize, need)))
		p := make([]byte, readLen, readLen+int64(len(b.buf)))
		if err := source.ReadFullAt(b.src, p, bufStart-readLen); err != nil {
			return nil, err
		}

		b.buf = append(p, b.buf...)
	}

	return b.buf[len(b.buf)-n:], nil
}

// MoveBackwardBy shrinks the window by dropping its k trailing bytes.
func (b *Backward) MoveBackwardBy(k int) error {
	if k < 0 || k > len(b.buf) {
		return ErrInvalidCount
	}

	b.buf = b.buf[:len(b.buf)-k]
	b.end -= int64(k)
	return nil
}

// End returns the absolute offset of the current window end.
func (b *Backward) End() int64 {
	return b.end
}

// Forward is a read window whose start begins at a given offset and only ever
// moves towards an upper limit.
//
// The buffered bytes always span [start, start+len(buf)).
type Forward struct {
	src       source.Source
	buf       []byte
	start     int64
	limit     int64
	chunkSize int
}

// NewForward positions the window start at the given offset; no byte at or
// past limit is ever read.
func NewForward(src source.Source, start, limit int64, optFns ...func(*Options)) (*Forward, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}

	if start < 0 || limit < start {
		return nil, fmt.Errorf("invalid window [%d, %d)", start, limit)
	}

	return &Forward{src: src, start: start, limit: limit, chunkSize: opts.ChunkSize}, nil
}

// NextChunk returns the n bytes starting at the current window start, pulling
// further bytes from the store if the buffer lacks them.
//
// The returned slice is valid until the next NextChunk call.
func (f *Forward) NextChunk(n int) ([]byte, error) {
	if need := n - len(f.buf); need > 0 {
		readStart := f.start + int64(len(f.buf))
		if int64(need) > f.limit-readStart {
			return nil, ErrShortRead
		}

		readLen := min(f.limit-readStart, int64(max(f.chunkSize, need)))
		p := make([]byte, readLen)
		if err := source.ReadFullAt(f.src, p, readStart); err != nil {
			return nil, err
		}

		f.buf = append(f.buf, p...)
	}

	return f.buf[:n], nil
}

// MoveForwardBy advances the window start by k bytes.
func (f *Forward) MoveForwardBy(k int) error {
	if k < 0 || k > len(f.buf) {
		return ErrInvalidCount
	}

	f.buf = f.buf[k:]
	f.start += int64(k)
	return nil
}

// Start returns the absolute offset of the current window start.
func (f *Forward) Start() int64 {
	return f.start
}
