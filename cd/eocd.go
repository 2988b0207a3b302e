package cd

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nguyengg/unzip/filebuf"
	"github.com/nguyengg/unzip/source"
)

const (
	eocdSig          = 0x06054b50
	eocd64LocatorSig = 0x07064b50
	eocd64Sig        = 0x06064b50

	// maxCommentBytes caps the backward walk through the EOCD comment; an
	// archive whose comment is longer than this is rejected outright.
	maxCommentBytes = 5 * 1024 * 1024
)

// EOCDRecord is the end-of-central-directory record reduced to the three
// fields the parser needs. If the archive carries a ZIP64 EOCD, these are the
// 64-bit values from it.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	// CDCount is the total number of central directory records.
	CDCount uint64
	// CDSize is the size of the central directory in bytes.
	CDSize uint64
	// CDOffset is the offset of the start of the central directory, relative
	// to the start of the archive.
	CDOffset uint64
}

// Options customises FindEOCD and Parse.
type Options struct {
	// Ctx can be given to cancel the scan prematurely.
	Ctx context.Context

	// ChunkSize is the minimum number of bytes pulled per positional read
	// while walking the archive; a read is shorter only where fewer bytes
	// remain before the end of the walk.
	//
	// Default to filebuf.DefaultChunkSize. Must be a positive integer.
	ChunkSize int
}

func newOptions(optFns []func(*Options)) (*Options, error) {
	opts := &Options{
		Ctx:       context.Background(),
		ChunkSize: filebuf.DefaultChunkSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize (%d) must be a positive integer", opts.ChunkSize)
	}

	return opts, nil
}

// fixedSizeEOCDRecord needs to be fixed size to work with binary.Read.
//
// https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD)
type fixedSizeEOCDRecord struct {
	Signature     uint32
	DiskNumber    uint16
	CDDiskOffset  uint16
	CDCountOnDisk uint16
	CDCount       uint16
	CDSize        uint32
	CDOffset      uint32
	CommentLength uint16
}

// FindEOCD walks backwards from the end of src one byte at a time until the
// trailing 22 bytes parse as an EOCD record whose comment length equals the
// number of bytes walked so far. The self-check removes false matches from an
// EOCD signature occurring inside the comment bytes.
//
// After a match, the 20 bytes immediately preceding the record are checked for
// a ZIP64 EOCD locator; if present, the 64-bit counts from the ZIP64 EOCD it
// points at replace the 32-bit ones.
//
// Returns ErrMissingEOCD if no record is found within the last 5 MiB.
func FindEOCD(src source.Source, optFns ...func(*Options)) (r EOCDRecord, err error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return r, err
	}

	fb, err := filebuf.NewBackward(src, func(o *filebuf.Options) { o.ChunkSize = opts.ChunkSize })
	if err != nil {
		return r, err
	}

	for consumed := 0; ; consumed++ {
		select {
		case <-opts.Ctx.Done():
			return r, opts.Ctx.Err()
		default:
		}

		b, err := fb.NextChunk(22)
		if errors.Is(err, filebuf.ErrShortRead) {
			return r, ErrMissingEOCD
		} else if err != nil {
			return r, err
		}

		if binary.LittleEndian.Uint32(b[:4]) == eocdSig && int(binary.LittleEndian.Uint16(b[20:22])) == consumed {
			fsr := &fixedSizeEOCDRecord{}
			if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, fsr); err != nil {
				return r, fmt.Errorf("find EOCD: parse error: %w", err)
			}

			r = EOCDRecord{
				CDCount:  uint64(fsr.CDCount),
				CDSize:   uint64(fsr.CDSize),
				CDOffset: uint64(fsr.CDOffset),
			}

			if err = fb.MoveBackwardBy(22); err != nil {
				return r, fmt.Errorf("find EOCD: %w", err)
			}

			return upgradeZip64(src, fb, r)
		}

		if consumed >= maxCommentBytes {
			return r, ErrMissingEOCD
		}

		if err = fb.MoveBackwardBy(1); err != nil {
			return r, ErrMissingEOCD
		}
	}
}

// upgradeZip64 replaces r with the 64-bit record if a ZIP64 EOCD locator
// immediately precedes the EOCD the buffer is now positioned at.
func upgradeZip64(src source.Source, fb *filebuf.Backward, r EOCDRecord) (EOCDRecord, error) {
	b, err := fb.NextChunk(20)
	if errors.Is(err, filebuf.ErrShortRead) {
		// too small for a locator; keep the 32-bit record.
		return r, nil
	} else if err != nil {
		return r, err
	}

	if binary.LittleEndian.Uint32(b[:4]) != eocd64LocatorSig {
		return r, nil
	}

	eocdOffset := binary.LittleEndian.Uint64(b[8:16])

	p := make([]byte, 56)
	if err = source.ReadFullAt(src, p, int64(eocdOffset)); err != nil {
		return r, fmt.Errorf("read ZIP64 EOCD error: %w", err)
	}

	if binary.LittleEndian.Uint32(p[:4]) != eocd64Sig {
		return r, ErrMissingEOCD
	}

	// https://en.wikipedia.org/wiki/ZIP_(file_format)#ZIP64: total record count
	// is at offset 32, CD size at 40, CD offset at 48.
	return EOCDRecord{
		CDCount:  binary.LittleEndian.Uint64(p[32:40]),
		CDSize:   binary.LittleEndian.Uint64(p[40:48]),
		CDOffset: binary.LittleEndian.Uint64(p[48:56]),
	}, nil
}
