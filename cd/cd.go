// Package cd locates and parses the central directory of a ZIP archive served
// by a source.Source.
//
// FindEOCD discovers the end-of-central-directory record (upgrading to the
// ZIP64 variant when present); Parse walks the central directory it points at,
// merging ZIP64 extra-field overrides into each record and rejecting archives
// whose entries claim overlapping compressed bytes.
package cd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/nguyengg/unzip/filebuf"
	"github.com/nguyengg/unzip/rangetree"
	"github.com/nguyengg/unzip/source"
)

const (
	cdfhSig = 0x02014b50

	// zip64ExtraID is the header ID of the ZIP64 extended information extra
	// field.
	zip64ExtraID = 0x0001

	// sentinel32 in a 32-bit size/offset field defers to the ZIP64 extra
	// field for the real 64-bit value.
	sentinel32 = 0xffffffff
)

var (
	// ErrMissingEOCD is returned by FindEOCD if no EOCD record was found
	// within the last 5 MiB of the archive.
	ErrMissingEOCD = errors.New("Invalid zip file, missing EOCD record")

	// ErrInvalidCentralDirectory is returned by Parse if the central
	// directory ends short, holds a different number of records than the
	// EOCD states, or holds a malformed record (other than a first record
	// lacking the file header signature, see ErrInvalidCDFileHeader).
	ErrInvalidCentralDirectory = errors.New("Invalid zip file, invalid central directory")

	// ErrInvalidCDFileHeader is returned by Parse if the very first central
	// directory record does not carry the file header signature.
	ErrInvalidCDFileHeader = errors.New("Invalid zip file, invalid central directory file header")

	// ErrOverlappingEntries is returned by Parse if two entries claim
	// intersecting compressed byte ranges, the telltale of a zip bomb built
	// by quoting the same data from many records.
	ErrOverlappingEntries = errors.New("Invalid zip file, found overlapping zip entries")
)

// FileHeader is one central directory record after ZIP64 merge.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Central_directory_file_header_(CDFH).
type FileHeader struct {
	// Name is the raw file name bytes as stored; no character set conversion
	// is applied regardless of the UTF-8 general-purpose flag. Names ending
	// in "/" denote directories.
	Name string

	// Flags is the general-purpose bit flag.
	Flags uint16

	// Method is the compression method; only 0 (store) and 8 (deflate) can
	// be streamed.
	Method uint16

	// ModifiedDate and ModifiedTime are the raw MS-DOS date and time words.
	ModifiedDate, ModifiedTime uint16

	// Modified is ModifiedDate/ModifiedTime decoded at 2-second resolution,
	// or the zero time.Time if they do not form a valid calendar date.
	Modified time.Time

	// CRC32 is the expected checksum of the uncompressed data.
	CRC32 uint32

	// CompressedSize and UncompressedSize are byte counts after ZIP64 merge.
	CompressedSize, UncompressedSize uint64

	// Offset is the absolute offset of the entry's local file header.
	Offset uint64

	// Extra is the raw extra field area.
	Extra []byte
}

// fixedSizeCDFileHeader needs to be fixed size to work with binary.Read.
//
// https://en.wikipedia.org/wiki/ZIP_(file_format)#Central_directory_file_header_(CDFH)
type fixedSizeCDFileHeader struct {
	Signature         uint32
	CreatorVersion    uint16
	ReaderVersion     uint16
	Flags             uint16
	Method            uint16
	ModifiedTime      uint16
	ModifiedDate      uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	FileNameLength    uint16
	ExtraFieldLength  uint16
	FileCommentLength uint16
	DiskNumber        uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	Offset            uint32
}

// Parse returns an iterator over the central directory records described by r.
//
// The iterator stops at the first error it yields. A first record without the
// file header signature maps to ErrInvalidCDFileHeader; every other malformed
// or short record, and a record count that disagrees with r, maps to
// ErrInvalidCentralDirectory. Any entry whose compressed range intersects a
// previous entry's stops the walk with ErrOverlappingEntries.
func Parse(src source.Source, r EOCDRecord, optFns ...func(*Options)) (iter.Seq2[FileHeader, error], error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}

	limit := int64(r.CDOffset + r.CDSize)
	fb, err := filebuf.NewForward(src, int64(r.CDOffset), limit, func(o *filebuf.Options) { o.ChunkSize = opts.ChunkSize })
	if err != nil {
		return nil, err
	}

	return func(yield func(FileHeader, error) bool) {
		ranges := rangetree.New()

		for count := uint64(0); ; count++ {
			select {
			case <-opts.Ctx.Done():
				yield(FileHeader{}, opts.Ctx.Err())
				return
			default:
			}

			if fb.Start() >= limit {
				// the directory must hold exactly CDCount records; a record
				// crossing the limit already failed with a short read, so
				// reaching here means the walk ended precisely at the limit.
				if count != r.CDCount {
					yield(FileHeader{}, ErrInvalidCentralDirectory)
				}

				return
			}

			fh, err := nextFileHeader(fb, count == 0)
			if err != nil {
				yield(FileHeader{}, err)
				return
			}

			if ranges.Overlap(int64(fh.Offset), int64(fh.CompressedSize)) {
				yield(FileHeader{}, ErrOverlappingEntries)
				return
			}
			ranges.Insert(int64(fh.Offset), int64(fh.CompressedSize))

			if !yield(fh, nil) {
				return
			}
		}
	}, nil
}

// nextFileHeader decodes one record from the buffer and advances past it.
func nextFileHeader(fb *filebuf.Forward, first bool) (fh FileHeader, err error) {
	b, err := fb.NextChunk(46)
	if err != nil {
		return fh, ErrInvalidCentralDirectory
	}

	fsfh := &fixedSizeCDFileHeader{}
	if err = binary.Read(bytes.NewReader(b), binary.LittleEndian, fsfh); err != nil {
		return fh, fmt.Errorf("parse CD file header error: %w", err)
	}

	if fsfh.Signature != cdfhSig {
		if first {
			return fh, ErrInvalidCDFileHeader
		}

		return fh, ErrInvalidCentralDirectory
	}

	if err = fb.MoveForwardBy(46); err != nil {
		return fh, ErrInvalidCentralDirectory
	}

	fh = FileHeader{
		Flags:            fsfh.Flags,
		Method:           fsfh.Method,
		ModifiedTime:     fsfh.ModifiedTime,
		ModifiedDate:     fsfh.ModifiedDate,
		CRC32:            fsfh.CRC32,
		CompressedSize:   uint64(fsfh.CompressedSize),
		UncompressedSize: uint64(fsfh.UncompressedSize),
		Offset:           uint64(fsfh.Offset),
	}
	fh.Modified = msDosTimeToTime(fh.ModifiedDate, fh.ModifiedTime)

	n, m, k := int(fsfh.FileNameLength), int(fsfh.ExtraFieldLength), int(fsfh.FileCommentLength)
	if n > 0 {
		if b, err = fb.NextChunk(n); err != nil {
			return fh, ErrInvalidCentralDirectory
		}

		fh.Name = string(b)
		if err = fb.MoveForwardBy(n); err != nil {
			return fh, ErrInvalidCentralDirectory
		}
	}
	if m > 0 {
		if b, err = fb.NextChunk(m); err != nil {
			return fh, ErrInvalidCentralDirectory
		}

		fh.Extra = bytes.Clone(b)
		if err = fb.MoveForwardBy(m); err != nil {
			return fh, ErrInvalidCentralDirectory
		}
	}
	if k > 0 {
		// the comment is skipped, but it still must be present in full.
		if _, err = fb.NextChunk(k); err != nil {
			return fh, ErrInvalidCentralDirectory
		}
		if err = fb.MoveForwardBy(k); err != nil {
			return fh, ErrInvalidCentralDirectory
		}
	}

	if err = mergeZip64(&fh, fsfh); err != nil {
		return fh, err
	}

	return fh, nil
}

// mergeZip64 replaces the sentinelled 32-bit fields with the 64-bit values
// from the ZIP64 extended information extra field. The field stores only the
// sentinelled values, in the fixed order uncompressed size, compressed size,
// local header offset.
func mergeZip64(fh *FileHeader, fsfh *fixedSizeCDFileHeader) error {
	needUncompressed := fsfh.UncompressedSize == sentinel32
	needCompressed := fsfh.CompressedSize == sentinel32
	needOffset := fsfh.Offset == sentinel32
	if !needUncompressed && !needCompressed && !needOffset {
		return nil
	}

	for b := fh.Extra; len(b) >= 4; {
		id := binary.LittleEndian.Uint16(b[:2])
		size := int(binary.LittleEndian.Uint16(b[2:4]))
		if b = b[4:]; size > len(b) {
			return ErrInvalidCentralDirectory
		}

		if id != zip64ExtraID {
			b = b[size:]
			continue
		}

		data := b[:size]
		next := func() (uint64, bool) {
			if len(data) < 8 {
				return 0, false
			}

			v := binary.LittleEndian.Uint64(data[:8])
			data = data[8:]
			return v, true
		}

		var ok bool
		if needUncompressed {
			if fh.UncompressedSize, ok = next(); !ok {
				return ErrInvalidCentralDirectory
			}
		}
		if needCompressed {
			if fh.CompressedSize, ok = next(); !ok {
				return ErrInvalidCentralDirectory
			}
		}
		if needOffset {
			if fh.Offset, ok = next(); !ok {
				return ErrInvalidCentralDirectory
			}
		}

		return nil
	}

	// a sentinelled field with no ZIP64 extra field to resolve it.
	return ErrInvalidCentralDirectory
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
//
// Unlike the archive/zip version this one validates the calendar fields by
// round-tripping through time.Date's normalisation; encoded values that do not
// form a real date yield the zero time.Time.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
	year, month, day := int(dosDate>>9)+1980, int(dosDate>>5&0xf), int(dosDate&0x1f)
	// time bits 0-4: second/2; 5-10: minute; 11-15: hour
	hour, minute, sec := int(dosTime>>11), int(dosTime>>5&0x3f), int(dosTime&0x1f)*2

	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}
	}

	return t
}
