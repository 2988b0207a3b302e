package unzip

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// helpers to assemble raw archives byte by byte for the malformed, ZIP64, and
// overlap cases that archive/zip cannot produce. all multi-byte values are
// little-endian per the ZIP format.

func le(b *bytes.Buffer, vs ...any) {
	for _, v := range vs {
		_ = binary.Write(b, binary.LittleEndian, v)
	}
}

// localHeader emits a local file header with no extra field.
func localHeader(name string, method uint16, crc, size uint32) []byte {
	b := &bytes.Buffer{}
	le(b,
		uint32(0x04034b50),
		uint16(20), // reader version
		uint16(0),  // flags
		method,
		uint16(0), uint16(0), // mod time, mod date
		crc,
		size, size,
		uint16(len(name)),
		uint16(0), // extra field length
	)
	b.WriteString(name)
	return b.Bytes()
}

// centralHeader emits one central directory file header.
func centralHeader(name string, method, modTime, modDate uint16, crc, csize, usize, offset uint32, extra []byte) []byte {
	b := &bytes.Buffer{}
	le(b,
		uint32(0x02014b50),
		uint16(20), uint16(20), // creator, reader versions
		uint16(0), // flags
		method,
		modTime, modDate,
		crc,
		csize, usize,
		uint16(len(name)),
		uint16(len(extra)),
		uint16(0),            // comment length
		uint16(0), uint16(0), // disk number, internal attrs
		uint32(0), // external attrs
		offset,
	)
	b.WriteString(name)
	b.Write(extra)
	return b.Bytes()
}

// endRecord emits the 22-byte EOCD plus comment.
func endRecord(count uint16, cdSize, cdOffset uint32, comment []byte) []byte {
	b := &bytes.Buffer{}
	le(b,
		uint32(0x06054b50),
		uint16(0), uint16(0), // disk number, CD disk offset
		count, count,
		cdSize, cdOffset,
		uint16(len(comment)),
	)
	b.Write(comment)
	return b.Bytes()
}

// zip64Extra emits a ZIP64 extended information extra field holding the given
// 64-bit values in order.
func zip64Extra(vals ...uint64) []byte {
	b := &bytes.Buffer{}
	le(b, uint16(0x0001), uint16(8*len(vals)))
	for _, v := range vals {
		le(b, v)
	}
	return b.Bytes()
}

// zip64End emits the ZIP64 EOCD record, its locator, and the sentinelled
// 32-bit EOCD.
func zip64End(count, cdSize, cdOffset, eocdOffset uint64) []byte {
	b := &bytes.Buffer{}
	le(b,
		uint32(0x06064b50),
		uint64(44),             // size of the remainder of the record
		uint16(45), uint16(45), // creator, reader versions
		uint32(0), uint32(0), // disk number, CD start disk
		count, count,
		cdSize, cdOffset,
	)
	le(b,
		uint32(0x07064b50),
		uint32(0), // disk with the ZIP64 EOCD
		eocdOffset,
		uint32(1), // total disks
	)
	le(b,
		uint32(0x06054b50),
		uint16(0), uint16(0),
		uint16(0xffff), uint16(0xffff),
		uint32(0xffffffff), uint32(0xffffffff),
		uint16(0),
	)
	return b.Bytes()
}

// storedZip assembles a well-formed single-disk archive of stored entries,
// returning the raw bytes. The CRC-32 of data is recorded in both headers
// unless a non-zero crc override is given.
type storedEntry struct {
	name string
	data []byte
	// overrides; zero values mean "derive from data".
	method uint16
	crc    uint32
}

func storedZip(comment []byte, entries ...storedEntry) []byte {
	b := &bytes.Buffer{}
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		crc := e.crc
		if crc == 0 {
			crc = crc32.ChecksumIEEE(e.data)
		}

		offsets[i] = uint32(b.Len())
		b.Write(localHeader(e.name, e.method, crc, uint32(len(e.data))))
		b.Write(e.data)
	}

	cdOffset := uint32(b.Len())
	for i, e := range entries {
		crc := e.crc
		if crc == 0 {
			crc = crc32.ChecksumIEEE(e.data)
		}

		b.Write(centralHeader(e.name, e.method, 0, 0, crc, uint32(len(e.data)), uint32(len(e.data)), offsets[i], nil))
	}

	b.Write(endRecord(uint16(len(entries)), uint32(b.Len())-cdOffset, cdOffset, comment))
	return b.Bytes()
}

// writeZip builds an archive with archive/zip for the well-formed round-trip
// cases; files whose names end in "/" become directory entries.
func writeZip(files map[string][]byte, names []string, deflate map[string]bool, comment string) []byte {
	b := &bytes.Buffer{}
	zw := zip.NewWriter(b)
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			panic(err)
		}
	}

	for _, name := range names {
		fh := &zip.FileHeader{Name: name, Method: zip.Store}
		if deflate[name] {
			fh.Method = zip.Deflate
		}

		w, err := zw.CreateHeader(fh)
		if err != nil {
			panic(err)
		}

		if _, err = w.Write(files[name]); err != nil {
			panic(err)
		}
	}

	if err := zw.Close(); err != nil {
		panic(err)
	}

	return b.Bytes()
}
