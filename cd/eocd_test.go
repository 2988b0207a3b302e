package cd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/nguyengg/unzip/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip writes a small archive with archive/zip and returns its bytes.
func buildZip(t *testing.T, comment string, files map[string]string) []byte {
	t.Helper()

	b := &bytes.Buffer{}
	zw := zip.NewWriter(b)
	if comment != "" {
		require.NoError(t, zw.SetComment(comment))
	}

	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return b.Bytes()
}

func TestFindEOCD(t *testing.T) {
	tests := []struct {
		name    string
		comment string
	}{
		{name: "no comment"},
		{name: "short comment", comment: "a comment"},
		{name: "long comment", comment: string(bytes.Repeat([]byte("x"), 60_000))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := map[string]string{"a.txt": "hello", "b/c.txt": "world"}
			data := buildZip(t, tt.comment, want)

			r, err := FindEOCD(source.NewBytes(data))
			require.NoError(t, err)

			assert.EqualValues(t, len(want), r.CDCount)

			// the EOCD must point at the first central directory record.
			var sig [4]byte
			_, err = source.NewBytes(data).ReadAt(sig[:], int64(r.CDOffset))
			require.NoError(t, err)
			assert.EqualValues(t, cdfhSig, binary.LittleEndian.Uint32(sig[:]))
		})
	}
}

func TestFindEOCD_SmallChunkSize(t *testing.T) {
	// a chunk size far below the comment length forces several coalesced
	// backward reads.
	data := buildZip(t, string(bytes.Repeat([]byte("y"), 10_000)), map[string]string{"a.txt": "hello"})

	r, err := FindEOCD(source.NewBytes(data), func(o *Options) { o.ChunkSize = 512 })
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.CDCount)
}

func TestFindEOCD_Missing(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := FindEOCD(source.NewBytes(nil))
		assert.ErrorIs(t, err, ErrMissingEOCD)
	})

	t.Run("not a zip", func(t *testing.T) {
		_, err := FindEOCD(source.NewBytes(bytes.Repeat([]byte("A"), 4096)))
		assert.ErrorIs(t, err, ErrMissingEOCD)
	})
}

func TestFindEOCD_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := buildZip(t, "", map[string]string{"a.txt": "hello"})
	_, err := FindEOCD(source.NewBytes(data), func(o *Options) { o.Ctx = ctx })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindEOCD_Zip64Upgrade(t *testing.T) {
	// minimal trailer: ZIP64 EOCD + locator + sentinelled EOCD with no
	// central directory in front of it.
	b := &bytes.Buffer{}
	eocdOffset := uint64(0)

	_ = binary.Write(b, binary.LittleEndian, uint32(eocd64Sig))
	_ = binary.Write(b, binary.LittleEndian, uint64(44))
	_ = binary.Write(b, binary.LittleEndian, uint16(45))
	_ = binary.Write(b, binary.LittleEndian, uint16(45))
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	_ = binary.Write(b, binary.LittleEndian, uint64(90_000)) // entries on disk
	_ = binary.Write(b, binary.LittleEndian, uint64(90_000)) // entries total
	_ = binary.Write(b, binary.LittleEndian, uint64(0x1_0000_0000))
	_ = binary.Write(b, binary.LittleEndian, uint64(0x2_0000_0000))

	_ = binary.Write(b, binary.LittleEndian, uint32(eocd64LocatorSig))
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	_ = binary.Write(b, binary.LittleEndian, eocdOffset)
	_ = binary.Write(b, binary.LittleEndian, uint32(1))

	_ = binary.Write(b, binary.LittleEndian, uint32(eocdSig))
	_ = binary.Write(b, binary.LittleEndian, uint16(0))
	_ = binary.Write(b, binary.LittleEndian, uint16(0))
	_ = binary.Write(b, binary.LittleEndian, uint16(0xffff))
	_ = binary.Write(b, binary.LittleEndian, uint16(0xffff))
	_ = binary.Write(b, binary.LittleEndian, uint32(0xffffffff))
	_ = binary.Write(b, binary.LittleEndian, uint32(0xffffffff))
	_ = binary.Write(b, binary.LittleEndian, uint16(0))

	r, err := FindEOCD(source.NewBytes(b.Bytes()))
	require.NoError(t, err)
	assert.EqualValues(t, 90_000, r.CDCount)
	assert.EqualValues(t, 0x1_0000_0000, r.CDSize)
	assert.EqualValues(t, 0x2_0000_0000, r.CDOffset)
}

func TestFindEOCD_NoZip64Locator(t *testing.T) {
	data := buildZip(t, "", map[string]string{"a.txt": "hello"})

	r, err := FindEOCD(source.NewBytes(data))
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.CDCount)
}
