package s3source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/unzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient implements GetAndHeadObjectClient by slicing into its in-memory
// data. calls keeps track of GetObject input parameters for asserting.
type testClient struct {
	data []byte

	// mu guards write access to calls.
	mu    sync.Mutex
	calls []s3.GetObjectInput
}

func (c *testClient) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(c.data)))}, nil
}

func (c *testClient) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	c.calls = append(c.calls, *input)
	c.mu.Unlock()

	rangeBytes := aws.ToString(input.Range)
	values := strings.SplitN(strings.TrimPrefix(rangeBytes, "bytes="), "-", 2)
	if len(values) != 2 {
		return nil, fmt.Errorf("invalid range `%s`", rangeBytes)
	}

	i, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start byte in range `%s`: %w", rangeBytes, err)
	}

	j, err := strconv.ParseInt(values[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end byte in range `%s`: %w", rangeBytes, err)
	}

	if i < 0 || j >= int64(len(c.data)) || i > j {
		return nil, fmt.Errorf("range `%s` out of bounds", rangeBytes)
	}

	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(c.data[i : j+1])),
	}, nil
}

func TestSource_ReadAt(t *testing.T) {
	client := &testClient{data: []byte("0123456789")}

	src, err := New(context.Background(), client, "bucket", "key")
	require.NoError(t, err)

	size, err := src.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	p := make([]byte, 4)
	n, err := src.ReadAt(p, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(p))
	assert.Equal(t, "bytes=3-6", aws.ToString(client.calls[0].Range))

	// reads ending past the object return what exists plus io.EOF.
	n, err = src.ReadAt(p, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = src.ReadAt(p, 100)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_InvalidOptions(t *testing.T) {
	client := &testClient{data: []byte("0123456789")}

	_, err := New(context.Background(), client, "bucket", "key", func(o *Options) { o.MaxBytesInSecond = -1 })
	assert.Error(t, err)
}

func TestSource_Archive(t *testing.T) {
	// end to end: an archive served straight out of ranged GetObject calls.
	b := &bytes.Buffer{}
	zw := zip.NewWriter(b)
	w, err := zw.Create("greeting.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello from s3"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	client := &testClient{data: b.Bytes()}
	src, err := New(context.Background(), client, "bucket", "key")
	require.NoError(t, err)

	arc, err := unzip.New(src)
	require.NoError(t, err)

	r, err := arc.Open("greeting.txt")
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello from s3", string(got))
}
