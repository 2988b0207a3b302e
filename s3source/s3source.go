// Package s3source adapts an S3 object into a source.Source using ranged
// GetObject calls.
package s3source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"
)

// GetObjectClient abstracts the S3 API needed to serve positional reads.
type GetObjectClient interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// GetAndHeadObjectClient abstracts the S3 APIs needed by New to also determine
// the object size.
type GetAndHeadObjectClient interface {
	GetObjectClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options customises the Source returned by New and NewWithSize.
type Options struct {
	// MaxBytesInSecond limits the number of bytes downloaded in one second.
	//
	// The zero-value indicates no limit. Must be a non-negative integer.
	MaxBytesInSecond int64
}

// Source serves positional reads of one S3 object.
//
// ReadAt calls are safe for concurrent use, so multiple entries of the same
// archive can be streamed at once.
type Source struct {
	ctx         context.Context
	client      GetObjectClient
	bucket, key string
	size        int64
	limiter     *rate.Limiter
}

// New determines the object's size with a HeadObject call and returns a Source
// over it.
//
// The given context is used for all subsequent S3 calls.
func New(ctx context.Context, client GetAndHeadObjectClient, bucket, key string, optFns ...func(*Options)) (*Source, error) {
	headObjectOutput, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("determine object size error: %w", err)
	}

	return NewWithSize(ctx, client, bucket, key, aws.ToInt64(headObjectOutput.ContentLength), optFns...)
}

// NewWithSize returns a Source over an object whose size is already known,
// skipping the HeadObject call.
func NewWithSize(ctx context.Context, client GetObjectClient, bucket, key string, size int64, optFns ...func(*Options)) (*Source, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	var limiter *rate.Limiter
	switch {
	case opts.MaxBytesInSecond < 0:
		return nil, fmt.Errorf("maxBytesInSecond (%d) must be a non-negative integer", opts.MaxBytesInSecond)
	case opts.MaxBytesInSecond == 0:
		limiter = rate.NewLimiter(rate.Inf, 0)
	default:
		// the burst must cover the largest single read or WaitN can never
		// succeed for it.
		limiter = rate.NewLimiter(rate.Limit(opts.MaxBytesInSecond), int(max(opts.MaxBytesInSecond, 1<<20)))
	}

	if size < 0 {
		return nil, fmt.Errorf("size (%d) must be a non-negative integer", size)
	}

	return &Source{
		ctx:     ctx,
		client:  client,
		bucket:  bucket,
		key:     key,
		size:    size,
		limiter: limiter,
	}, nil
}

func (s *Source) Size() (int64, error) {
	return s.size, nil
}

// ReadAt issues one ranged GetObject per call.
//
// See io.ReaderAt for the return values; reads past the end of the object
// return io.EOF with whatever bytes were available.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("invalid offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}

	n := min(int64(len(p)), s.size-off)
	if err := s.limiter.WaitN(s.ctx, int(n)); err != nil {
		return 0, err
	}

	getObjectOutput, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1)),
	})
	if err != nil {
		return 0, fmt.Errorf("get object error: %w", err)
	}
	defer getObjectOutput.Body.Close()

	readN, err := io.ReadFull(getObjectOutput.Body, p[:n])
	if err != nil {
		return readN, fmt.Errorf("read object range error: %w", err)
	}
	if n < int64(len(p)) {
		return readN, io.EOF
	}

	return readN, nil
}
