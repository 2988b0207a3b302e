// Package cli holds the pieces shared by the unzip subcommands.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/unzip/s3source"
	"github.com/nguyengg/unzip/source"
)

// OpenSource resolves name into a backing store: s3://bucket/key URIs are
// served with ranged GetObject calls, anything else is opened as a local file.
//
// The returned close function must be called once the archive is no longer
// needed.
func OpenSource(ctx context.Context, name string) (source.Source, func() error, error) {
	if after, ok := strings.CutPrefix(name, "s3://"); ok {
		bucket, key, ok := strings.Cut(after, "/")
		if !ok || bucket == "" || key == "" {
			return nil, nil, fmt.Errorf(`invalid S3 URI "%s", expected s3://bucket/key`, name)
		}

		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load default config error: %w", err)
		}

		client := s3.NewFromConfig(cfg, func(options *s3.Options) {
			// without this, getting a bunch of WARN message below:
			// WARN Response has no supported checksum. Not validating response payload.
			options.DisableLogOutputChecksumValidationSkipped = true
		})

		src, err := s3source.New(ctx, client, bucket, key)
		if err != nil {
			return nil, nil, err
		}

		return src, func() error { return nil }, nil
	}

	f, err := source.Open(name)
	if err != nil {
		return nil, nil, err
	}

	return f, f.Close, nil
}

// NewLogger returns a logger prefixed with the position of the entry being
// worked on, for commands that walk many entries.
func NewLogger(i, n int, name string) *log.Logger {
	return log.New(os.Stderr, fmt.Sprintf(`[%d/%d] "%s": `, i+1, n, name), 0)
}
