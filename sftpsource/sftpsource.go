// Package sftpsource adapts a file opened over SFTP into a source.Source.
package sftpsource

import (
	"fmt"

	"github.com/pkg/sftp"
)

// Source serves positional reads of a remote file over SFTP.
//
// The *sftp.File handle is owned by the caller and must stay open for as long
// as the archive is in use. Concurrent ReadAt calls are as safe as the
// underlying sftp client makes them.
type Source struct {
	f *sftp.File
}

// New wraps an already opened remote file.
func New(f *sftp.File) *Source {
	return &Source{f: f}
}

func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *Source) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat remote file error: %w", err)
	}

	return fi.Size(), nil
}
