package source

import (
	"fmt"
	"os"
)

// File adapts an *os.File into a Source.
//
// The file handle is owned by the caller; closing it (or use Open which hands
// ownership to the returned File) invalidates the Source.
type File struct {
	f *os.File
}

// NewFile wraps an already opened file.
func NewFile(f *os.File) *File {
	return &File{f: f}
}

// Open opens the named file for reading. The returned File owns the handle and
// should be closed once the archive is no longer needed.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf(`open file "%s" error: %w`, name, err)
	}

	return &File{f: f}, nil
}

func (s *File) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *File) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file error: %w", err)
	}

	return fi.Size(), nil
}

func (s *File) Close() error {
	return s.f.Close()
}
