package source

import "bytes"

// Bytes serves an archive out of an in-memory byte slice.
type Bytes struct {
	r *bytes.Reader
}

// NewBytes wraps b without copying it. The caller must not mutate b while the
// Source is in use.
func NewBytes(b []byte) *Bytes {
	return &Bytes{r: bytes.NewReader(b)}
}

func (s *Bytes) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

func (s *Bytes) Size() (int64, error) {
	return s.r.Size(), nil
}
