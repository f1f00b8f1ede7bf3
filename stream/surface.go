package stream

import (
	"bytes"
	"sync"
)

// ClearByte written to a Surface discards everything before it.
const ClearByte = '\f'

// Surface is the single mount target units write their frame into.
type Surface struct {
	mu      sync.Mutex
	buf     []byte
	version uint64
}

// NewSurface creates an empty Surface.
func NewSurface() *Surface {
	return new(Surface)
}

// Write appends p, honouring ClearByte.
func (s *Surface) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rest := p
	if i := bytes.LastIndexByte(rest, ClearByte); i >= 0 {
		s.buf = s.buf[:0]
		rest = rest[i+1:]
	}
	s.buf = append(s.buf, rest...)
	s.version++
	return len(p), nil
}

// String returns the current content.
func (s *Surface) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

// Empty reports whether nothing is mounted.
func (s *Surface) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(bytes.TrimSpace(s.buf)) == 0
}

// Version increments on every write.
func (s *Surface) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot parses the current content into a Frame.
func (s *Surface) Snapshot() (*Frame, uint64, error) {
	s.mu.Lock()
	text := string(s.buf)
	version := s.version
	s.mu.Unlock()
	f, err := ParseFrame(text)
	return f, version, err
}
