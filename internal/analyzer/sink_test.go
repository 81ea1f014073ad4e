package analyzer

import (
	"context"
	"errors"
	"path"
	"sync"
)

// memorySink records artifacts in memory. Directories listed in failDirs
// reject writes.
type memorySink struct {
	mu       sync.Mutex
	files    map[string][]byte
	failDirs map[string]bool
}

func newMemorySink(failDirs ...string) *memorySink {
	s := &memorySink{files: make(map[string][]byte), failDirs: make(map[string]bool)}
	for _, d := range failDirs {
		s.failDirs[d] = true
	}
	return s
}

func (s *memorySink) Put(_ context.Context, dir, name string, data []byte) (string, error) {
	if s.failDirs[dir] {
		return "", errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := path.Join(dir, name)
	s.files[p] = data
	return p, nil
}

func (s *memorySink) get(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p]
	return data, ok
}
