package vfs

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
)

// Store holds the project's virtual files.
type Store struct {
	mu          sync.RWMutex
	files       map[string]File
	subscribers []func()
	log         *logging.Logger
}

// NewStore creates an empty store.
func NewStore(log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Store{
		files: make(map[string]File),
		log:   log,
	}
}

// Put creates or replaces the file at f.Path.
func (s *Store) Put(f File) error {
	if f.Path == "" {
		return fmt.Errorf("file path required")
	}

	s.mu.Lock()
	_, existed := s.files[f.Path]
	s.files[f.Path] = f
	s.mu.Unlock()

	s.log.Debug("file stored",
		zap.String("path", f.Path),
		zap.Bool("created", !existed),
	)
	s.notify()
	return nil
}

// Get returns the file at path.
func (s *Store) Get(path string) (File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[path]
	return f, ok
}

// Delete removes the file at path. Deleting a missing path is a no-op and
// fires no change event.
func (s *Store) Delete(path string) bool {
	s.mu.Lock()
	_, ok := s.files[path]
	if ok {
		delete(s.files, path)
	}
	s.mu.Unlock()

	if ok {
		s.log.Debug("file deleted", zap.String("path", path))
		s.notify()
	}
	return ok
}

// Rename moves a file to a new key. Implemented as delete + create so
// subscribers observe it as an ordinary mutation.
func (s *Store) Rename(oldPath, newPath string) error {
	if newPath == "" {
		return fmt.Errorf("new path required")
	}

	s.mu.Lock()
	f, ok := s.files[oldPath]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("no file at %q", oldPath)
	}
	delete(s.files, oldPath)
	f.Path = newPath
	s.files[newPath] = f
	s.mu.Unlock()

	s.log.Debug("file renamed", zap.String("from", oldPath), zap.String("to", newPath))
	s.notify()
	return nil
}

// Replace swaps the entire store contents, used by project import and
// snapshot restore. A single change event fires for the whole swap.
func (s *Store) Replace(files []File) {
	next := make(map[string]File, len(files))
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		next[f.Path] = f
	}

	s.mu.Lock()
	s.files = next
	s.mu.Unlock()

	s.log.Info("store replaced", zap.Int("files", len(next)))
	s.notify()
}

// Snapshot returns a point-in-time copy with files sorted by path.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	files := make([]File, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	s.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return Snapshot{Files: files}
}

// Len returns the number of files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Subscribe registers fn to run after every mutation. Subscribers are called
// synchronously, outside the store lock, in registration order.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}
