package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/iliyamo/movie-catalog/internal/fsutil"
	"github.com/iliyamo/movie-catalog/internal/model"
)

const lockRetryDelay = 20 * time.Millisecond

// FileStore keeps the collection in a single JSON file.  Every Save
// replaces the file atomically, and an advisory lock on <path>.lock keeps a
// second process from interleaving its own read-modify-write.
type FileStore struct {
	path string
	perm os.FileMode

	mu   sync.Mutex // flock.Flock is not safe for concurrent use
	lock *flock.Flock
}

// NewFileStore constructs a FileStore for the document at path.  The file
// does not need to exist yet; call EnsureExists at startup to create it.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		perm: 0o644,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// EnsureExists writes an empty collection when the document is missing.
// An existing document is left untouched, even if it is corrupt.
func (s *FileStore) EnsureExists(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if fsutil.Exists(s.path) {
		return nil
	}
	return s.Save(ctx, nil)
}

// Load reads and decodes the document.
func (s *FileStore) Load(ctx context.Context) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return nil, fmt.Errorf("%w: lock %s: %v", ErrStorageUnavailable, s.lock.Path(), err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorageUnavailable, s.path, err)
	}
	movies, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return movies, nil
}

// Save encodes the collection and atomically replaces the document.  When
// any step fails the previous document stays in place.
func (s *FileStore) Save(ctx context.Context, movies []model.Movie) error {
	data, err := encodeDocument(movies)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fmt.Errorf("%w: lock %s: %v", ErrStorageUnavailable, s.lock.Path(), err)
	}
	defer s.lock.Unlock()

	if err := fsutil.WriteFileAtomic(s.path, data, s.perm); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, s.path, err)
	}
	return nil
}
