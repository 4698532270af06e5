package repository

import (
	"context"
	"sync"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// MemoryStore keeps the encoded document in memory.  It goes through the
// same encode/decode path as the file store, so a MemoryStore behaves like
// a file that nobody else touches.
type MemoryStore struct {
	mu  sync.Mutex
	doc []byte
}

// NewMemoryStore returns a store seeded with movies.
func NewMemoryStore(movies ...model.Movie) *MemoryStore {
	s := &MemoryStore{}
	s.doc, _ = encodeDocument(movies)
	return s
}

// NewMemoryStoreFromDocument returns a store holding raw document bytes as
// they would be found on disk.
func NewMemoryStoreFromDocument(doc []byte) *MemoryStore {
	return &MemoryStore{doc: append([]byte(nil), doc...)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeDocument(s.doc)
}

func (s *MemoryStore) Save(ctx context.Context, movies []model.Movie) error {
	data, err := encodeDocument(movies)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = data
	s.mu.Unlock()
	return nil
}

// Document returns a copy of the current encoded document.
func (s *MemoryStore) Document() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.doc...)
}
