package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// Store loads and saves the whole movie collection as one document.  Save is
// a full rewrite; callers serialize load-mutate-save themselves.
type Store interface {
	Load(ctx context.Context) ([]model.Movie, error)
	Save(ctx context.Context, movies []model.Movie) error
}

// document is the persisted shape: {"movies": [...]}.
type document struct {
	Movies *[]model.Movie `json:"movies"`
}

// NextID returns 1 for an empty collection and max(id)+1 otherwise.  Ids of
// deleted records are therefore only reused when they were the maximum.
// It fails with ErrIDsExhausted instead of wrapping past math.MaxInt64.
func NextID(movies []model.Movie) (int64, error) {
	var maxID int64
	for _, m := range movies {
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	if maxID == math.MaxInt64 {
		return 0, fmt.Errorf("%w: highest id is %d", ErrIDsExhausted, maxID)
	}
	return maxID + 1, nil
}

// IndexOf returns the position of the movie with the given id, or -1.
func IndexOf(movies []model.Movie, id int64) int {
	for i, m := range movies {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the movie with the given id or ErrMovieNotFound.
func Find(movies []model.Movie, id int64) (model.Movie, error) {
	if i := IndexOf(movies, id); i >= 0 {
		return movies[i], nil
	}
	return model.Movie{}, fmt.Errorf("movie %d: %w", id, ErrMovieNotFound)
}

// decodeDocument parses a stored document.  Anything other than an object
// with a movies array of records with unique positive ids is corrupt.
func decodeDocument(data []byte) ([]model.Movie, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	if doc.Movies == nil {
		return nil, fmt.Errorf("%w: missing movies array", ErrCorruptStore)
	}
	movies := *doc.Movies
	seen := make(map[int64]struct{}, len(movies))
	for _, m := range movies {
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorruptStore, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return movies, nil
}

// encodeDocument renders the collection with two-space indentation and a
// trailing newline.
func encodeDocument(movies []model.Movie) ([]byte, error) {
	if movies == nil {
		movies = []model.Movie{}
	}
	out, err := json.MarshalIndent(document{Movies: &movies}, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(out) + 1)
	buf.Write(out)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
