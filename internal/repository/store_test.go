package repository

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-catalog/internal/model"
)

func movie(id int64, title string) model.Movie {
	return model.Movie{ID: id, Fields: model.Fields{"title": model.String(title)}}
}

func TestNextID(t *testing.T) {
	cases := []struct {
		movies []model.Movie
		want   int64
	}{
		{nil, 1},
		{[]model.Movie{movie(1, "a"), movie(3, "b")}, 4},
		{[]model.Movie{movie(9, "a"), movie(2, "b")}, 10},
		{[]model.Movie{movie(math.MaxInt64-1, "a")}, math.MaxInt64},
	}
	for _, tc := range cases {
		got, err := NextID(tc.movies)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestNextIDRefusesToWrap(t *testing.T) {
	_, err := NextID([]model.Movie{movie(1, "a"), movie(math.MaxInt64, "b")})
	assert.ErrorIs(t, err, ErrIDsExhausted)
}

func TestFind(t *testing.T) {
	movies := []model.Movie{movie(1, "a"), movie(2, "b")}

	got, err := Find(movies, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Fields["title"].Text())

	_, err = Find(movies, 99)
	assert.ErrorIs(t, err, ErrMovieNotFound)
	assert.Equal(t, -1, IndexOf(movies, 99))
}

func TestDecodeDocumentRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"movies": [`,
		"no movies key": `{"films": []}`,
		"null movies":   `{"movies": null}`,
		"movies object": `{"movies": {}}`,
		"top array":     `[]`,
		"bad id":        `{"movies": [{"id": "x"}]}`,
		"duplicate id":  `{"movies": [{"id": 1}, {"id": 1}]}`,
		"nested field":  `{"movies": [{"id": 1, "cast": ["a"]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeDocument([]byte(doc))
			assert.ErrorIs(t, err, ErrCorruptStore)
		})
	}
}

func TestEncodeDocumentIsPrettyAndOrdered(t *testing.T) {
	out, err := encodeDocument([]model.Movie{
		{ID: 2, Fields: model.Fields{"year": model.Int(2021), "title": model.String("Dune")}},
	})
	require.NoError(t, err)
	want := "{\n" +
		"  \"movies\": [\n" +
		"    {\n" +
		"      \"id\": 2,\n" +
		"      \"title\": \"Dune\",\n" +
		"      \"year\": 2021\n" +
		"    }\n" +
		"  ]\n" +
		"}\n"
	assert.Equal(t, want, string(out))

	out, err = encodeDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"movies\": []\n}\n", string(out))
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "movies.json")
	s := NewFileStore(path)

	require.NoError(t, s.EnsureExists(ctx))
	movies, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, movies)

	in := []model.Movie{movie(3, "Heat"), movie(1, "Alien")}
	require.NoError(t, s.Save(ctx, in))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualValues(t, 3, out[0].ID, "insertion order is preserved")
	assert.EqualValues(t, 1, out[1].ID)

	// save(load()) leaves the document unchanged.
	require.NoError(t, s.Save(ctx, out))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestFileStoreEnsureExistsKeepsExistingDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "movies.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"movies":[{"id":5,"title":"Up"}]}`), 0o644))

	s := NewFileStore(path)
	require.NoError(t, s.EnsureExists(ctx))

	movies, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.EqualValues(t, 5, movies[0].ID)
}

func TestFileStoreLoadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("not json"), 0o644))
	_, err = NewFileStore(corrupt).Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptStore)
}

func TestFileStoreSaveFailureKeepsOldDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(ctx, []model.Movie{movie(1, "Alien")}))

	// Replace the document with a directory so the rename fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o755))

	err := s.Save(ctx, []model.Movie{movie(2, "Heat")})
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp file left behind")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(movie(1, "a"))

	movies, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)

	movies = append(movies, movie(2, "b"))
	require.NoError(t, s.Save(ctx, movies))

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)

	_, err = NewMemoryStoreFromDocument([]byte("{}")).Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptStore)
}
