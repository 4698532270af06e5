package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// MySQLStore keeps the collection document in one row of the documents
// table.  The row plays the role of the well-known file path: Load reads
// the whole body and Save replaces it in a single statement, so a failed
// write leaves the previous body in place.
type MySQLStore struct {
	db   *sql.DB
	name string // documents.name of the collection row
}

// NewMySQLStore constructs a MySQLStore for the named document.
func NewMySQLStore(db *sql.DB, name string) *MySQLStore {
	return &MySQLStore{db: db, name: name}
}

// EnsureExists creates the documents table if needed and inserts an empty
// collection row when none exists yet.
func (s *MySQLStore) EnsureExists(ctx context.Context) error {
	const qTable = `CREATE TABLE IF NOT EXISTS documents (
	                  name       VARCHAR(64) NOT NULL PRIMARY KEY,
	                  body       LONGTEXT    NOT NULL,
	                  updated_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	                )`
	if _, err := s.db.ExecContext(ctx, qTable); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrStorageUnavailable, err)
	}
	empty, err := encodeDocument(nil)
	if err != nil {
		return err
	}
	const qSeed = "INSERT IGNORE INTO documents (name, body) VALUES (?, ?)"
	if _, err := s.db.ExecContext(ctx, qSeed, s.name, string(empty)); err != nil {
		return fmt.Errorf("%w: seed document: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Load reads the document row and decodes it.
func (s *MySQLStore) Load(ctx context.Context) ([]model.Movie, error) {
	const q = "SELECT body FROM documents WHERE name = ?"
	var body string
	if err := s.db.QueryRowContext(ctx, q, s.name).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %q does not exist", ErrStorageUnavailable, s.name)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	movies, err := decodeDocument([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", s.name, err)
	}
	return movies, nil
}

// Save replaces the document row with the encoded collection.
func (s *MySQLStore) Save(ctx context.Context, movies []model.Movie) error {
	data, err := encodeDocument(movies)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}
	const q = `INSERT INTO documents (name, body) VALUES (?, ?)
	           ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, s.name, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
