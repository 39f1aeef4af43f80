// Package store provides the SQLite-backed document store: JSON bodies
// keyed by (collection, key) with LIKE-based text search.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lorekeeper/internal/domain"
)

// SQLiteStore implements domain.DocumentStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open document db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate document db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			doc        TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (collection, key)
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindOne(ctx context.Context, collection, key string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM documents WHERE collection = ? AND key = ?", collection, key,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, key)
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection, key string, data []byte) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET doc = ?, updated_at = ? WHERE collection = ? AND key = ?",
		string(data), now, collection, key,
	)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, key, doc, updated_at) VALUES (?, ?, ?, ?)",
		collection, key, string(data), now,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) DeleteOne(ctx context.Context, collection, key string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND key = ?", collection, key,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collection, key)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, collection, query string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, key, doc, updated_at FROM documents
		 WHERE collection = ? AND doc LIKE ? ESCAPE '\'
		 ORDER BY updated_at DESC LIMIT ?`,
		collection, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *SQLiteStore) List(ctx context.Context, collection string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, key, doc, updated_at FROM documents
		 WHERE collection = ? ORDER BY updated_at DESC LIMIT ?`,
		collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		var doc, updated string
		if err := rows.Scan(&d.Collection, &d.Key, &doc, &updated); err != nil {
			return nil, err
		}
		d.Data = []byte(doc)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			d.UpdatedAt = t
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// escapeLike escapes LIKE metacharacters in user-supplied query text.
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}

// Compile-time interface check.
var _ domain.DocumentStore = (*SQLiteStore)(nil)
