package domain

import (
	"context"
	"time"
)

// Document is one stored record: a JSON body keyed by (collection, key).
type Document struct {
	Collection string
	Key        string
	Data       []byte
	UpdatedAt  time.Time
}

// DocumentStore is the persistence collaborator. Implementations must
// enforce uniqueness on (collection, key) and round-trip document bodies
// byte-exactly.
type DocumentStore interface {
	// FindOne returns the document body, or ErrNotFound.
	FindOne(ctx context.Context, collection, key string) ([]byte, error)
	// Upsert writes the document and reports whether it was created
	// (as opposed to updated in place).
	Upsert(ctx context.Context, collection, key string, data []byte) (created bool, err error)
	// DeleteOne removes the document, or returns ErrNotFound.
	DeleteOne(ctx context.Context, collection, key string) error
	// Search returns documents whose body contains the query text,
	// most recently updated first.
	Search(ctx context.Context, collection, query string, limit int) ([]Document, error)
	// List returns documents in a collection, most recently updated first.
	List(ctx context.Context, collection string, limit int) ([]Document, error)
}
