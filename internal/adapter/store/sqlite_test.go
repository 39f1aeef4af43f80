package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeeper/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Upsert(ctx, "routing_contexts", "agent-1", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Upsert(ctx, "routing_contexts", "agent-1", []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.False(t, created)

	data, err := s.FindOne(ctx, "routing_contexts", "agent-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}

func TestFindOneNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindOne(context.Background(), "routing_contexts", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUniquePerCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "facts", "k1", []byte(`{"where":"facts"}`))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "skills", "k1", []byte(`{"where":"skills"}`))
	require.NoError(t, err)

	data, err := s.FindOne(ctx, "facts", "k1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "facts")
}

func TestDeleteOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "facts", "k1", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, s.DeleteOne(ctx, "facts", "k1"))

	_, err = s.FindOne(ctx, "facts", "k1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.DeleteOne(ctx, "facts", "k1"), domain.ErrNotFound)
}

func TestSearchMatchesBody(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "facts", "k1", []byte(`{"content":"the deploy pipeline uses blue-green"}`))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "facts", "k2", []byte(`{"content":"the database is postgres"}`))
	require.NoError(t, err)

	docs, err := s.Search(ctx, "facts", "deploy", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "k1", docs[0].Key)

	docs, err = s.Search(ctx, "facts", "nothing-matches", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSearchEscapesLikeMetacharacters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "facts", "k1", []byte(`{"content":"coverage is 100% green"}`))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "facts", "k2", []byte(`{"content":"coverage is low"}`))
	require.NoError(t, err)

	docs, err := s.Search(ctx, "facts", "100%", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1, "%% must match literally, not as a wildcard")
	assert.Equal(t, "k1", docs[0].Key)
}

func TestListScopedToCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "facts", "k1", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "skills", "k2", []byte(`{}`))
	require.NoError(t, err)

	docs, err := s.List(ctx, "facts", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "facts", docs[0].Collection)
}
