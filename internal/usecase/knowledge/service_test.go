package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorekeeper/internal/domain"
)

// memStore is an in-memory domain.DocumentStore for knowledge tests.
type memStore struct {
	mu   sync.Mutex
	docs map[string]map[string][]byte // collection → key → body
	seq  int                          // insertion order stands in for updated_at
	ord  map[string]int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]map[string][]byte), ord: make(map[string]int)}
}

func (m *memStore) FindOne(_ context.Context, collection, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.docs[collection][key]; ok {
		return data, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) Upsert(_ context.Context, collection, key string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string][]byte)
	}
	_, existed := m.docs[collection][key]
	m.docs[collection][key] = data
	m.seq++
	m.ord[collection+"/"+key] = m.seq
	return !existed, nil
}

func (m *memStore) DeleteOne(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[collection][key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs[collection], key)
	return nil
}

func (m *memStore) Search(_ context.Context, collection, query string, limit int) ([]domain.Document, error) {
	return m.scan(collection, query, limit)
}

func (m *memStore) List(_ context.Context, collection string, limit int) ([]domain.Document, error) {
	return m.scan(collection, "", limit)
}

func (m *memStore) scan(collection, query string, limit int) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for key, data := range m.docs[collection] {
		if query != "" && !strings.Contains(string(data), query) {
			continue
		}
		out = append(out, domain.Document{Collection: collection, Key: key, Data: data})
	}
	sort.Slice(out, func(i, j int) bool {
		return m.ord[collection+"/"+out[i].Key] > m.ord[collection+"/"+out[j].Key]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestAddAndListFacts(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)
	ctx := context.Background()

	f, err := svc.AddFact(ctx, "the staging cluster lives in eu-west-1", []string{"infra"})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.False(t, f.CreatedAt.IsZero())

	facts, err := svc.ListFacts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, f.ID, facts[0].ID)
	assert.Equal(t, []string{"infra"}, facts[0].Tags)
}

func TestAddFactRejectsEmpty(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)

	_, err := svc.AddFact(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchFacts(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)
	ctx := context.Background()

	_, err := svc.AddFact(ctx, "deploys happen on friday", nil)
	require.NoError(t, err)
	_, err = svc.AddFact(ctx, "the database is postgres", nil)
	require.NoError(t, err)

	facts, err := svc.SearchFacts(ctx, "postgres", 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Contains(t, facts[0].Content, "postgres")
}

func TestGuidelinesOrderedByPriority(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)
	ctx := context.Background()

	_, err := svc.AddGuideline(ctx, "low priority", 1)
	require.NoError(t, err)
	_, err = svc.AddGuideline(ctx, "high priority", 100)
	require.NoError(t, err)

	gs, err := svc.ListGuidelines(ctx)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.Equal(t, "high priority", gs[0].Content)
}

func TestTemplateRoundTrip(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)
	ctx := context.Background()

	_, err := svc.SaveTemplate(ctx, "bug-report", "## Steps to reproduce\n...")
	require.NoError(t, err)

	tpl, err := svc.GetTemplate(ctx, "bug-report")
	require.NoError(t, err)
	assert.Equal(t, "bug-report", tpl.Name)
	assert.Contains(t, tpl.Content, "reproduce")

	_, err = svc.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSkillValidation(t *testing.T) {
	svc := NewService(newMemStore(), 0, 0, nil)

	_, err := svc.SaveSkill(context.Background(), domain.Skill{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInjectAssemblesContext(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, 5, 3, nil)
	ctx := context.Background()

	_, err := svc.AddGuideline(ctx, "always answer in English", 10)
	require.NoError(t, err)
	_, err = svc.SaveSkill(ctx, domain.Skill{
		Name:     "release-notes",
		Trigger:  "release notes",
		Template: "Summarize merged PRs grouped by area.",
	})
	require.NoError(t, err)
	_, err = svc.AddFact(ctx, "releases ship every other tuesday", nil)
	require.NoError(t, err)

	block := svc.Inject(ctx, "please draft the release notes for releases next week")

	assert.Contains(t, block, "always answer in English")
	assert.Contains(t, block, "Skill: release-notes")
	assert.Contains(t, block, "every other tuesday")
}

func TestInjectSkipsUnrelatedSkills(t *testing.T) {
	svc := NewService(newMemStore(), 5, 3, nil)
	ctx := context.Background()

	_, err := svc.SaveSkill(ctx, domain.Skill{Name: "deploy", Trigger: "deploy to prod", Template: "..."})
	require.NoError(t, err)

	block := svc.Inject(ctx, "what's the weather like")
	assert.NotContains(t, block, "Skill: deploy")
}

func TestInjectRespectsFactLimit(t *testing.T) {
	svc := NewService(newMemStore(), 2, 3, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.AddFact(ctx, "kubernetes cluster note", nil)
		require.NoError(t, err)
	}

	block := svc.Inject(ctx, "tell me about the kubernetes cluster")
	assert.Equal(t, 2, strings.Count(block, "- fact:"))
}

func TestStoredFactRoundTripsAsJSON(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, 0, 0, nil)

	f, err := svc.AddFact(context.Background(), "x", nil)
	require.NoError(t, err)

	var decoded domain.Fact
	require.NoError(t, json.Unmarshal(store.docs[domain.CollectionFacts][f.ID], &decoded))
	assert.Equal(t, f.ID, decoded.ID)
}
