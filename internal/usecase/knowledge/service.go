// Package knowledge persists structured agent knowledge (facts, guidelines,
// templates, trigger-activated skills) and assembles the subset relevant to
// a prompt for context injection.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"lorekeeper/internal/domain"
)

// Injection limits when the configuration leaves them unset.
const (
	defaultMaxFacts  = 5
	defaultMaxSkills = 3
)

// Service is the knowledge data path: typed CRUD over the knowledge
// collections plus context injection.
type Service struct {
	store  domain.DocumentStore
	logger *slog.Logger

	maxFacts  int
	maxSkills int
}

// NewService creates the knowledge service. Zero limits use defaults.
func NewService(store domain.DocumentStore, maxFacts, maxSkills int, logger *slog.Logger) *Service {
	if maxFacts <= 0 {
		maxFacts = defaultMaxFacts
	}
	if maxSkills <= 0 {
		maxSkills = defaultMaxSkills
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, maxFacts: maxFacts, maxSkills: maxSkills}
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// AddFact stores a new fact and returns it with id and timestamps set.
func (s *Service) AddFact(ctx context.Context, content string, tags []string) (*domain.Fact, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: fact content must not be empty", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	f := &domain.Fact{
		ID:        newID(now),
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, domain.CollectionFacts, f.ID, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ListFacts returns the most recently updated facts.
func (s *Service) ListFacts(ctx context.Context, limit int) ([]domain.Fact, error) {
	docs, err := s.store.List(ctx, domain.CollectionFacts, limit)
	if err != nil {
		return nil, domain.WrapOp("knowledge.ListFacts", err)
	}
	return decodeAll[domain.Fact](docs)
}

// SearchFacts returns facts whose stored body contains the query text.
func (s *Service) SearchFacts(ctx context.Context, query string, limit int) ([]domain.Fact, error) {
	docs, err := s.store.Search(ctx, domain.CollectionFacts, query, limit)
	if err != nil {
		return nil, domain.WrapOp("knowledge.SearchFacts", err)
	}
	return decodeAll[domain.Fact](docs)
}

// DeleteFact removes a fact by id.
func (s *Service) DeleteFact(ctx context.Context, id string) error {
	return domain.WrapOp("knowledge.DeleteFact",
		s.store.DeleteOne(ctx, domain.CollectionFacts, id))
}

// AddGuideline stores a standing instruction.
func (s *Service) AddGuideline(ctx context.Context, content string, priority int) (*domain.Guideline, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: guideline content must not be empty", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	g := &domain.Guideline{
		ID:        newID(now),
		Content:   content,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, domain.CollectionGuidelines, g.ID, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ListGuidelines returns guidelines ordered by priority descending.
func (s *Service) ListGuidelines(ctx context.Context) ([]domain.Guideline, error) {
	docs, err := s.store.List(ctx, domain.CollectionGuidelines, 0)
	if err != nil {
		return nil, domain.WrapOp("knowledge.ListGuidelines", err)
	}
	gs, err := decodeAll[domain.Guideline](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Priority > gs[j].Priority })
	return gs, nil
}

// SaveTemplate stores a reusable prompt template under its name.
func (s *Service) SaveTemplate(ctx context.Context, name, content string) (*domain.Template, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: template name and content must not be empty", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	t := &domain.Template{
		ID:        name,
		Name:      name,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, domain.CollectionTemplates, t.ID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTemplate fetches a template by name.
func (s *Service) GetTemplate(ctx context.Context, name string) (*domain.Template, error) {
	data, err := s.store.FindOne(ctx, domain.CollectionTemplates, name)
	if err != nil {
		return nil, domain.WrapOp("knowledge.GetTemplate", err)
	}
	var t domain.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, domain.WrapOp("knowledge.GetTemplate", err)
	}
	return &t, nil
}

// SaveSkill stores a trigger-activated skill under its name.
func (s *Service) SaveSkill(ctx context.Context, skill domain.Skill) (*domain.Skill, error) {
	if strings.TrimSpace(skill.Name) == "" || strings.TrimSpace(skill.Trigger) == "" {
		return nil, fmt.Errorf("%w: skill name and trigger must not be empty", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = now
	}
	skill.UpdatedAt = now
	if err := s.put(ctx, domain.CollectionSkills, skill.Name, &skill); err != nil {
		return nil, err
	}
	return &skill, nil
}

// ListSkills returns all stored skills.
func (s *Service) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	docs, err := s.store.List(ctx, domain.CollectionSkills, 0)
	if err != nil {
		return nil, domain.WrapOp("knowledge.ListSkills", err)
	}
	return decodeAll[domain.Skill](docs)
}

// Inject assembles the context block for a prompt: all guidelines by
// priority, then skills whose trigger phrase occurs in the prompt, then
// facts matching the prompt's significant words. Returns "" when nothing
// applies. Store failures degrade to an empty block with a warning; the
// agent turn must proceed regardless.
func (s *Service) Inject(ctx context.Context, prompt string) string {
	var b strings.Builder

	guidelines, err := s.ListGuidelines(ctx)
	if err != nil {
		s.logger.Warn("knowledge injection: guidelines unavailable", "error", err)
	}
	for _, g := range guidelines {
		fmt.Fprintf(&b, "- %s\n", g.Content)
	}

	skills, err := s.ListSkills(ctx)
	if err != nil {
		s.logger.Warn("knowledge injection: skills unavailable", "error", err)
	}
	lower := strings.ToLower(prompt)
	added := 0
	for _, sk := range skills {
		if added >= s.maxSkills {
			break
		}
		if strings.Contains(lower, strings.ToLower(sk.Trigger)) {
			fmt.Fprintf(&b, "\n## Skill: %s\n%s\n", sk.Name, sk.Template)
			added++
		}
	}

	for _, fact := range s.relevantFacts(ctx, prompt) {
		fmt.Fprintf(&b, "\n- fact: %s", fact.Content)
	}

	return strings.TrimSpace(b.String())
}

// relevantFacts searches the fact collection with each significant word of
// the prompt, deduplicating by id, up to the configured limit. No relevance
// ranking: recency order from the store.
func (s *Service) relevantFacts(ctx context.Context, prompt string) []domain.Fact {
	seen := make(map[string]bool)
	var out []domain.Fact
	for _, word := range significantWords(prompt) {
		if len(out) >= s.maxFacts {
			break
		}
		facts, err := s.SearchFacts(ctx, word, s.maxFacts)
		if err != nil {
			s.logger.Warn("knowledge injection: fact search failed", "word", word, "error", err)
			continue
		}
		for _, f := range facts {
			if len(out) >= s.maxFacts {
				break
			}
			if !seen[f.ID] {
				seen[f.ID] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// significantWords extracts lowercase words longer than four characters.
func significantWords(prompt string) []string {
	fields := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var words []string
	for _, f := range fields {
		if len(f) > 4 {
			words = append(words, f)
		}
	}
	return words
}

func (s *Service) put(ctx context.Context, collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.WrapOp("knowledge.put", err)
	}
	_, err = s.store.Upsert(ctx, collection, key, data)
	return domain.WrapOp("knowledge.put", err)
}

func decodeAll[T any](docs []domain.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", d.Collection, d.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
