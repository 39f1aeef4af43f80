package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lorekeeper/internal/domain"
	"lorekeeper/internal/infra/tracer"
)

// Options configures the routing service.
type Options struct {
	AgentID      string
	Enabled      bool
	CacheTTL     time.Duration
	StoreTimeout time.Duration
	Breaker      BreakerConfig
	Gateway      domain.GatewayConfig
	Heuristics   TierHeuristics
	Logger       *slog.Logger
}

// Service drives the routing pipeline for one agent process: it loads the
// routing context through the TTL cache, resolves each prompt against it,
// and feeds run outcomes back into the health tracker. It implements the
// gateway's before-prompt and after-run hook contracts and backs the
// operator control surface.
type Service struct {
	opts   Options
	store  domain.DocumentStore
	cache  *ContextCache
	health *HealthTracker
	logger *slog.Logger
}

// NewService constructs the per-process routing service. The health tracker
// and cache are owned by the returned value; construct one Service per
// gateway process and share it across sessions.
func NewService(store domain.DocumentStore, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		opts:   opts,
		store:  store,
		health: NewHealthTracker(opts.Breaker),
		logger: logger,
	}
	s.cache = NewContextCache(s.loadContext, opts.CacheTTL, opts.StoreTimeout, logger)
	return s
}

// Health exposes the tracker for wiring and tests.
func (s *Service) Health() *HealthTracker { return s.health }

// loadContext reads and validates the agent's routing context. Unknown
// fields in the stored document are rejected rather than silently carried.
func (s *Service) loadContext(ctx context.Context, agentID string) (*domain.RoutingContext, error) {
	data, err := s.store.FindOne(ctx, domain.CollectionRouting, agentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapOp("routing.loadContext", err)
	}

	var rc domain.RoutingContext
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rc); err != nil {
		return nil, fmt.Errorf("routing.loadContext: decode %s: %w", agentID, err)
	}
	rc.Normalize()
	if err := rc.Validate(); err != nil {
		return nil, domain.WrapOp("routing.loadContext", err)
	}
	return &rc, nil
}

// saveContext upserts the context and invalidates the cache entry.
func (s *Service) saveContext(ctx context.Context, rc *domain.RoutingContext) error {
	rc.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rc)
	if err != nil {
		return domain.WrapOp("routing.saveContext", err)
	}
	if _, err := s.store.Upsert(ctx, domain.CollectionRouting, rc.AgentID, data); err != nil {
		return domain.WrapOp("routing.saveContext", err)
	}
	s.cache.Invalidate(rc.AgentID)
	return nil
}

// EnsureContext provisions the agent's routing context on first gateway
// start: default configuration plus freshly discovered models. Existing
// contexts are left untouched.
func (s *Service) EnsureContext(ctx context.Context) error {
	rc, err := s.loadContext(ctx, s.opts.AgentID)
	if err != nil {
		return err
	}
	if rc != nil {
		return nil
	}

	models := DiscoverModels(s.opts.Gateway, s.opts.Heuristics)
	seeded := NewDefaultContext(s.opts.AgentID, models, time.Now().UTC())
	if err := s.saveContext(ctx, seeded); err != nil {
		return err
	}
	s.logger.Info("routing context seeded",
		"agent_id", s.opts.AgentID, "models", len(models))
	return nil
}

// BeforePrompt is the gateway's before-prompt extension point. It returns
// nil (no override) whenever routing is disabled, the context is
// unavailable, or no viable route exists; routing failures must be
// invisible to the end user. On an override the decision is bound to the
// session for later outcome correlation.
func (s *Service) BeforePrompt(ctx context.Context, prompt string, toolsInContext bool, sessionKey string) *domain.ModelOverride {
	if !s.opts.Enabled {
		return nil
	}

	ctx, span := tracer.StartSpan(ctx, "routing.resolve")
	defer span.End()

	rc := s.cache.Get(ctx, s.opts.AgentID)
	if rc == nil {
		return nil
	}

	decision := Resolve(prompt, rc, toolsInContext, s.health.IsHealthy)
	span.SetAttributes(
		tracer.StringAttr("routing.category", decision.Category),
		tracer.IntAttr("routing.complexity", decision.Complexity),
	)
	if !decision.Override {
		s.logger.Debug("routing: no override",
			"session", sessionKey, "category", decision.Category, "reason", decision.Reason)
		return nil
	}

	modelID := decision.Provider + "/" + decision.Model
	s.health.RecordDecision(sessionKey, modelID)
	s.logger.Info("routing override",
		"session", sessionKey,
		"model", modelID,
		"tier", decision.Tier,
		"category", decision.Category,
		"reason", decision.Reason)
	return &domain.ModelOverride{
		Provider: decision.Provider,
		Model:    decision.Model,
		Reason:   decision.Reason,
	}
}

// AfterRun is the gateway's after-run extension point. Outcomes for
// sessions with no recorded decision are dropped: runs that bypassed
// routing report here too.
func (s *Service) AfterRun(_ context.Context, sessionKey string, success bool, runErr error) {
	s.health.RecordOutcome(sessionKey, success)
	if !success && runErr != nil {
		s.logger.Debug("routing outcome recorded", "session", sessionKey, "error", runErr)
	}
}

// Status summarizes the routing context for the operator surface.
type Status struct {
	AgentID       string              `json:"agent_id"`
	Version       int                 `json:"version"`
	ActiveByTier  map[domain.Tier]int `json:"active_by_tier"`
	InactiveCount int                 `json:"inactive_count"`
	RuleCount     int                 `json:"rule_count"`
	ModelsHash    string              `json:"models_hash"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Status reports active/inactive model counts by tier, rule count, and the
// last update time.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{
		AgentID:      rc.AgentID,
		Version:      rc.Version,
		ActiveByTier: make(map[domain.Tier]int),
		RuleCount:    len(rc.Routing.Rules),
		ModelsHash:   rc.ModelsHash,
		UpdatedAt:    rc.UpdatedAt,
	}
	for _, m := range rc.Models {
		if m.IsActive() {
			st.ActiveByTier[m.Tier]++
		} else {
			st.InactiveCount++
		}
	}
	return st, nil
}

// Models lists the context's model roster.
func (s *Service) Models(ctx context.Context) ([]domain.Model, error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return nil, err
	}
	return rc.Models, nil
}

// Rules lists the context's routing rules.
func (s *Service) Rules(ctx context.Context) ([]domain.RoutingRule, error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return nil, err
	}
	return rc.Routing.Rules, nil
}

// SetTier reassigns a model to a tier. The edit survives re-discovery.
func (s *Service) SetTier(ctx context.Context, modelID, tierName string) error {
	tier, err := domain.ParseTier(tierName)
	if err != nil {
		return err
	}
	rc, err := s.requireContext(ctx)
	if err != nil {
		return err
	}
	m := rc.Model(modelID)
	if m == nil {
		return fmt.Errorf("%w: model %s", domain.ErrNotFound, modelID)
	}
	m.Tier = tier
	rc.Version++
	return s.saveContext(ctx, rc)
}

// Rediscover re-runs model discovery and merges the result into the stored
// roster, preserving operator edits and marking vanished models inactive.
// Returns whether the discovered id set changed since last time.
func (s *Service) Rediscover(ctx context.Context) (changed bool, err error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return false, err
	}
	discovered := DiscoverModels(s.opts.Gateway, s.opts.Heuristics)
	hash := ComputeModelsHash(discovered)
	changed = hash != rc.ModelsHash

	// The merge is safe to re-run even when the hash says nothing moved.
	rc.Models = MergeModelsIncremental(rc.Models, discovered)
	rc.ModelsHash = hash
	rc.Version++
	if err := s.saveContext(ctx, rc); err != nil {
		return false, err
	}
	if changed {
		s.logger.Info("model roster changed on re-discovery",
			"agent_id", rc.AgentID, "models_hash", hash)
	}
	return changed, nil
}

// TestClassify runs a dry-run classification for an arbitrary prompt.
func (s *Service) TestClassify(ctx context.Context, prompt string) (domain.Classification, error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return domain.Classification{}, err
	}
	return Classify(prompt, rc.Classification), nil
}

// TestResolve runs a dry-run resolution for an arbitrary prompt.
func (s *Service) TestResolve(ctx context.Context, prompt string, toolsInContext bool) (domain.Decision, error) {
	rc, err := s.requireContext(ctx)
	if err != nil {
		return domain.Decision{}, err
	}
	return Resolve(prompt, rc, toolsInContext, s.health.IsHealthy), nil
}

// Reset deletes the routing context; the next gateway start re-seeds it.
// Health state and pending decisions are cleared as well.
func (s *Service) Reset(ctx context.Context) error {
	err := s.store.DeleteOne(ctx, domain.CollectionRouting, s.opts.AgentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.WrapOp("routing.reset", err)
	}
	s.cache.Invalidate(s.opts.AgentID)
	s.health.ResetAll()
	return nil
}

// HealthSnapshot reports per-model circuit state for the operator surface.
func (s *Service) HealthSnapshot() []ModelHealth {
	return s.health.Snapshot()
}

// ResetHealth clears health state for one model, or all models when
// modelID is empty.
func (s *Service) ResetHealth(modelID string) {
	if modelID == "" {
		s.health.ResetAll()
		return
	}
	s.health.ResetModel(modelID)
}

// Compile-time hook contract checks.
var (
	_ domain.BeforePromptHook = (*Service)(nil)
	_ domain.AfterRunHook     = (*Service)(nil)
)

// requireContext loads the context directly from the store (bypassing the
// cache: operator reads should not race a stale entry) and fails when the
// agent is not provisioned.
func (s *Service) requireContext(ctx context.Context) (*domain.RoutingContext, error) {
	rc, err := s.loadContext(ctx, s.opts.AgentID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, fmt.Errorf("%w: routing context for agent %s", domain.ErrNotFound, s.opts.AgentID)
	}
	return rc, nil
}
