package routing

import (
	"sort"
	"sync"
	"time"
)

// Circuit states derived from per-model failure history.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// Breaker defaults.
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 5 * time.Minute
	DefaultWindow           = 10 * time.Minute

	// Pending-decision bookkeeping: when more than decisionHighWater
	// decisions are outstanding, entries older than decisionTTL are swept.
	decisionHighWater = 1000
	decisionTTL       = 30 * time.Minute
)

// BreakerConfig configures the health tracker's circuit behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before a
	// model's circuit opens.
	FailureThreshold int
	// Cooldown is how long an open circuit waits before half-open.
	Cooldown time.Duration
	// Window bounds failure-streak continuity: a failure older than this
	// starts a fresh streak rather than extending the previous one.
	Window time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

type circuit struct {
	consecutiveFailures int
	lastFailureAt       time.Time
	lastSuccessAt       time.Time
}

type pendingDecision struct {
	modelID string
	at      time.Time
}

// HealthTracker is the per-model circuit breaker. It holds failure/success
// history and in-flight decision-to-session bindings, all in process memory:
// a restart resets every circuit to closed. Construct one per gateway
// process and inject it wherever needed; it is safe for concurrent use
// across sessions.
type HealthTracker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	circuits map[string]*circuit
	pending  map[string]pendingDecision

	now func() time.Time
}

// NewHealthTracker creates a tracker. Zero-valued config fields use the
// package defaults.
func NewHealthTracker(cfg BreakerConfig) *HealthTracker {
	return &HealthTracker{
		cfg:      cfg.withDefaults(),
		circuits: make(map[string]*circuit),
		pending:  make(map[string]pendingDecision),
		now:      time.Now,
	}
}

// stateLocked derives the circuit state. Closed while failures are under
// threshold; otherwise open until the cooldown elapses, then half-open.
func (h *HealthTracker) stateLocked(c *circuit) string {
	if c == nil || c.consecutiveFailures < h.cfg.FailureThreshold {
		return StateClosed
	}
	if h.now().Sub(c.lastFailureAt) < h.cfg.Cooldown {
		return StateOpen
	}
	return StateHalfOpen
}

// IsHealthy reports whether a model may be scheduled. Both closed and
// half-open circuits are healthy: a half-open model takes as many trial
// requests as are routed to it before the next outcome moves its state.
func (h *HealthTracker) IsHealthy(modelID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked(h.circuits[modelID]) != StateOpen
}

// RecordDecision binds a session to the model chosen for it. The gateway
// must call this immediately after applying a routing override, before the
// run completes.
func (h *HealthTracker) RecordDecision(sessionKey, modelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pending[sessionKey] = pendingDecision{modelID: modelID, at: h.now()}
	if len(h.pending) > decisionHighWater {
		h.sweepLocked()
	}
}

// sweepLocked drops pending decisions older than decisionTTL.
func (h *HealthTracker) sweepLocked() {
	cutoff := h.now().Add(-decisionTTL)
	for key, d := range h.pending {
		if d.at.Before(cutoff) {
			delete(h.pending, key)
		}
	}
}

// RecordOutcome correlates a reported run outcome back to the model chosen
// for the session and updates that model's failure history. An outcome with
// no matching decision is silently dropped: not every agent run goes through
// routing. Each decision is consumed at most once.
func (h *HealthTracker) RecordOutcome(sessionKey string, success bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, ok := h.pending[sessionKey]
	if !ok {
		return
	}
	delete(h.pending, sessionKey)

	c := h.circuits[d.modelID]
	if c == nil {
		c = &circuit{}
		h.circuits[d.modelID] = c
	}

	now := h.now()
	if success {
		c.consecutiveFailures = 0
		c.lastSuccessAt = now
		return
	}

	if !c.lastFailureAt.IsZero() && now.Sub(c.lastFailureAt) > h.cfg.Window {
		// Previous failure fell out of the continuity window: fresh streak.
		c.consecutiveFailures = 1
	} else {
		c.consecutiveFailures++
	}
	c.lastFailureAt = now
}

// ResetModel clears one model's health state.
func (h *HealthTracker) ResetModel(modelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.circuits, modelID)
}

// ResetAll clears all health state and every pending decision.
func (h *HealthTracker) ResetAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.circuits = make(map[string]*circuit)
	h.pending = make(map[string]pendingDecision)
}

// ModelHealth is a point-in-time view of one model's circuit, for the
// operator control surface.
type ModelHealth struct {
	ModelID             string    `json:"model_id"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt       time.Time `json:"last_success_at,omitempty"`
}

// Snapshot returns the health of every model with recorded history.
func (h *HealthTracker) Snapshot() []ModelHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ModelHealth, 0, len(h.circuits))
	for id, c := range h.circuits {
		out = append(out, ModelHealth{
			ModelID:             id,
			State:               h.stateLocked(c),
			ConsecutiveFailures: c.consecutiveFailures,
			LastFailureAt:       c.lastFailureAt,
			LastSuccessAt:       c.lastSuccessAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// PendingDecisions returns the number of outstanding decision bindings.
func (h *HealthTracker) PendingDecisions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
