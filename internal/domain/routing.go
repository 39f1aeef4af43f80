package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a capability band a model is assigned to. Routing decisions are
// made in units of tiers, not individual models.
type Tier string

const (
	TierFast  Tier = "fast"
	TierMid   Tier = "mid"
	TierHeavy Tier = "heavy"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFast:
		return TierFast, nil
	case TierMid:
		return TierMid, nil
	case TierHeavy:
		return TierHeavy, nil
	}
	return "", fmt.Errorf("%w: unknown tier %q (want fast, mid, or heavy)", ErrInvalidInput, s)
}

// EscalationChain returns the tiers tried when escalating from t,
// ordered from t upward. Heavy has nowhere left to go.
func (t Tier) EscalationChain() []Tier {
	switch t {
	case TierFast:
		return []Tier{TierFast, TierMid, TierHeavy}
	case TierMid:
		return []Tier{TierMid, TierHeavy}
	default:
		return []Tier{TierHeavy}
	}
}

// ReasoningLevel describes how much deliberation a model applies.
type ReasoningLevel string

const (
	ReasoningLight    ReasoningLevel = "light"
	ReasoningStandard ReasoningLevel = "standard"
	ReasoningDeep     ReasoningLevel = "deep"
)

// Capabilities describes what a model can do. Used by the resolver to skip
// models that cannot satisfy the current prompt's requirements.
type Capabilities struct {
	Tools         bool           `json:"tools"`
	Filesystem    bool           `json:"filesystem"`
	CodeExecution bool           `json:"code_execution"`
	Reasoning     ReasoningLevel `json:"reasoning,omitempty"`
}

// Model is a callable backend. ID is the provider/model compound key,
// e.g. "anthropic/claude-opus-4-6".
type Model struct {
	ID           string       `json:"id"`
	Alias        string       `json:"alias,omitempty"`
	Tier         Tier         `json:"tier"`
	Capabilities Capabilities `json:"capabilities"`
	// UseWhen/NeverWhen are advisory hints for operators; the resolver
	// does not enforce them.
	UseWhen   []string `json:"use_when,omitempty"`
	NeverWhen []string `json:"never_when,omitempty"`
	// Active is false for models discovered previously but no longer
	// present in configuration. They are excluded from selection but
	// retained for audit.
	Active *bool `json:"active,omitempty"`
}

// IsActive treats a missing active flag as true.
func (m Model) IsActive() bool {
	return m.Active == nil || *m.Active
}

// SplitID splits the compound id on the first "/" into provider and model.
func (m Model) SplitID() (provider, model string) {
	if i := strings.Index(m.ID, "/"); i >= 0 {
		return m.ID[:i], m.ID[i+1:]
	}
	return "", m.ID
}

// CategoryConfig declares one prompt category: its indicator substrings and
// its complexity range.
type CategoryConfig struct {
	Name       string   `json:"name"`
	Indicators []string `json:"indicators,omitempty"`
	// Complexity is the [low, high] range for prompts of this category.
	Complexity [2]int `json:"complexity,omitempty"`
}

// ClassificationConfig drives the prompt classifier.
type ClassificationConfig struct {
	Categories     []CategoryConfig `json:"categories"`
	PathPatterns   []string         `json:"path_patterns,omitempty"`
	CodeBlockRegex string           `json:"code_block_regex,omitempty"`
}

// RoutingRule maps a classified category (plus the tools-in-context flag)
// to a target tier. Higher priority wins; ties break on stored order.
type RoutingRule struct {
	If             string `json:"if"`
	ToolsInContext bool   `json:"tools_in_context"`
	Then           Tier   `json:"then"`
	Priority       int    `json:"priority"`
	Reason         string `json:"reason,omitempty"`
}

// Ambiguous-prompt policies.
const (
	AmbiguousUseDefault = "use_default"
	AmbiguousNoOverride = "no_override"
)

// RoutingPolicy holds the rule list and defaults for the resolver.
type RoutingPolicy struct {
	DefaultTier     Tier          `json:"default_tier"`
	AmbiguousAction string        `json:"ambiguous_action"`
	Capabilities    string        `json:"capabilities,omitempty"`
	Rules           []RoutingRule `json:"rules"`
}

// EscalationConfig lists trigger/de-escalation keywords. Informational only
// in the current design; the resolver does not consult it.
type EscalationConfig struct {
	Triggers     []string `json:"triggers,omitempty"`
	DeEscalation []string `json:"de_escalation,omitempty"`
}

// RoutingContext is the full per-agent configuration document driving
// classification and routing. Exactly one exists per agent id.
type RoutingContext struct {
	AgentID        string               `json:"agent_id"`
	Version        int                  `json:"version"`
	Models         []Model              `json:"models"`
	ModelsHash     string               `json:"models_hash,omitempty"`
	Classification ClassificationConfig `json:"classification"`
	Routing        RoutingPolicy        `json:"routing"`
	Escalation     EscalationConfig     `json:"escalation,omitempty"`
	CreatedAt      time.Time            `json:"created_at,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at,omitempty"`
}

// Model looks up a model by id. Returns nil when absent.
func (rc *RoutingContext) Model(id string) *Model {
	for i := range rc.Models {
		if rc.Models[i].ID == id {
			return &rc.Models[i]
		}
	}
	return nil
}

// Validate checks a routing context loaded from the document store.
// Unknown tiers and empty agent ids are rejected rather than defaulted;
// everything defaultable is handled by Normalize.
func (rc *RoutingContext) Validate() error {
	if strings.TrimSpace(rc.AgentID) == "" {
		return fmt.Errorf("%w: routing context missing agent_id", ErrInvalidInput)
	}
	if _, err := ParseTier(string(rc.Routing.DefaultTier)); err != nil {
		return fmt.Errorf("routing context %s: default_tier: %w", rc.AgentID, err)
	}
	for i, m := range rc.Models {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("%w: routing context %s: models[%d] missing id", ErrInvalidInput, rc.AgentID, i)
		}
		if _, err := ParseTier(string(m.Tier)); err != nil {
			return fmt.Errorf("routing context %s: model %s: %w", rc.AgentID, m.ID, err)
		}
	}
	for i, r := range rc.Routing.Rules {
		if strings.TrimSpace(r.If) == "" {
			return fmt.Errorf("%w: routing context %s: rules[%d] missing if", ErrInvalidInput, rc.AgentID, i)
		}
		if _, err := ParseTier(string(r.Then)); err != nil {
			return fmt.Errorf("routing context %s: rules[%d]: %w", rc.AgentID, i, err)
		}
	}
	return nil
}

// Normalize fills defaulted fields in place: the ambiguous action and any
// category with a zero complexity range.
func (rc *RoutingContext) Normalize() {
	if rc.Routing.AmbiguousAction == "" {
		rc.Routing.AmbiguousAction = AmbiguousUseDefault
	}
	if rc.Routing.DefaultTier == "" {
		rc.Routing.DefaultTier = TierMid
	}
	for i := range rc.Classification.Categories {
		c := &rc.Classification.Categories[i]
		if c.Complexity == [2]int{} {
			c.Complexity = DefaultComplexityRange
		}
	}
}

// DefaultComplexityRange applies to categories with no declared range.
var DefaultComplexityRange = [2]int{1, 3}

// CategoryChat is the fallback category when no indicator scores.
const CategoryChat = "CHAT"

// CategoryCode receives path-pattern and code-block bonuses.
const CategoryCode = "CODE"

// Classification is the classifier's verdict for one prompt.
type Classification struct {
	Category          string   `json:"category"`
	Complexity        int      `json:"complexity"`
	MatchedIndicators []string `json:"matched_indicators,omitempty"`
}

// Decision is the resolver's verdict for one prompt: either a model
// override or an explicit no-override with a machine-readable reason.
type Decision struct {
	Override   bool   `json:"override"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Tier       Tier   `json:"tier,omitempty"`
	Category   string `json:"category"`
	Complexity int    `json:"complexity"`
	Reason     string `json:"reason"`
}

// ModelOverride is the instruction handed back to the gateway's
// before-prompt hook when routing selects a model.
type ModelOverride struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reason   string `json:"reason"`
}
