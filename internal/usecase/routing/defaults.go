package routing

import (
	"time"

	"lorekeeper/internal/domain"
)

// DefaultTierHeuristics matches the model families commonly wired into the
// gateway. Anything unmatched classifies heavy.
func DefaultTierHeuristics() TierHeuristics {
	return TierHeuristics{
		Fast: TierHint{
			Prefixes:   []string{"anthropic/claude-haiku", "openai/gpt-4o-mini", "google/gemini-2.0-flash"},
			Indicators: []string{"haiku", "mini", "flash", "lite", "nano"},
		},
		Mid: TierHint{
			Prefixes:   []string{"anthropic/claude-sonnet", "openai/gpt-4o", "zai/glm"},
			Indicators: []string{"sonnet", "glm", "deepseek"},
		},
		Heavy: TierHint{
			Prefixes:   []string{"anthropic/claude-opus", "openai/o3"},
			Indicators: []string{"opus", "o3", "pro"},
		},
	}
}

// DefaultClassification seeds the category definitions for a new routing
// context: indicator keywords per category, path-pattern fragments, and a
// fenced-code-block regex.
func DefaultClassification() domain.ClassificationConfig {
	return domain.ClassificationConfig{
		Categories: []domain.CategoryConfig{
			{
				Name:       domain.CategoryChat,
				Indicators: []string{"hello", "hi ", "thanks", "how are you", "what is", "explain"},
				Complexity: [2]int{1, 3},
			},
			{
				Name: domain.CategoryCode,
				Indicators: []string{
					"implement", "refactor", "fix the bug", "compile", "stack trace",
					"unit test", "function", "package", "struct",
				},
				Complexity: [2]int{4, 7},
			},
			{
				Name: "REASONING",
				Indicators: []string{
					"prove", "step by step", "analyze", "trade-off", "architecture",
					"design a", "why does",
				},
				Complexity: [2]int{6, 9},
			},
			{
				Name:       "SUMMARY",
				Indicators: []string{"summarize", "tl;dr", "recap", "shorten", "bullet points"},
				Complexity: [2]int{2, 4},
			},
		},
		PathPatterns:   []string{".go", ".py", ".ts", ".rs", "src/", "internal/", "cmd/"},
		CodeBlockRegex: "(?s)```.+```",
	}
}

// DefaultRules seeds the routing ruleset: chat stays fast, code and tool
// use go mid, reasoning goes heavy.
func DefaultRules() []domain.RoutingRule {
	return []domain.RoutingRule{
		{If: domain.CategoryChat, ToolsInContext: false, Then: domain.TierFast, Priority: 10},
		{If: domain.CategoryChat, ToolsInContext: true, Then: domain.TierFast, Priority: 10},
		{If: "SUMMARY", ToolsInContext: false, Then: domain.TierFast, Priority: 10},
		{If: "SUMMARY", ToolsInContext: true, Then: domain.TierMid, Priority: 10},
		{If: domain.CategoryCode, ToolsInContext: false, Then: domain.TierMid, Priority: 10},
		{If: domain.CategoryCode, ToolsInContext: true, Then: domain.TierMid, Priority: 10},
		{If: "REASONING", ToolsInContext: false, Then: domain.TierHeavy, Priority: 10},
		{If: "REASONING", ToolsInContext: true, Then: domain.TierHeavy, Priority: 10},
	}
}

// NewDefaultContext seeds a routing context for an agent on first gateway
// start: static default configuration plus freshly discovered models.
func NewDefaultContext(agentID string, models []domain.Model, now time.Time) *domain.RoutingContext {
	return &domain.RoutingContext{
		AgentID:        agentID,
		Version:        1,
		Models:         models,
		ModelsHash:     ComputeModelsHash(models),
		Classification: DefaultClassification(),
		Routing: domain.RoutingPolicy{
			DefaultTier:     domain.TierMid,
			AmbiguousAction: domain.AmbiguousUseDefault,
			Rules:           DefaultRules(),
		},
		Escalation: domain.EscalationConfig{
			Triggers:     []string{"think harder", "be thorough", "carefully"},
			DeEscalation: []string{"quick", "briefly", "short answer"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
