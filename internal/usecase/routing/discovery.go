package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"lorekeeper/internal/domain"
)

// Provider aliases normalize the spellings that appear in gateway
// configuration to canonical provider keys.
var providerAliases = map[string]string{
	"z.ai":       "zai",
	"open-ai":    "openai",
	"claude":     "anthropic",
	"google-ai":  "google",
	"openrouter": "openrouter",
}

// Anthropic short names expand to full model identifiers.
var anthropicShortNames = map[string]string{
	"opus":   "claude-opus-4-6",
	"sonnet": "claude-sonnet-4-5",
	"haiku":  "claude-haiku-4-5",
}

// TierHint declares how discovered models map onto one tier: a model
// matches if its composed id starts with one of the prefixes, or its bare
// name contains one of the indicator substrings.
type TierHint struct {
	Prefixes   []string `json:"prefixes,omitempty"`
	Indicators []string `json:"indicators,omitempty"`
}

// TierHeuristics classifies discovered models into tiers.
type TierHeuristics struct {
	Fast  TierHint `json:"fast"`
	Mid   TierHint `json:"mid"`
	Heavy TierHint `json:"heavy"`
}

// DiscoverModels reads model references from the gateway configuration
// snapshot, normalizes each into provider/model form, deduplicates by
// composed id, and classifies each into a tier. CLI-backend models always
// classify heavy; a model matching no heuristic defaults to heavy, on the
// grounds that unknown capability should be assumed to need the most
// capable tier.
func DiscoverModels(cfg domain.GatewayConfig, heur TierHeuristics) []domain.Model {
	type ref struct {
		raw string
		cli bool
	}
	refs := []ref{{raw: cfg.PrimaryModel}}
	for _, f := range cfg.FallbackModels {
		refs = append(refs, ref{raw: f})
	}
	for _, c := range cfg.CLIBackends {
		refs = append(refs, ref{raw: c, cli: true})
	}

	seen := make(map[string]bool)
	var models []domain.Model
	for _, r := range refs {
		provider, model, ok := NormalizeModelRef(r.raw)
		if !ok {
			continue
		}
		id := provider + "/" + model
		if seen[id] {
			continue
		}
		seen[id] = true

		tier := classifyTier(id, model, r.cli, heur)
		models = append(models, domain.Model{
			ID:    id,
			Alias: model,
			Tier:  tier,
			Capabilities: domain.Capabilities{
				Tools:     !r.cli,
				Reasoning: domain.ReasoningStandard,
			},
		})
	}
	return models
}

// NormalizeModelRef parses a configured model string into canonical
// provider and model parts. Bare Anthropic short names ("opus") expand via
// the alias table; a bare unknown name is assumed Anthropic-hosted.
func NormalizeModelRef(raw string) (provider, model string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}

	if i := strings.Index(raw, "/"); i >= 0 {
		provider, model = raw[:i], raw[i+1:]
	} else {
		provider, model = "anthropic", raw
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if provider == "" || model == "" {
		return "", "", false
	}

	if canonical, isAlias := providerAliases[provider]; isAlias {
		provider = canonical
	}
	if provider == "anthropic" {
		if full, isShort := anthropicShortNames[strings.ToLower(model)]; isShort {
			model = full
		}
	}
	return provider, model, true
}

func classifyTier(id, bare string, cli bool, heur TierHeuristics) domain.Tier {
	if cli {
		return domain.TierHeavy
	}
	for _, cand := range []struct {
		tier domain.Tier
		hint TierHint
	}{
		{domain.TierFast, heur.Fast},
		{domain.TierMid, heur.Mid},
		{domain.TierHeavy, heur.Heavy},
	} {
		for _, p := range cand.hint.Prefixes {
			if p != "" && strings.HasPrefix(id, p) {
				return cand.tier
			}
		}
		lower := strings.ToLower(bare)
		for _, ind := range cand.hint.Indicators {
			if ind != "" && strings.Contains(lower, strings.ToLower(ind)) {
				return cand.tier
			}
		}
	}
	return domain.TierHeavy
}

// MergeModelsIncremental folds a freshly discovered model set into the
// stored one without losing operator edits: models still present keep
// their stored entry verbatim (tier reassignments and use_when edits
// survive re-discovery), models that disappeared are kept but marked
// inactive for audit, and genuinely new models are appended active.
// Merging the same discovered set twice is idempotent.
func MergeModelsIncremental(existing, discovered []domain.Model) []domain.Model {
	discoveredByID := make(map[string]domain.Model, len(discovered))
	for _, m := range discovered {
		discoveredByID[m.ID] = m
	}

	merged := make([]domain.Model, 0, len(existing)+len(discovered))
	kept := make(map[string]bool, len(existing))
	for _, m := range existing {
		kept[m.ID] = true
		if _, still := discoveredByID[m.ID]; !still {
			inactive := false
			m.Active = &inactive
		}
		merged = append(merged, m)
	}
	for _, m := range discovered {
		if !kept[m.ID] {
			merged = append(merged, m)
		}
	}
	return merged
}

// ComputeModelsHash is a cheap order-independent fingerprint of a model id
// set, used to detect configuration drift without a full diff. Not
// cryptographic; a collision at worst skips re-discovery bookkeeping.
func ComputeModelsHash(models []domain.Model) string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:8])
}
