package routing

import (
	"fmt"
	"sort"

	"lorekeeper/internal/domain"
)

// HealthPredicate reports whether a model id is currently eligible for
// scheduling. It is injected by the caller (normally HealthTracker.IsHealthy)
// so the resolver stays a pure function of its explicit inputs.
type HealthPredicate func(modelID string) bool

// Resolve walks the routing rules for a classified prompt and picks a model,
// escalating through tiers when the targeted tier cannot satisfy capability
// or health constraints. It returns an explicit no-override decision (never
// an error) when no rule matches or every tier is exhausted: the system
// prefers a working answer on the default model over a hard failure.
func Resolve(prompt string, rc *domain.RoutingContext, toolsInContext bool, healthy HealthPredicate) domain.Decision {
	cls := Classify(prompt, rc.Classification)

	rule, ok := matchRule(rc.Routing.Rules, cls.Category, toolsInContext)
	if !ok {
		if rc.Routing.AmbiguousAction == domain.AmbiguousUseDefault {
			reason := fmt.Sprintf("default_tier=%s", rc.Routing.DefaultTier)
			return escalate(rc, rc.Routing.DefaultTier, toolsInContext, healthy, cls, reason)
		}
		return domain.Decision{
			Override:   false,
			Category:   cls.Category,
			Complexity: cls.Complexity,
			Reason: fmt.Sprintf("no_rule category=%s tools=%t indicators=%v",
				cls.Category, toolsInContext, cls.MatchedIndicators),
		}
	}

	reason := rule.Reason
	if reason == "" {
		reason = fmt.Sprintf("rule: %s+tools=%t→%s", rule.If, rule.ToolsInContext, rule.Then)
	}
	return escalate(rc, rule.Then, toolsInContext, healthy, cls, reason)
}

// matchRule filters rules to the (category, tools) pair and returns the
// highest-priority match. The sort is stable, so rules tied at the maximum
// priority break on stored order.
func matchRule(rules []domain.RoutingRule, category string, tools bool) (domain.RoutingRule, bool) {
	var matches []domain.RoutingRule
	for _, r := range rules {
		if r.If == category && r.ToolsInContext == tools {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return domain.RoutingRule{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority > matches[j].Priority
	})
	return matches[0], true
}

// escalate walks the tier chain starting at from, selecting the first model
// per tier that is active, tool-capable when tools are in context, and
// healthy per the injected predicate.
func escalate(rc *domain.RoutingContext, from domain.Tier, tools bool, healthy HealthPredicate, cls domain.Classification, reason string) domain.Decision {
	for _, tier := range from.EscalationChain() {
		m := firstCandidate(rc.Models, tier, tools, healthy)
		if m == nil {
			continue
		}
		if tier != from {
			reason = fmt.Sprintf("%s escalated %s→%s", reason, from, tier)
		}
		provider, model := m.SplitID()
		return domain.Decision{
			Override:   true,
			Provider:   provider,
			Model:      model,
			Tier:       tier,
			Category:   cls.Category,
			Complexity: cls.Complexity,
			Reason:     reason,
		}
	}
	return domain.Decision{
		Override:   false,
		Category:   cls.Category,
		Complexity: cls.Complexity,
		Reason:     fmt.Sprintf("all_tiers_exhausted starting_tier=%s tools=%t", from, tools),
	}
}

func firstCandidate(models []domain.Model, tier domain.Tier, tools bool, healthy HealthPredicate) *domain.Model {
	for i := range models {
		m := &models[i]
		if m.Tier != tier || !m.IsActive() {
			continue
		}
		if tools && !m.Capabilities.Tools {
			continue
		}
		if healthy != nil && !healthy(m.ID) {
			continue
		}
		return m
	}
	return nil
}
