// Package routing implements dynamic model routing: prompt classification,
// tiered model selection with capability-aware escalation, and a per-model
// circuit breaker tracking provider health across concurrent sessions.
package routing

import (
	"regexp"
	"strings"

	"lorekeeper/internal/domain"
)

// Score bonuses for code-shaped prompts.
const (
	pathPatternBonus = 1
	codeBlockBonus   = 2
)

// Classify maps a free-text prompt to a category and complexity score.
// It is pure and deterministic: every category's indicator substrings are
// counted case-insensitively, path patterns and fenced code blocks boost
// the CODE category, and the strictly highest score wins (ties keep the
// first category in declared order). A prompt matching nothing is CHAT.
func Classify(prompt string, cfg domain.ClassificationConfig) domain.Classification {
	lower := strings.ToLower(prompt)

	scores := make(map[string]int)
	var order []string
	var matched []string

	score := func(category string, delta int) {
		if _, seen := scores[category]; !seen {
			order = append(order, category)
		}
		scores[category] += delta
	}

	for _, cat := range cfg.Categories {
		for _, ind := range cat.Indicators {
			if ind == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(ind)) {
				score(cat.Name, 1)
				matched = append(matched, cat.Name+":"+ind)
			}
		}
	}

	// Path patterns are matched against the original-case prompt: file
	// paths are case-sensitive on most systems.
	for _, pat := range cfg.PathPatterns {
		if pat != "" && strings.Contains(prompt, pat) {
			score(domain.CategoryCode, pathPatternBonus)
			break
		}
	}

	if cfg.CodeBlockRegex != "" {
		if re, err := regexp.Compile(cfg.CodeBlockRegex); err == nil && re.MatchString(prompt) {
			score(domain.CategoryCode, codeBlockBonus)
		}
	}

	winner := domain.CategoryChat
	best := 0
	for _, cat := range order {
		if scores[cat] > best {
			winner = cat
			best = scores[cat]
		}
	}

	return domain.Classification{
		Category:          winner,
		Complexity:        complexityFor(winner, best, cfg),
		MatchedIndicators: matched,
	}
}

// complexityFor clamps low+score to the winning category's declared
// [low, high] range, defaulting to [1, 3] when undeclared.
func complexityFor(category string, score int, cfg domain.ClassificationConfig) int {
	rng := domain.DefaultComplexityRange
	for _, cat := range cfg.Categories {
		if cat.Name == category && cat.Complexity != [2]int{} {
			rng = cat.Complexity
			break
		}
	}
	c := rng[0] + score
	if c > rng[1] {
		c = rng[1]
	}
	return c
}
