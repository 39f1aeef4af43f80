package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	for raw, want := range map[string]Tier{
		"fast":    TierFast,
		"  MID  ": TierMid,
		"Heavy":   TierHeavy,
	} {
		got, err := ParseTier(raw)
		require.NoError(t, err, "raw=%q", raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseTier("turbo")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseTier("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEscalationChain(t *testing.T) {
	assert.Equal(t, []Tier{TierFast, TierMid, TierHeavy}, TierFast.EscalationChain())
	assert.Equal(t, []Tier{TierMid, TierHeavy}, TierMid.EscalationChain())
	assert.Equal(t, []Tier{TierHeavy}, TierHeavy.EscalationChain())
}

func TestModelIsActive(t *testing.T) {
	yes, no := true, false
	assert.True(t, Model{}.IsActive(), "missing flag means active")
	assert.True(t, Model{Active: &yes}.IsActive())
	assert.False(t, Model{Active: &no}.IsActive())
}

func TestModelSplitID(t *testing.T) {
	provider, model := Model{ID: "anthropic/claude-opus-4-6"}.SplitID()
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "claude-opus-4-6", model)

	provider, model = Model{ID: "a/b/c"}.SplitID()
	assert.Equal(t, "a", provider)
	assert.Equal(t, "b/c", model, "only the first slash splits")

	provider, model = Model{ID: "bare"}.SplitID()
	assert.Empty(t, provider)
	assert.Equal(t, "bare", model)
}

func validContext() *RoutingContext {
	return &RoutingContext{
		AgentID: "agent-1",
		Models: []Model{
			{ID: "anthropic/claude-haiku-4-5", Tier: TierFast},
		},
		Routing: RoutingPolicy{
			DefaultTier: TierMid,
			Rules:       []RoutingRule{{If: "CHAT", Then: TierFast}},
		},
	}
}

func TestRoutingContextValidate(t *testing.T) {
	require.NoError(t, validContext().Validate())

	rc := validContext()
	rc.AgentID = "  "
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)

	rc = validContext()
	rc.Routing.DefaultTier = "warp"
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)

	rc = validContext()
	rc.Models[0].Tier = "warp"
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)

	rc = validContext()
	rc.Models[0].ID = ""
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)

	rc = validContext()
	rc.Routing.Rules[0].If = ""
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)

	rc = validContext()
	rc.Routing.Rules[0].Then = "warp"
	assert.ErrorIs(t, rc.Validate(), ErrInvalidInput)
}

func TestRoutingContextNormalize(t *testing.T) {
	rc := &RoutingContext{
		AgentID: "agent-1",
		Classification: ClassificationConfig{
			Categories: []CategoryConfig{
				{Name: "CHAT"},
				{Name: "CODE", Complexity: [2]int{4, 7}},
			},
		},
	}

	rc.Normalize()

	assert.Equal(t, AmbiguousUseDefault, rc.Routing.AmbiguousAction)
	assert.Equal(t, TierMid, rc.Routing.DefaultTier)
	assert.Equal(t, DefaultComplexityRange, rc.Classification.Categories[0].Complexity)
	assert.Equal(t, [2]int{4, 7}, rc.Classification.Categories[1].Complexity, "declared range untouched")
}

func TestRoutingContextModelLookup(t *testing.T) {
	rc := validContext()

	m := rc.Model("anthropic/claude-haiku-4-5")
	require.NotNil(t, m)
	m.Tier = TierHeavy
	assert.Equal(t, TierHeavy, rc.Models[0].Tier, "lookup returns a pointer into the slice")

	assert.Nil(t, rc.Model("missing/model"))
}
