package domain

import "context"

// BeforePromptHook is the gateway extension point invoked before each
// prompt. A nil override means "run on whatever model the gateway would
// have used anyway".
type BeforePromptHook interface {
	BeforePrompt(ctx context.Context, prompt string, toolsInContext bool, sessionKey string) *ModelOverride
}

// AfterRunHook is the gateway extension point invoked after each agent run
// completes, closing the routing feedback loop.
type AfterRunHook interface {
	AfterRun(ctx context.Context, sessionKey string, success bool, runErr error)
}

// GatewayConfig is the read-only snapshot of agent/model configuration the
// gateway exposes to model discovery: the primary model, its fallbacks, and
// any CLI-backend identifiers.
type GatewayConfig struct {
	PrimaryModel   string
	FallbackModels []string
	CLIBackends    []string
}
