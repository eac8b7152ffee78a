package classify

import (
	"context"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/llm"
)

// scriptedProvider is a test double for llm.Provider that replays a fixed
// response (or error) regardless of the prompt, and records the last
// prompt/system prompt it was called with so assertions can inspect them.
type scriptedProvider struct {
	response   string
	err        error
	lastPrompt string
	lastSystem string
	calls      int
}

func (p *scriptedProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	p.calls++
	p.lastPrompt = prompt
	p.lastSystem = systemPrompt
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *scriptedProvider) AdaptInstructions(raw string) string {
	return raw
}

// newTestManager builds an agent.Manager whose cheap and strong tiers both
// resolve to provider, bypassing the production provider registry.
func newTestManager(provider llm.Provider) *agent.Manager {
	return agent.NewManagerWithProviders(agent.Config{
		CheapProvider:  "test",
		StrongProvider: "test",
	}, map[string]llm.Provider{"test": provider})
}
