// Package agent selects an LLM provider for each classification phase.
//
// spec.md §4.S splits phases into a "cheap model" tier (family, subfamily,
// candidate retrieval, account selection — high volume, low per-call cost)
// and a "strong model" tier that Model Selector escalates to when the
// complexity score crosses its threshold. The phase/provider map below
// generalizes the teacher's flat ActiveProvider switch to that two-tier
// routing while keeping the same provider registry and override shape.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/contaflow/classifier-core/pkg/core/llm"
	"github.com/contaflow/classifier-core/pkg/core/llmguard"
)

// strongTierAdmissionCapacity bounds concurrent calls to the strong-model
// provider, per spec.md §5.
const strongTierAdmissionCapacity = 3

// Tier names a provider's role in the classification pipeline.
type Tier string

const (
	TierCheap  Tier = "cheap"
	TierStrong Tier = "strong"
)

// Config wires provider names to tiers and allows per-phase overrides, e.g.
// routing "account_selector" straight to the strong tier regardless of the
// Model Selector's score.
type Config struct {
	CheapProvider  string                 `yaml:"cheap_provider"`
	StrongProvider string                 `yaml:"strong_provider"`
	Phases         map[string]PhaseConfig `yaml:"phases"`
}

// PhaseConfig overrides tier selection for a single pipeline phase.
type PhaseConfig struct {
	ForceProvider string `yaml:"force_provider"` // empty: defer to the Model Selector's tier choice
	Description   string `yaml:"description"`
}

// Manager resolves a pipeline phase and tier into a concrete llm.Provider.
type Manager struct {
	config       Config
	providers    map[string]llm.Provider
	admission    *llmguard.Admission
	retryOptions llmguard.RetryOptions
}

// NewManager builds a Manager with the full provider registry available to
// the classification core: Gemini as the default cheap model, DeepSeek and
// Qwen as strong-model candidates, and OpenAI/Kimi/Doubao kept wired as
// deployment-time alternates.
func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"openai":   &llm.OpenAIProvider{},
			"gemini":   &llm.GeminiProvider{},
			"deepseek": &llm.DeepSeekProvider{},
			"qwen":     &llm.QwenProvider{},
			"kimi":     &llm.KimiProvider{},
			"doubao":   &llm.DoubaoProvider{},
		},
		admission:    llmguard.NewAdmission(strongTierAdmissionCapacity),
		retryOptions: llmguard.FamilyOrAccountRetryOptions(),
	}
}

// NewManagerWithProviders builds a Manager with a caller-supplied provider
// registry, bypassing the production Gemini/DeepSeek/Qwen wiring. Used by
// tests and by tooling that needs to swap in a scripted or single-provider
// registry.
func NewManagerWithProviders(config Config, providers map[string]llm.Provider) *Manager {
	return &Manager{
		config:       config,
		providers:    providers,
		admission:    llmguard.NewAdmission(strongTierAdmissionCapacity),
		retryOptions: llmguard.FamilyOrAccountRetryOptions(),
	}
}

// ResolveProvider picks a provider for the given phase ("family",
// "subfamily", "candidate_retrieval", "account_selector") and tier. A
// per-phase ForceProvider override wins outright; otherwise the tier's
// configured provider is used.
func (m *Manager) ResolveProvider(phase string, tier Tier) (llm.Provider, error) {
	if pc, ok := m.config.Phases[phase]; ok && pc.ForceProvider != "" {
		if p, ok := m.providers[pc.ForceProvider]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("agent: phase %q forces unknown provider %q", phase, pc.ForceProvider)
	}

	name := m.config.CheapProvider
	if tier == TierStrong {
		name = m.config.StrongProvider
	}
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("agent: no provider registered for tier %q (configured name %q)", tier, name)
}

// GetProviderByName retrieves a provider instance by its specific name (e.g.
// "deepseek", "gemini"), bypassing tier resolution. Used by tooling that
// needs to address a model directly.
func (m *Manager) GetProviderByName(name string) (llm.Provider, error) {
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("agent: provider %q not registered", name)
}

// Execute adapts the system prompt for the resolved provider's "teaching"
// style and runs the call. Strong-tier calls are gated by the admission
// semaphore and retried on transient upstream errors, per spec.md §5; cheap
// calls bypass both since they aren't rate-limited.
func (m *Manager) Execute(ctx context.Context, phase string, tier Tier, rawPrompt, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider, err := m.ResolveProvider(phase, tier)
	if err != nil {
		return "", err
	}
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)

	if tier != TierStrong || m.admission == nil {
		return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
	}

	release, err := m.admission.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: admission wait: %w", err)
	}
	defer release()

	var response string
	err = llmguard.WithRetry(ctx, func() error {
		resp, callErr := provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
		if callErr != nil {
			return &llmguard.RetryableError{Err: callErr, Retryable: isRetryableLLMError(callErr)}
		}
		response = resp
		return nil
	}, m.retryOptions)
	if err != nil {
		return "", err
	}
	return response, nil
}

// isRetryableLLMError reports whether err looks like a transient upstream
// condition (rate limiting, overload, deadline) worth retrying with backoff,
// per spec.md §5.
func isRetryableLLMError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "529", "rate limit", "overloaded", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
