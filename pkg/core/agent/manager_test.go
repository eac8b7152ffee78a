package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contaflow/classifier-core/pkg/core/llm"
	"github.com/contaflow/classifier-core/pkg/core/llmguard"
)

// scriptedProvider is a test double for llm.Provider that fails a fixed
// number of times with a retryable-looking message before succeeding.
type scriptedProvider struct {
	failuresLeft int
	failureMsg   string
	response     string
	calls        int
}

func (p *scriptedProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	p.calls++
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return "", errors.New(p.failureMsg)
	}
	return p.response, nil
}

func (p *scriptedProvider) AdaptInstructions(raw string) string { return raw }

func testManager(provider llm.Provider) *Manager {
	m := NewManagerWithProviders(Config{
		CheapProvider:  "test",
		StrongProvider: "test",
	}, map[string]llm.Provider{"test": provider})
	m.retryOptions = llmguard.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1}
	return m
}

func TestExecuteCheapTierBypassesRetryOnError(t *testing.T) {
	provider := &scriptedProvider{failuresLeft: 1, failureMsg: "429 rate limited"}
	m := testManager(provider)

	_, err := m.Execute(context.Background(), "family", TierCheap, "prompt", "system", nil)
	if err == nil {
		t.Fatalf("expected the cheap tier's single failure to surface without retrying")
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly 1 call on the cheap tier, got %d", provider.calls)
	}
}

func TestExecuteStrongTierRetriesRetryableErrorThenSucceeds(t *testing.T) {
	provider := &scriptedProvider{failuresLeft: 2, failureMsg: "529 overloaded", response: "ok"}
	m := testManager(provider)

	got, err := m.Execute(context.Background(), "account_selector", TierStrong, "prompt", "system", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 calls (2 retries + success), got %d", provider.calls)
	}
}

func TestExecuteStrongTierNonRetryableErrorAbortsImmediately(t *testing.T) {
	provider := &scriptedProvider{failuresLeft: 5, failureMsg: "invalid_input: malformed request"}
	m := testManager(provider)

	_, err := m.Execute(context.Background(), "account_selector", TierStrong, "prompt", "system", nil)
	if err == nil {
		t.Fatalf("expected a non-retryable error to surface")
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly 1 call for a non-retryable error, got %d", provider.calls)
	}
}

func TestIsRetryableLLMError(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429 Too Many Requests", true},
		{"529 Overloaded", true},
		{"rate limit exceeded", true},
		{"model overloaded, try again", true},
		{"invalid_input: missing field", false},
		{"unexpected EOF", false},
	}
	for _, tc := range cases {
		if got := isRetryableLLMError(errors.New(tc.msg)); got != tc.want {
			t.Errorf("isRetryableLLMError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}
