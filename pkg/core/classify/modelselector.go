package classify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/contaflow/classifier-core/pkg/core/agent"
)

// ModelSelector is the Model Selector stage (spec.md §4.S): per-invoice
// adaptive choice between the cheap and strong model tiers, tracking
// per-process usage counts and cumulative cost for observability. Grounded
// on original_source/core/ai_pipeline/classification/model_selector.py's
// AdaptiveModelSelector.
type ModelSelector struct {
	mu    sync.Mutex
	usage UsageStats

	// CheapCallCost and StrongCallCost are the estimated per-call costs
	// used for the observability counters, mirroring the source's
	// haiku/sonnet cost_per_call estimates.
	CheapCallCost  float64
	StrongCallCost float64
}

// UsageStats tracks per-process model usage and cumulative estimated cost.
type UsageStats struct {
	CheapCount  int
	StrongCount int
	TotalCost   float64
}

// NewModelSelector builds a ModelSelector with the source's default cost
// estimates.
func NewModelSelector() *ModelSelector {
	return &ModelSelector{CheapCallCost: 0.003, StrongCallCost: 0.008}
}

// SelectForFamily always returns the cheap tier: only 8 possible outputs,
// low stakes since the Subfamily stage refines further, per spec.md §4.S.
func (s *ModelSelector) SelectForFamily() (agent.Tier, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.CheapCount++
	s.usage.TotalCost += s.CheapCallCost
	return agent.TierCheap, "family classification: simple task (8 options)"
}

// AccountComplexityInput is everything the account-phase complexity score
// needs.
type AccountComplexityInput struct {
	TopCandidateScore      float64
	HasSecondCandidate     bool
	SecondCandidateScore   float64
	ConceptDescription     string
	Amount                 float64
	ProviderCorrectionCount int
}

// SelectForAccount computes the complexity score per spec.md §4.S and
// returns the tier plus a human-readable reason.
func (s *ModelSelector) SelectForAccount(in AccountComplexityInput) (agent.Tier, string) {
	score, reasons := assessComplexity(in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if score < 0.5 {
		s.usage.CheapCount++
		s.usage.TotalCost += s.CheapCallCost
		return agent.TierCheap, fmt.Sprintf("simple case (score: %.2f): %s", score, strings.Join(firstN(reasons, 2), ", "))
	}
	s.usage.StrongCount++
	s.usage.TotalCost += s.StrongCallCost
	return agent.TierStrong, fmt.Sprintf("complex case (score: %.2f): %s", score, strings.Join(reasons, ", "))
}

// Stats returns a snapshot of usage counters.
func (s *ModelSelector) Stats() UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func assessComplexity(in AccountComplexityInput) (float64, []string) {
	var score float64
	var reasons []string

	if in.TopCandidateScore > 0.90 {
		reasons = append(reasons, fmt.Sprintf("clear top candidate (%.0f%%)", in.TopCandidateScore*100))
	} else {
		score += 0.4
		reasons = append(reasons, fmt.Sprintf("ambiguous top candidate (%.0f%%)", in.TopCandidateScore*100))
	}

	if in.HasSecondCandidate {
		gap := in.TopCandidateScore - in.SecondCandidateScore
		if gap < 0.05 {
			score += 0.3
			reasons = append(reasons, fmt.Sprintf("small gap between candidates (%.0f%%)", gap*100))
		}
	}

	conceptCount := strings.Count(in.ConceptDescription, ",") + strings.Count(in.ConceptDescription, " y ")
	if conceptCount >= 2 {
		score += 0.3
		reasons = append(reasons, fmt.Sprintf("multiple concepts (%d)", conceptCount+1))
	}

	wordCount := len(strings.Fields(in.ConceptDescription))
	if wordCount < 3 {
		score += 0.2
		reasons = append(reasons, fmt.Sprintf("short description (%d words)", wordCount))
	}

	if in.Amount > 50000 {
		score += 0.4
		reasons = append(reasons, fmt.Sprintf("high amount ($%.0f)", in.Amount))
	}

	if in.ProviderCorrectionCount >= 2 {
		score += 0.5
		reasons = append(reasons, fmt.Sprintf("provider corrected %d times", in.ProviderCorrectionCount))
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
