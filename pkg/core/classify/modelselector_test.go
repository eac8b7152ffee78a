package classify

import (
	"testing"

	"github.com/contaflow/classifier-core/pkg/core/agent"
)

func TestModelSelectorSelectForFamilyAlwaysCheap(t *testing.T) {
	s := NewModelSelector()
	tier, reason := s.SelectForFamily()
	if tier != agent.TierCheap {
		t.Errorf("expected family phase to always use the cheap tier, got %q", tier)
	}
	if reason == "" {
		t.Errorf("expected a non-empty reason")
	}
	if s.Stats().CheapCount != 1 {
		t.Errorf("expected CheapCount to be 1, got %d", s.Stats().CheapCount)
	}
}

func TestModelSelectorSelectForAccountSimpleCase(t *testing.T) {
	s := NewModelSelector()
	tier, _ := s.SelectForAccount(AccountComplexityInput{
		TopCandidateScore:  0.95,
		ConceptDescription: "Renta de oficina mensual",
		Amount:             5000,
	})
	if tier != agent.TierCheap {
		t.Errorf("expected a clear top candidate and low amount to route cheap, got %q", tier)
	}
}

func TestModelSelectorSelectForAccountComplexCase(t *testing.T) {
	s := NewModelSelector()
	tier, reason := s.SelectForAccount(AccountComplexityInput{
		TopCandidateScore:      0.55,
		HasSecondCandidate:     true,
		SecondCandidateScore:   0.53,
		ConceptDescription:     "a",
		Amount:                 120000,
		ProviderCorrectionCount: 3,
	})
	if tier != agent.TierStrong {
		t.Errorf("expected an ambiguous, high-value, frequently-corrected case to escalate to strong, got %q", tier)
	}
	if reason == "" {
		t.Errorf("expected a non-empty reason")
	}
}

func TestModelSelectorStatsAccumulateCost(t *testing.T) {
	s := NewModelSelector()
	s.SelectForFamily()
	s.SelectForAccount(AccountComplexityInput{TopCandidateScore: 0.99, ConceptDescription: "renta mensual fija", Amount: 100})

	stats := s.Stats()
	if stats.CheapCount != 2 {
		t.Errorf("expected CheapCount 2, got %d", stats.CheapCount)
	}
	want := s.CheapCallCost * 2
	if stats.TotalCost != want {
		t.Errorf("TotalCost = %v, want %v", stats.TotalCost, want)
	}
}

func TestAssessComplexityClampsToOne(t *testing.T) {
	score, reasons := assessComplexity(AccountComplexityInput{
		TopCandidateScore:      0.1,
		HasSecondCandidate:     true,
		SecondCandidateScore:   0.09,
		ConceptDescription:     "a, b y c",
		Amount:                 999999,
		ProviderCorrectionCount: 10,
	})
	if score != 1.0 {
		t.Errorf("expected score to clamp at 1.0, got %v", score)
	}
	if len(reasons) == 0 {
		t.Errorf("expected at least one reason to be recorded")
	}
}
