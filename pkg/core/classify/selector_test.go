package classify

import (
	"context"
	"testing"

	"github.com/contaflow/classifier-core/pkg/core/agent"
)

func sampleCandidates() []Candidate {
	return []Candidate{
		{Code: "601.48", Name: "Fletes y acarreos", FamilyHint: "600", Score: 0.91},
		{Code: "601.02", Name: "Papeleria y utiles", FamilyHint: "600", Score: 0.40},
		{Code: "601", Name: "Gastos de venta (no hoja)", FamilyHint: "600", Score: 0.95},
		{Code: "115.30", Name: "Inventario de materiales", FamilyHint: "100", Score: 0.80},
	}
}

func TestFilterHierarchySilentKeepsOnlyMatchingLeaves(t *testing.T) {
	out := filterHierarchy(sampleCandidates(), "600", ConstraintSilent)
	if len(out) != 2 {
		t.Fatalf("expected 2 matching leaves, got %d: %+v", len(out), out)
	}
	for _, c := range out {
		if c.Code != "601.48" && c.Code != "601.02" {
			t.Errorf("unexpected candidate in filtered set: %q", c.Code)
		}
	}
}

func TestFilterHierarchySkippedDisablesFilter(t *testing.T) {
	out := filterHierarchy(sampleCandidates(), "600", ConstraintSkipped)
	if len(out) != len(sampleCandidates()) {
		t.Errorf("expected ConstraintSkipped to return every candidate unfiltered, got %d", len(out))
	}
}

func TestFindCandidate(t *testing.T) {
	pool := sampleCandidates()
	got := findCandidate(pool, "601.02")
	if got == nil || got.Name != "Papeleria y utiles" {
		t.Fatalf("expected to find 601.02, got %+v", got)
	}
	if findCandidate(pool, "999.99") != nil {
		t.Errorf("expected no match for an absent code")
	}
}

func TestAccountSelectorCheckAutoApplyWithNoLearningRepo(t *testing.T) {
	as := &AccountSelector{}
	code, count, err := as.checkAutoApply(context.Background(), validInvoice())
	if err == nil {
		t.Fatalf("expected an error when no learning repo is configured")
	}
	if code != "" || count != 0 {
		t.Errorf("expected zero-value results alongside the error, got code=%q count=%d", code, count)
	}
}

func TestAccountSelectorResolveTierWithoutLearningRepo(t *testing.T) {
	as := &AccountSelector{selector: NewModelSelector()}
	candidates := []Candidate{{Code: "601.48", Score: 0.97}}

	tier, reason := as.resolveTier(context.Background(), validInvoice(), candidates)
	if tier != agent.TierCheap {
		t.Errorf("expected a clear single candidate to resolve to the cheap tier, got %q", tier)
	}
	if reason == "" {
		t.Errorf("expected a non-empty reason")
	}
}

func TestBuildAlternativesExcludesChosenAndCaps(t *testing.T) {
	pool := []Candidate{
		{Code: "601.01"}, {Code: "601.02"}, {Code: "601.03"},
		{Code: "601.04"}, {Code: "601.05"}, {Code: "601.06"},
	}
	alts := buildAlternatives(pool, "601.03")
	if len(alts) != maxAlternatives {
		t.Fatalf("expected capping at maxAlternatives (%d), got %d", maxAlternatives, len(alts))
	}
	for _, a := range alts {
		if a.Code == "601.03" {
			t.Errorf("expected the chosen code to be excluded from alternatives")
		}
	}
}
