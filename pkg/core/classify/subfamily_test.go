package classify

import (
	"testing"

	"github.com/contaflow/classifier-core/pkg/core/catalog"
)

func TestSubfamilyClassifierFallback(t *testing.T) {
	sc := &SubfamilyClassifier{}
	shortlist := []catalog.Account{
		{Code: "601", Name: "Gastos de venta"},
		{Code: "602", Name: "Fletes y almacenamiento"},
	}
	family := FamilyResult{FamilyCode: "600", Confidence: 0.5}

	result := sc.fallback(family, shortlist)

	if result.SubfamilyCode != "601" {
		t.Errorf("expected the hard-coded fallback for family 600 (601), got %q", result.SubfamilyCode)
	}
	if result.SubfamilyName != "Gastos de venta" {
		t.Errorf("expected the shortlist name to be resolved, got %q", result.SubfamilyName)
	}
	if !result.Skipped {
		t.Errorf("expected Skipped to be true")
	}
	if !result.RequiresHumanReview {
		t.Errorf("expected RequiresHumanReview to be true for a fallback assignment")
	}
	if !result.HierarchicallyValid {
		t.Errorf("expected a fallback assignment to be marked hierarchically valid by construction")
	}
}

func TestSubfamilyClassifierFallbackUnknownFamily(t *testing.T) {
	sc := &SubfamilyClassifier{}
	result := sc.fallback(FamilyResult{FamilyCode: "999"}, nil)
	if result.SubfamilyCode != "" {
		t.Errorf("expected no mapping for an unknown family code, got %q", result.SubfamilyCode)
	}
}

func TestInShortlist(t *testing.T) {
	shortlist := []catalog.Account{{Code: "601"}, {Code: "602"}}
	if !inShortlist("601", shortlist) {
		t.Errorf("expected 601 to be found in the shortlist")
	}
	if inShortlist("699", shortlist) {
		t.Errorf("expected 699 not to be found in the shortlist")
	}
	if inShortlist("601", nil) {
		t.Errorf("expected a nil shortlist to contain nothing")
	}
}
