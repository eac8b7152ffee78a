package classify

import (
	"strings"
	"testing"
)

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tc := range cases {
		if got := clamp01(tc.in); got != tc.want {
			t.Errorf("clamp01(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBuildEnrichedQueryIncludesPrimaryAndLargeConceptsOnly(t *testing.T) {
	inv := InvoiceSnapshot{
		EmisorName:     "Fletes del Norte SA de CV",
		PrimaryConcept: "Servicio de flete terrestre",
		Conceptos: []ConceptLine{
			{Description: "Servicio de flete terrestre", Amount: 40000, SharePct: 0.90},
			{Description: "Maniobras de carga", Amount: 5000, SharePct: 0.10},
			{Description: "Seguro de carga", Amount: 50, SharePct: 0.001},
		},
	}

	query := buildEnrichedQuery(inv)

	for _, want := range []string{"Servicio de flete terrestre", "Maniobras de carga", "Fletes del Norte SA de CV"} {
		if !strings.Contains(query, want) {
			t.Errorf("expected query to contain %q, got: %q", want, query)
		}
	}
	if strings.Contains(query, "Seguro de carga") {
		t.Errorf("expected a sub-5%% non-primary concept to be excluded, got: %q", query)
	}
}
