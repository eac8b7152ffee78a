// Package fiscal is the read-only LISR depreciation-provision reference and
// its sibling RAG lookup, added per SPEC_FULL.md §5/§6: spec.md §3 names the
// fiscal_regulations table but the distilled pipeline never wires an
// operation to it. Grounded in
// original_source/core/fiscal/depreciation_rate_service.py.
package fiscal

import "github.com/contaflow/classifier-core/pkg/core/vector"

// Regulation is one LISR depreciation provision.
type Regulation struct {
	LawCode        string
	ArticleNumber  string
	Section        string
	Text           string
	StructuredData DepreciationRates
	Embedding      vector.Vector
}

// DepreciationRates holds the fiscal vs. accounting depreciation rate and
// useful life named by a Regulation, as a typed struct rather than a bag of
// interface{} values.
type DepreciationRates struct {
	FiscalRatePct     float64
	AccountingRatePct float64
	UsefulLifeYears    float64
}
