// Package tenantctx is the Context Provider (spec.md §4.C): tenant
// classification settings, provider-specific treatments, and Redis-cached
// few-shot examples injected into the Family and Account Selector prompts.
package tenantctx

// CompanyContext is a tenant's classification settings blob, per spec.md §3.
type CompanyContext struct {
	TenantRFC             string // the tenant's own RFC, used to detect invoice direction
	Industry             string
	BusinessModel         string
	TypicalExpenses       []string          // semantic tags, never SAT codes
	ProviderTreatments    map[string]string // RFC -> semantic tag
	CapitalizationThreshold *float64
	Policies              Policies
	Preferences           Preferences
}

// Policies holds optional COGS/OpEx/sales-expense category definitions a
// tenant has configured.
type Policies struct {
	COGSDefinition         string
	OpExDefinition         string
	SalesExpenseDefinition string
}

// Preferences holds tenant-level classification preferences.
type Preferences struct {
	DetailLevel           string
	AutoApproveThreshold  float64
}

// Correction is a past validated classification for the same provider, used
// as RAG context in the Account Selector prompt (spec.md §4.3).
type Correction struct {
	ProviderName string
	Concept      string
	SATCode      string
	FamilyCode   string
}

// Example is a compressed few-shot family-classification example.
type Example struct {
	Description     string
	FamilyCode      string
	ConfidenceFamily float64
}

// industryDescriptions maps the normalized industry/business-model keys a
// tenant's settings carry to the prose descriptions used verbatim in
// prompts, per spec.md §4.C.
var industryDescriptions = map[string]string{
	"food_production":      "Producción y transformación de alimentos",
	"production":           "Empresa manufacturera o de producción",
	"software_consultancy": "Consultoría y desarrollo de software",
	"services":             "Empresa de servicios profesionales",
}

// DescribeIndustry returns the tenant's industry/business-model key
// expanded into prose for prompt injection, falling back to the raw key if
// unrecognized.
func DescribeIndustry(key string) string {
	if d, ok := industryDescriptions[key]; ok {
		return d
	}
	return key
}
