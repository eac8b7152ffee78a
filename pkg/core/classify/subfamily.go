package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/prompt"
	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
	"github.com/contaflow/classifier-core/pkg/core/utils"
)

// FamilyConfidenceSkipThreshold is the family-confidence floor below which
// the Subfamily Classifier is skipped entirely in favor of the hard-coded
// fallback map, per spec.md §4.2A's skip policy.
const FamilyConfidenceSkipThreshold = 0.80

// SubfamilyResult is the Subfamily Classifier's output, per spec.md §4.2A.
type SubfamilyResult struct {
	SubfamilyCode          string   `json:"subfamily_code"`
	SubfamilyName          string   `json:"subfamily_name"`
	Confidence             float64  `json:"confidence"`
	Reasoning              string   `json:"reasoning"`
	AlternativeSubfamilies []string `json:"alternative_subfamilies"`
	RequiresHumanReview    bool     `json:"requires_human_review"`
	HierarchicallyValid    bool     `json:"-"`
	Skipped                bool     `json:"-"`
}

// fallbackSubfamilies is the hard-coded family -> likely-subfamily map used
// when the family classifier's confidence is too low to trust a second LLM
// call, per spec.md §4.2A's skip policy. Each of the eight families maps to
// a single subfamily code; a family code missing from the map yields an
// empty subfamily code.
var fallbackSubfamilies = map[string]string{
	"100": "115",
	"200": "201",
	"300": "301",
	"400": "401",
	"500": "501",
	"600": "601",
	"700": "701",
	"800": "801",
}

const defaultSubfamilySystemPrompt = `Eres un clasificador contable experto en el catalogo de cuentas SAT mexicano.
Dada una familia ya elegida, clasifica la factura en una subfamilia de 3 digitos
que comparta el primer digito de la familia.
Reglas duras:
- Si la descripcion menciona "almacenamiento", "logistica" o "fletes" -> subfamilia 602.
- Si metodo_pago = PUE, NO clasifiques como anticipo a proveedores (120).
- NIF C-4: compras de materiales de produccion -> 115 Inventario, no 500 Costos.
Responde unicamente en JSON estricto con las llaves: subfamily_code, subfamily_name,
confidence, reasoning, alternative_subfamilies (hasta 3), requires_human_review.`

func subfamilySystemPrompt() string {
	if p, err := prompt.GetSubfamilyPrompt(); err == nil && p != "" {
		return p
	}
	return defaultSubfamilySystemPrompt
}

// SubfamilyClassifier implements spec.md §4.2A.
type SubfamilyClassifier struct {
	agents   *agent.Manager
	selector *ModelSelector
	catalog  *catalog.Repo
}

// NewSubfamilyClassifier builds a SubfamilyClassifier.
func NewSubfamilyClassifier(agents *agent.Manager, selector *ModelSelector, cat *catalog.Repo) *SubfamilyClassifier {
	return &SubfamilyClassifier{agents: agents, selector: selector, catalog: cat}
}

// Classify runs the Subfamily Classifier, or the hard-coded fallback map
// when family.Confidence is below FamilyConfidenceSkipThreshold.
func (s *SubfamilyClassifier) Classify(ctx context.Context, invoice InvoiceSnapshot, family FamilyResult, company *tenantctx.CompanyContext) (SubfamilyResult, []catalog.Account, error) {
	shortlist, err := s.catalog.SubfamiliesForFamily(ctx, family.FamilyCode)
	if err != nil {
		shortlist = nil // degrade silently; the hard-coded fallback map still applies
	}

	if family.Confidence < FamilyConfidenceSkipThreshold {
		return s.fallback(family, shortlist), shortlist, nil
	}

	// Subfamily always uses the cheap tier; spec.md §4.S's complexity
	// scoring only applies to the account-selection phase.
	userPrompt := buildSubfamilyUserPrompt(invoice, family, company, shortlist)

	raw, err := s.agents.Execute(ctx, "subfamily", agent.TierCheap, userPrompt, subfamilySystemPrompt(), map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return s.fallback(family, shortlist), shortlist, nil
	}

	var result SubfamilyResult
	if _, err := utils.SmartParse(raw, &result); err != nil {
		return s.fallback(family, shortlist), shortlist, nil
	}

	result.HierarchicallyValid = catalog.FamilyDigit(result.SubfamilyCode) == catalog.FamilyDigit(family.FamilyCode) &&
		inShortlist(result.SubfamilyCode, shortlist)
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.RequiresHumanReview = result.Confidence < 0.90 || !result.HierarchicallyValid

	return result, shortlist, nil
}

func (s *SubfamilyClassifier) fallback(family FamilyResult, shortlist []catalog.Account) SubfamilyResult {
	code := fallbackSubfamilies[family.FamilyCode]
	name := ""
	for _, a := range shortlist {
		if a.Code == code {
			name = a.Name
			break
		}
	}
	return SubfamilyResult{
		SubfamilyCode:       code,
		SubfamilyName:       name,
		Confidence:          family.Confidence,
		Reasoning:           "Familia con confianza baja; subfamilia asignada por mapa de respaldo.",
		RequiresHumanReview: true,
		HierarchicallyValid: true,
		Skipped:             true,
	}
}

func inShortlist(code string, shortlist []catalog.Account) bool {
	for _, a := range shortlist {
		if a.Code == code {
			return true
		}
	}
	return false
}

func buildSubfamilyUserPrompt(invoice InvoiceSnapshot, family FamilyResult, company *tenantctx.CompanyContext, shortlist []catalog.Account) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Familia elegida: %s (%s), confianza %.2f\n", family.FamilyCode, family.FamilyName, family.Confidence)
	fmt.Fprintf(&b, "Razonamiento de la familia: %s\n\n", family.Reasoning)

	fmt.Fprintf(&b, "Total: %.2f %s, metodo de pago: %s\n", invoice.Total, invoice.Currency, invoice.MetodoPago)
	b.WriteString("Conceptos:\n")
	for _, c := range invoice.Conceptos {
		fmt.Fprintf(&b, "- %s (importe %.2f, %.1f%% del total)\n", c.Description, c.Amount, c.SharePct*100)
	}

	if company != nil {
		fmt.Fprintf(&b, "\nContexto del tenant: industria=%q, modelo_de_negocio=%q\n", company.Industry, company.BusinessModel)
	}

	b.WriteString("\nSubfamilias disponibles:\n")
	for _, a := range shortlist {
		fmt.Fprintf(&b, "- %s: %s - %s\n", a.Code, a.Name, a.Description)
	}

	return b.String()
}
