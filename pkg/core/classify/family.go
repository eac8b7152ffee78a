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

// FamilyResult is the Family Classifier's output, per spec.md §4.1.
type FamilyResult struct {
	FamilyCode          string `json:"family_code"`
	FamilyName          string `json:"family_name"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string `json:"reasoning"`
	OverrideUsoCFDI     bool   `json:"override_uso_cfdi"`
	OverrideReason      string `json:"override_reason"`
	RequiresHumanReview bool   `json:"requires_human_review"`
}

// familyNames is the fixed set of top-level family codes and their prose
// names, per spec.md §4.1.
var familyNames = map[string]string{
	"100": "ACTIVO",
	"200": "PASIVO",
	"300": "CAPITAL",
	"400": "INGRESOS",
	"500": "COSTOS",
	"600": "GASTOS DE OPERACION",
	"700": "RESULTADO INTEGRAL DE FINANCIAMIENTO",
	"800": "CUENTAS DE ORDEN",
}

func isValidFamilyCode(code string) bool {
	_, ok := familyNames[code]
	return ok
}

// defaultFamilySystemPrompt is used when the prompt registry has no
// "classification.family" entry loaded (e.g. in tests, or a deployment
// without resources/prompts wired); it carries the same methodology the
// JSON-backed prompt is expected to refine.
const defaultFamilySystemPrompt = `Eres un clasificador contable experto en el catalogo de cuentas SAT mexicano.
Clasifica la factura en una de las 8 familias de nivel superior:
100 ACTIVO, 200 PASIVO, 300 CAPITAL, 400 INGRESOS, 500 COSTOS,
600 GASTOS DE OPERACION, 700 RESULTADO INTEGRAL DE FINANCIAMIENTO, 800 CUENTAS DE ORDEN.
Aplica NIF C-4 (reconocimiento de inventarios: materiales de produccion van a 100/Inventario,
no a 500/Costos, hasta que se consumen) y NIF C-6 (umbrales de capitalizacion: activos que
superan el umbral del cliente se clasifican en 100, no en 600, aunque el uso_cfdi declarado
diga G03 gastos generales).
El uso_cfdi declarado por el proveedor es solo una pista, nunca una autoridad: si el concepto
y el contexto de negocio lo contradicen, debes anular (override_uso_cfdi=true) y explicar por
que en override_reason.
Responde unicamente en JSON estricto con las llaves: family_code, family_name, confidence,
reasoning (minimo 10 caracteres), override_uso_cfdi, override_reason, requires_human_review.`

func familySystemPrompt() string {
	if p, err := prompt.GetFamilyPrompt(); err == nil && p != "" {
		return p
	}
	return defaultFamilySystemPrompt
}

// FamilyClassifier implements spec.md §4.1.
type FamilyClassifier struct {
	agents    *agent.Manager
	selector  *ModelSelector
	contextor *tenantctx.Provider
	catalog   *catalog.Repo
}

// NewFamilyClassifier builds a FamilyClassifier. cat may be nil, in which
// case product/service code enrichment is skipped.
func NewFamilyClassifier(agents *agent.Manager, selector *ModelSelector, contextor *tenantctx.Provider, cat *catalog.Repo) *FamilyClassifier {
	return &FamilyClassifier{agents: agents, selector: selector, contextor: contextor, catalog: cat}
}

// productServiceNames resolves each distinct ClaveProdServ on invoice to its
// catalog name, via the Repo's bounded LRU, per spec.md §7. Lookup failures
// are dropped silently; buildFamilyUserPrompt falls back to the raw code.
func (f *FamilyClassifier) productServiceNames(ctx context.Context, invoice InvoiceSnapshot) map[string]string {
	if f.catalog == nil {
		return nil
	}
	names := make(map[string]string, len(invoice.Conceptos))
	for _, c := range invoice.Conceptos {
		if c.ClaveProdServ == "" {
			continue
		}
		if _, ok := names[c.ClaveProdServ]; ok {
			continue
		}
		if name, err := f.catalog.ProductServiceName(ctx, c.ClaveProdServ); err == nil {
			names[c.ClaveProdServ] = name
		}
	}
	return names
}

// Classify runs the Family Classifier. On persistent parse/schema failure it
// returns a synthetic "needs review" result (family_code "600", confidence
// 0) rather than an error, per spec.md §4.1's failure mode.
func (f *FamilyClassifier) Classify(ctx context.Context, invoice InvoiceSnapshot, company *tenantctx.CompanyContext) (FamilyResult, error) {
	tier, reason := f.selector.SelectForFamily()
	names := f.productServiceNames(ctx, invoice)

	userPrompt := buildFamilyUserPrompt(invoice, company, nil, names)
	result, err := f.call(ctx, tier, userPrompt)

	if err == nil && result.Confidence < 0.80 && f.contextor != nil {
		examples, exErr := f.contextor.GetFamilyClassificationExamples(ctx, invoice.TenantID, 5)
		if exErr == nil && len(examples) > 0 {
			retryPrompt := buildFamilyUserPrompt(invoice, company, examples, names)
			if retryResult, retryErr := f.call(ctx, tier, retryPrompt); retryErr == nil {
				result = retryResult
			}
		}
	}

	if err != nil {
		return needsReviewFamily(), nil
	}

	_ = reason // the family-phase model-selection reason is not recorded
	return result, nil
}

func (f *FamilyClassifier) call(ctx context.Context, tier agent.Tier, userPrompt string) (FamilyResult, error) {
	raw, err := f.agents.Execute(ctx, "family", tier, userPrompt, familySystemPrompt(), map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return FamilyResult{}, &PipelineError{Kind: ErrProviderError, Stage: "family", Err: err}
	}

	var result FamilyResult
	if _, err := utils.SmartParse(raw, &result); err != nil {
		return FamilyResult{}, &PipelineError{Kind: ErrSchemaViolation, Stage: "family", Err: err}
	}

	if !isValidFamilyCode(result.FamilyCode) {
		return FamilyResult{}, &PipelineError{Kind: ErrSchemaViolation, Stage: "family",
			Err: fmt.Errorf("family_code %q not in enum", result.FamilyCode)}
	}
	if len(strings.TrimSpace(result.Reasoning)) < 10 {
		return FamilyResult{}, &PipelineError{Kind: ErrSchemaViolation, Stage: "family",
			Err: fmt.Errorf("reasoning too short")}
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.Confidence = roundTo2DP(result.Confidence)
	if result.FamilyName == "" {
		result.FamilyName = familyNames[result.FamilyCode]
	}
	result.RequiresHumanReview = result.Confidence < 0.95

	return result, nil
}

func needsReviewFamily() FamilyResult {
	return FamilyResult{
		FamilyCode:          "600",
		FamilyName:          familyNames["600"],
		Confidence:          0,
		Reasoning:           "No se pudo clasificar automaticamente; requiere revision humana.",
		RequiresHumanReview: true,
	}
}

func buildFamilyUserPrompt(invoice InvoiceSnapshot, company *tenantctx.CompanyContext, examples []tenantctx.Example, productServiceNames map[string]string) string {
	var b strings.Builder

	tenantRFC := ""
	if company != nil {
		tenantRFC = company.TenantRFC
	}
	direction := "indeterminada"
	if tenantRFC != "" {
		if invoice.IsReceived(tenantRFC) {
			direction = "RECIBIDA (compra)"
		} else {
			direction = "EMITIDA (venta)"
		}
	}
	fmt.Fprintf(&b, "Direccion de la factura: %s\n", direction)
	fmt.Fprintf(&b, "Emisor: %s (%s)\n", invoice.EmisorName, invoice.EmisorRFC)
	fmt.Fprintf(&b, "Total: %.2f %s, metodo de pago: %s, uso_cfdi declarado: %s\n",
		invoice.Total, invoice.Currency, invoice.MetodoPago, invoice.UsoCFDI)
	b.WriteString("Conceptos:\n")
	for _, c := range invoice.Conceptos {
		claveProdServ := c.ClaveProdServ
		if name, ok := productServiceNames[c.ClaveProdServ]; ok && name != "" {
			claveProdServ = fmt.Sprintf("%s (%s)", c.ClaveProdServ, name)
		}
		fmt.Fprintf(&b, "- %s (importe %.2f, %.1f%% del total, clave_prod_serv %s)\n",
			c.Description, c.Amount, c.SharePct*100, claveProdServ)
	}

	if company != nil {
		fmt.Fprintf(&b, "\nContexto del tenant: industria=%q, modelo_de_negocio=%q\n", company.Industry, company.BusinessModel)
		if treatment, ok := company.ProviderTreatments[invoice.EmisorRFC]; ok {
			fmt.Fprintf(&b, "Tratamiento conocido para este proveedor: %s\n", treatment)
		}
		if company.CapitalizationThreshold != nil {
			fmt.Fprintf(&b, "Umbral de capitalizacion (NIF C-6): %.2f\n", *company.CapitalizationThreshold)
		}
	}

	if len(examples) > 0 {
		b.WriteString("\nEjemplos de clasificaciones previas validadas:\n")
		for _, e := range examples {
			fmt.Fprintf(&b, "- %q -> familia %s\n", e.Description, e.FamilyCode)
		}
	}

	return b.String()
}

func roundTo2DP(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
