package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/learning"
	"github.com/contaflow/classifier-core/pkg/core/prompt"
	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
	"github.com/contaflow/classifier-core/pkg/core/utils"
)

// agreeingCorrectionsThreshold is the number of identical prior human
// corrections for a provider that triggers the auto-apply shortcut, per
// spec.md §4.3.
const agreeingCorrectionsThreshold = 2

// agreeingCorrectionConfidence is the confidence assigned to an auto-applied
// result, per spec.md §4.3.
const agreeingCorrectionConfidence = 0.95

// maxAlternatives is the number of unused candidates surfaced alongside the
// final pick, per spec.md §3/§8.
const maxAlternatives = 4

const defaultAccountSelectorSystemPrompt = `Eres un clasificador contable experto en el catalogo de cuentas SAT mexicano.
Elige la cuenta de nivel hoja (con punto decimal, ej. 601.48) mas apropiada entre los
candidatos dados. No inventes el nombre de la cuenta: usa exactamente el nombre provisto
para el codigo elegido. La cuenta DEBE pertenecer a la familia ya determinada.
Responde unicamente en JSON estricto con las llaves: sat_account_code, confidence,
explanation_short, explanation_detail.`

func accountSelectorSystemPrompt() string {
	if p, err := prompt.GetAccountSelectorPrompt(); err == nil && p != "" {
		return p
	}
	return defaultAccountSelectorSystemPrompt
}

// SelectorTrace carries the Account Selector's structured trace for
// PipelineMetadata.HierarchicalPhase3, per spec.md §6.
type SelectorTrace struct {
	Source              string   `json:"source"` // "auto_apply", "llm", or "fallback_no_llm"
	ConstraintMode       string   `json:"constraint_mode"`
	CandidatesConsidered int      `json:"candidates_considered"`
	AgreeingCorrections  int      `json:"agreeing_corrections,omitempty"`
	SelectedModel        string   `json:"selected_model"`
	ModelSelectionReason string   `json:"model_selection_reason"`
	ViolatedConstraint    bool     `json:"violated_constraint,omitempty"`
}

type selectorResponse struct {
	SATAccountCode    string  `json:"sat_account_code"`
	Confidence        float64 `json:"confidence"`
	ExplanationShort  string  `json:"explanation_short"`
	ExplanationDetail string  `json:"explanation_detail"`
}

// AccountSelector implements spec.md §4.3, the pipeline's final phase.
type AccountSelector struct {
	agents    *agent.Manager
	selector  *ModelSelector
	catalog   *catalog.Repo
	learning  *learning.Repo
	contextor *tenantctx.Provider
}

// NewAccountSelector builds an AccountSelector.
func NewAccountSelector(agents *agent.Manager, selector *ModelSelector, cat *catalog.Repo, learningRepo *learning.Repo, contextor *tenantctx.Provider) *AccountSelector {
	return &AccountSelector{agents: agents, selector: selector, catalog: cat, learning: learningRepo, contextor: contextor}
}

// Select picks the final leaf SAT account from the candidate list, applying
// the auto-apply shortcut, the hierarchical constraint, and the no-LLM
// fallback, per spec.md §4.3.
func (a *AccountSelector) Select(ctx context.Context, invoice InvoiceSnapshot, family FamilyResult, candidates []Candidate) (ClassificationResult, SelectorTrace, error) {
	if len(candidates) == 0 {
		return ClassificationResult{}, SelectorTrace{}, &PipelineError{Kind: ErrNoCandidates, Stage: "selection",
			Err: fmt.Errorf("no candidates to select from")}
	}

	mode := ConstraintModeFor(family.Confidence)
	trace := SelectorTrace{ConstraintMode: string(mode), CandidatesConsidered: len(candidates)}

	if code, count, err := a.checkAutoApply(ctx, invoice); err == nil && count >= agreeingCorrectionsThreshold {
		acct, acctErr := a.catalog.GetByCode(ctx, code)
		if acctErr == nil {
			trace.Source = "auto_apply"
			trace.AgreeingCorrections = count
			result := a.buildResult(acct, family, agreeingCorrectionConfidence,
				"Codigo aplicado automaticamente por correcciones historicas consistentes.",
				fmt.Sprintf("El proveedor %s ha sido corregido %d veces a la cuenta %s; se aplica automaticamente.", invoice.EmisorRFC, count, code),
				nil, trace)
			return result, trace, nil
		}
	}

	constrained := filterHierarchy(candidates, family.FamilyCode, mode)
	if len(constrained) == 0 {
		// Constraint too strict for what retrieval actually returned; degrade
		// by keeping the unconstrained set rather than failing the pipeline.
		constrained = candidates
		trace.ViolatedConstraint = true
	}
	sort.SliceStable(constrained, func(i, j int) bool { return constrained[i].Score > constrained[j].Score })

	tier, reason := a.resolveTier(ctx, invoice, constrained)
	trace.SelectedModel = string(tier)
	trace.ModelSelectionReason = reason

	if a.agents == nil {
		trace.Source = "fallback_no_llm"
		top := constrained[0]
		acct, err := a.catalog.GetByCode(ctx, top.Code)
		name := top.Name
		if err == nil {
			name = acct.Name
		}
		result := ClassificationResult{
			SATAccountCode:    top.Code,
			SATAccountName:    name,
			FamilyCode:        family.FamilyCode,
			ConfidenceSAT:     top.Score,
			ConfidenceFamily:  family.Confidence,
			ExplanationShort:  "Seleccion por similitud semantica (sin modelo de lenguaje disponible).",
			ExplanationDetail: top.LLMReasoning,
			Status:            StatusPending,
			RequiresHumanReview: true,
		}
		result.AlternativeCandidates = buildAlternatives(constrained, top.Code)
		return result, trace, nil
	}

	corrections := a.similarCorrections(ctx, invoice)
	userPrompt := buildAccountSelectorUserPrompt(invoice, family, constrained, corrections)

	raw, err := a.agents.Execute(ctx, "account_selector", tier, userPrompt, accountSelectorSystemPrompt(), map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		trace.Source = "fallback_no_llm"
		return a.fallbackSelect(ctx, family, constrained, trace)
	}

	var resp selectorResponse
	if _, err := utils.SmartParse(raw, &resp); err != nil {
		trace.Source = "fallback_no_llm"
		return a.fallbackSelect(ctx, family, constrained, trace)
	}

	chosen := findCandidate(constrained, resp.SATAccountCode)
	if chosen == nil {
		trace.Source = "fallback_no_llm"
		return a.fallbackSelect(ctx, family, constrained, trace)
	}

	acct, err := a.catalog.GetByCode(ctx, chosen.Code)
	if err != nil {
		trace.Source = "fallback_no_llm"
		return a.fallbackSelect(ctx, family, constrained, trace)
	}

	trace.Source = "llm"
	confidence := clamp01(resp.Confidence)
	result := a.buildResult(acct, family, confidence, resp.ExplanationShort, resp.ExplanationDetail, constrained, trace)
	return result, trace, nil
}

func (a *AccountSelector) buildResult(acct *catalog.Account, family FamilyResult, confidence float64, short, detail string, pool []Candidate, trace SelectorTrace) ClassificationResult {
	status := StatusPending
	requiresReview := confidence < 0.80 || trace.ViolatedConstraint
	if trace.Source == "auto_apply" {
		status = StatusAutoApplied
		requiresReview = false
	}
	result := ClassificationResult{
		SATAccountCode:      acct.Code,
		SATAccountName:      acct.Name, // canonical name, never the LLM's own text
		FamilyCode:          family.FamilyCode,
		ConfidenceSAT:       confidence,
		ConfidenceFamily:    family.Confidence,
		ExplanationShort:    short,
		ExplanationDetail:   detail,
		Status:              status,
		RequiresHumanReview: requiresReview,
	}
	if pool != nil {
		result.AlternativeCandidates = buildAlternatives(pool, acct.Code)
	}
	return result
}

func (a *AccountSelector) fallbackSelect(ctx context.Context, family FamilyResult, constrained []Candidate, trace SelectorTrace) (ClassificationResult, SelectorTrace, error) {
	top := constrained[0]
	acct, err := a.catalog.GetByCode(ctx, top.Code)
	name := top.Name
	if err == nil {
		name = acct.Name
	}
	result := ClassificationResult{
		SATAccountCode:      top.Code,
		SATAccountName:      name,
		FamilyCode:          family.FamilyCode,
		ConfidenceSAT:       top.Score,
		ConfidenceFamily:    family.Confidence,
		ExplanationShort:    "Seleccion de respaldo: mejor candidato por puntaje de recuperacion.",
		ExplanationDetail:   top.LLMReasoning,
		Status:              StatusPending,
		RequiresHumanReview: true,
	}
	result.AlternativeCandidates = buildAlternatives(constrained, top.Code)
	return result, trace, nil
}

func (a *AccountSelector) checkAutoApply(ctx context.Context, invoice InvoiceSnapshot) (string, int, error) {
	if a.learning == nil {
		return "", 0, fmt.Errorf("no learning repo configured")
	}
	return a.learning.CountAgreeingCorrections(ctx, invoice.TenantID, invoice.EmisorRFC)
}

func (a *AccountSelector) similarCorrections(ctx context.Context, invoice InvoiceSnapshot) []tenantctx.Correction {
	if a.contextor == nil {
		return nil
	}
	corrections, err := a.contextor.GetSimilarCorrections(ctx, invoice.TenantID, invoice.EmisorRFC, invoice.PrimaryConcept, 5)
	if err != nil {
		return nil
	}
	return corrections
}

func (a *AccountSelector) resolveTier(ctx context.Context, invoice InvoiceSnapshot, candidates []Candidate) (agent.Tier, string) {
	in := AccountComplexityInput{
		TopCandidateScore:  candidates[0].Score,
		ConceptDescription: invoice.PrimaryConcept,
		Amount:             invoice.Total,
	}
	if len(candidates) > 1 {
		in.HasSecondCandidate = true
		in.SecondCandidateScore = candidates[1].Score
	}
	if a.learning != nil {
		if _, count, err := a.learning.CountAgreeingCorrections(ctx, invoice.TenantID, invoice.EmisorRFC); err == nil {
			in.ProviderCorrectionCount = count
		}
	}
	return a.selector.SelectForAccount(in)
}

// filterHierarchy keeps only candidates whose family digit matches and whose
// code is a leaf (contains a decimal point), when mode requires the
// constraint; ConstraintSkipped disables the check entirely per spec.md §9
// Open Question 4.
func filterHierarchy(candidates []Candidate, familyCode string, mode ConstraintMode) []Candidate {
	if mode == ConstraintSkipped {
		return candidates
	}
	familyDigit := catalog.FamilyDigit(familyCode)
	var out []Candidate
	for _, c := range candidates {
		if !catalog.IsLeaf(c.Code) {
			continue
		}
		if catalog.FamilyDigit(c.Code) != familyDigit {
			continue
		}
		out = append(out, c)
	}
	return out
}

func findCandidate(candidates []Candidate, code string) *Candidate {
	for i := range candidates {
		if candidates[i].Code == code {
			return &candidates[i]
		}
	}
	return nil
}

func buildAlternatives(pool []Candidate, chosenCode string) []AlternativeCandidate {
	var out []AlternativeCandidate
	for _, c := range pool {
		if c.Code == chosenCode {
			continue
		}
		out = append(out, AlternativeCandidate{
			Code:        c.Code,
			Name:        c.Name,
			FamilyCode:  c.FamilyHint,
			Score:       c.Score,
			Description: c.Description,
		})
		if len(out) >= maxAlternatives {
			break
		}
	}
	return out
}

func buildAccountSelectorUserPrompt(invoice InvoiceSnapshot, family FamilyResult, candidates []Candidate, corrections []tenantctx.Correction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Familia: %s (%s)\n", family.FamilyCode, family.FamilyName)
	fmt.Fprintf(&b, "Concepto principal: %s\n", invoice.PrimaryConcept)
	fmt.Fprintf(&b, "Total: %.2f %s, metodo de pago: %s\n", invoice.Total, invoice.Currency, invoice.MetodoPago)

	b.WriteString("\nCandidatos:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s: %s - %s (score %.2f)\n", c.Code, c.Name, c.Description, c.Score)
	}

	if len(corrections) > 0 {
		b.WriteString("\nCorrecciones previas similares:\n")
		for _, corr := range corrections {
			fmt.Fprintf(&b, "- %q -> %s (familia %s)\n", corr.Concept, corr.SATCode, corr.FamilyCode)
		}
	}

	return b.String()
}
