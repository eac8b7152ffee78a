package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/embedding"
	"github.com/contaflow/classifier-core/pkg/core/prompt"
	"github.com/contaflow/classifier-core/pkg/core/utils"
)

// RetrievalStrategy selects between the two Candidate Retriever algorithms
// of spec.md §4.2B.
type RetrievalStrategy string

const (
	// StrategyLLM wins when the subfamily has < 30 accounts and semantic
	// interpretation of provider-type-over-concept-substring matters.
	StrategyLLM    RetrievalStrategy = "llm"
	StrategyVector RetrievalStrategy = "vector"
)

// llmStrategyAccountCeiling is the subfamily leaf count at or above which
// Strategy B (vector) is forced whatever strategy is configured; below it,
// the configured strategy is used.
const llmStrategyAccountCeiling = 30

// defaultK is the retrieval size when the caller doesn't specify one.
const defaultK = 12

// defaultFallbackSubfamilies is the dynamic default set used when both the
// subfamily and the family yield no accounts (spec.md §4.2B's final
// fallback): common purchase-side subfamilies seen across tenants.
var defaultFallbackSubfamilies = []string{"601", "602", "613"}

const defaultRetrievalSystemPrompt = `Eres un asistente que selecciona las cuentas contables SAT mas relevantes
para una factura, entre una lista enumerada. Ordena hasta K cuentas por relevancia,
asignando un score entre 0 y 1 y una breve justificacion a cada una.
Responde unicamente en JSON estricto: {"candidates": [{"code": "...", "score": 0.0, "reasoning": "..."}]}.`

func retrievalSystemPrompt() string {
	if p, err := prompt.GetCandidateRetrievalPrompt(); err == nil && p != "" {
		return p
	}
	return defaultRetrievalSystemPrompt
}

// Retriever implements the Candidate Retriever stage, spec.md §4.2B.
type Retriever struct {
	agents   *agent.Manager
	catalog  *catalog.Repo
	enc      embedding.Encoder
	strategy RetrievalStrategy
}

// NewRetriever builds a Retriever using the given default strategy ("llm"
// or "vector"); it is honored per-call unless the leaf count exceeds
// llmStrategyAccountCeiling, which forces vector retrieval regardless.
func NewRetriever(agents *agent.Manager, cat *catalog.Repo, strategy RetrievalStrategy) *Retriever {
	return &Retriever{agents: agents, catalog: cat, enc: embedding.Get(), strategy: strategy}
}

type retrievalResponse struct {
	Candidates []struct {
		Code      string  `json:"code"`
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	} `json:"candidates"`
}

// Retrieve returns up to K scored leaf candidates within subfamily.Code, per
// spec.md §4.2B. An empty result after widening to the family and the
// dynamic default set is a fatal ErrNoCandidates.
func (r *Retriever) Retrieve(ctx context.Context, invoice InvoiceSnapshot, subfamily SubfamilyResult, phase2aReasoning string, k int) ([]Candidate, error) {
	if k <= 0 {
		k = defaultK
	}

	leaves, err := r.catalog.LeavesForSubfamily(ctx, subfamily.SubfamilyCode)
	if err != nil {
		leaves = nil
	}

	prefix := subfamily.SubfamilyCode
	if len(leaves) == 0 {
		wide, err := r.catalog.LeavesForFamily(ctx, subfamily.SubfamilyCode)
		if err == nil {
			leaves = wide
		}
		prefix = string(catalog.FamilyDigit(subfamily.SubfamilyCode))
	}
	if len(leaves) == 0 {
		for _, fallbackCode := range defaultFallbackSubfamilies {
			wide, err := r.catalog.LeavesForSubfamily(ctx, fallbackCode)
			if err == nil {
				leaves = append(leaves, wide...)
			}
		}
		prefix = ""
	}
	if len(leaves) == 0 {
		return nil, &PipelineError{Kind: ErrNoCandidates, Stage: "retrieval",
			Err: fmt.Errorf("no accounts found for subfamily %q or fallbacks", subfamily.SubfamilyCode)}
	}

	strategy := r.strategy
	if strategy == "" {
		strategy = StrategyVector
	}
	if len(leaves) >= llmStrategyAccountCeiling {
		// Hard ceiling: an LLM prompt enumerating this many accounts is
		// unreliable regardless of the configured default.
		strategy = StrategyVector
	}

	if strategy == StrategyLLM {
		candidates, err := r.retrieveLLM(ctx, invoice, leaves, phase2aReasoning, k)
		if err == nil {
			return candidates, nil
		}
		// Fallback to Strategy B on any error, per spec.md §4.2B.
	}

	return r.retrieveVector(ctx, invoice, prefix, k)
}

func (r *Retriever) retrieveLLM(ctx context.Context, invoice InvoiceSnapshot, leaves []catalog.Account, phase2aReasoning string, k int) ([]Candidate, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Razonamiento de subfamilia: %s\n\n", phase2aReasoning)
	fmt.Fprintf(&b, "Concepto principal: %s\n", invoice.PrimaryConcept)
	for _, c := range invoice.Conceptos {
		fmt.Fprintf(&b, "- %s (importe %.2f, %.1f%% del total)\n", c.Description, c.Amount, c.SharePct*100)
	}
	b.WriteString("\nCuentas disponibles:\n")
	for _, a := range leaves {
		fmt.Fprintf(&b, "- %s: %s - %s\n", a.Code, a.Name, a.Description)
	}
	fmt.Fprintf(&b, "\nSelecciona y ordena hasta %d cuentas.\n", k)

	raw, err := r.agents.Execute(ctx, "candidate_retrieval", agent.TierCheap, b.String(), retrievalSystemPrompt(),
		map[string]interface{}{"response_format": map[string]interface{}{"type": "json_object"}})
	if err != nil {
		return nil, fmt.Errorf("retriever: llm strategy: %w", err)
	}

	var resp retrievalResponse
	if _, err := utils.SmartParse(raw, &resp); err != nil {
		return nil, fmt.Errorf("retriever: llm strategy parse: %w", err)
	}

	byCode := make(map[string]catalog.Account, len(leaves))
	for _, a := range leaves {
		byCode[a.Code] = a
	}

	var out []Candidate
	for _, c := range resp.Candidates {
		a, ok := byCode[c.Code]
		if !ok {
			continue // only codes from the enumerated list are valid
		}
		out = append(out, Candidate{
			Code:         a.Code,
			Name:         a.Name,
			Description:  a.Description,
			FamilyHint:   a.FamilyHint,
			Score:        clamp01(c.Score),
			LLMReasoning: c.Reasoning,
		})
		if len(out) >= k {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("retriever: llm strategy returned no valid candidates")
	}
	return out, nil
}

func (r *Retriever) retrieveVector(ctx context.Context, invoice InvoiceSnapshot, codePrefix string, k int) ([]Candidate, error) {
	query := buildEnrichedQuery(invoice)
	q, err := r.enc.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}

	candidates, err := r.catalog.VectorSearchLeaves(ctx, q, codePrefix, k)
	if err != nil {
		return nil, fmt.Errorf("retriever: vector strategy: %w", err)
	}
	if len(candidates) == 0 {
		return nil, &PipelineError{Kind: ErrNoCandidates, Stage: "retrieval",
			Err: fmt.Errorf("vector search returned no candidates for prefix %q", codePrefix)}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates, nil
}

// buildEnrichedQuery combines the primary concept (with its share of the
// total), any additional concepts >= 5% of total, and the provider name,
// per spec.md §4.2B Strategy B.
func buildEnrichedQuery(invoice InvoiceSnapshot) string {
	var parts []string
	for _, c := range invoice.Conceptos {
		if c.Description == invoice.PrimaryConcept || c.SharePct >= 0.05 {
			parts = append(parts, fmt.Sprintf("%s (%.0f%%)", c.Description, c.SharePct*100))
		}
	}
	parts = append(parts, invoice.EmisorName)
	return strings.Join(parts, " - ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
