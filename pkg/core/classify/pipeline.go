package classify

import (
	"context"

	"github.com/contaflow/classifier-core/pkg/core/agent"
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/learning"
	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
)

// Pipeline orchestrates the full five-stage hierarchical classification
// flow, per spec.md §2: Learning Lookup -> Family -> Subfamily -> Candidate
// Retrieval -> Account Selector. Every stage degrades rather than panics;
// only InvoiceSnapshot.Validate's ErrInvalidInput propagates as a hard
// error, per spec.md §7.
type Pipeline struct {
	lookup    *learning.Lookup
	family    *FamilyClassifier
	subfamily *SubfamilyClassifier
	retriever *Retriever
	selector  *AccountSelector
	writer    *learning.Writer
	contextor *tenantctx.Provider
	catalog   *catalog.Repo
}

// NewPipeline wires the five stages together.
func NewPipeline(lookup *learning.Lookup, family *FamilyClassifier, subfamily *SubfamilyClassifier, retriever *Retriever, selector *AccountSelector, writer *learning.Writer, contextor *tenantctx.Provider, cat *catalog.Repo) *Pipeline {
	return &Pipeline{
		lookup:    lookup,
		family:    family,
		subfamily: subfamily,
		retriever: retriever,
		selector:  selector,
		writer:    writer,
		contextor: contextor,
		catalog:   cat,
	}
}

// Classify runs the pipeline end to end for a single invoice, per spec.md
// §2's data flow: "invoice dict -> L (hit? -> return) -> S(family) -> 1 ->
// S(account) -> 2A -> 2B -> 3 -> return."
func (p *Pipeline) Classify(ctx context.Context, invoice InvoiceSnapshot) (ClassificationResult, error) {
	if err := invoice.Validate(); err != nil {
		return ClassificationResult{}, err
	}

	if p.lookup != nil {
		if hit := p.lookup.Find(ctx, invoice.TenantID, invoice.EmisorRFC, invoice.PrimaryConcept); hit != nil {
			return p.resultFromLearningHit(ctx, invoice, *hit), nil
		}
	}

	var company *tenantctx.CompanyContext
	if p.contextor != nil {
		if c, err := p.contextor.GetContext(ctx, invoice.TenantID); err == nil {
			company = c
		}
	}

	family, err := p.family.Classify(ctx, invoice, company)
	if err != nil {
		return ClassificationResult{}, err
	}

	subfamily, _, err := p.subfamily.Classify(ctx, invoice, family, company)
	if err != nil {
		return ClassificationResult{}, err
	}

	candidates, err := p.retriever.Retrieve(ctx, invoice, subfamily, subfamily.Reasoning, defaultK)
	if err != nil {
		return ClassificationResult{
			FamilyCode:          family.FamilyCode,
			ConfidenceFamily:    family.Confidence,
			ExplanationShort:    "No se encontraron cuentas candidatas para esta factura.",
			ExplanationDetail:   err.Error(),
			Status:              StatusPending,
			RequiresHumanReview: true,
			Metadata:            PipelineMetadata{HierarchicalPhase1: family, HierarchicalPhase2A: subfamily},
		}, nil
	}

	result, trace, err := p.selector.Select(ctx, invoice, family, candidates)
	if err != nil {
		return ClassificationResult{}, err
	}

	result.ModelVersion = string(agent.TierCheap)
	if trace.SelectedModel != "" {
		result.ModelVersion = trace.SelectedModel
	}
	result.RequiresHumanReview = result.RequiresHumanReview || family.RequiresHumanReview || subfamily.RequiresHumanReview
	result.Metadata = PipelineMetadata{
		HierarchicalPhase1:   family,
		HierarchicalPhase2A:  subfamily,
		HierarchicalPhase2B:  candidates,
		HierarchicalPhase3:   trace,
		SelectedModel:        trace.SelectedModel,
		ModelSelectionReason: trace.ModelSelectionReason,
	}

	// Classify never writes to learning history itself: rows are created
	// only via an explicit save, triggered by a human correction
	// (correction.Service.Correct) or by the operator confirming this
	// result (Pipeline.Confirm), per spec.md §3's lifecycle.
	return result, nil
}

// Confirm persists result as an operator-confirmed classification for
// invoice, the other explicit entry point into learning history besides a
// human correction (spec.md §3). Callers invoke this only when a human has
// actually reviewed and accepted the result Classify returned.
func (p *Pipeline) Confirm(ctx context.Context, invoice InvoiceSnapshot, result ClassificationResult) error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Save(ctx, learning.SaveInput{
		TenantID:              invoice.TenantID,
		ProviderName:          invoice.EmisorRFC,
		Concept:               invoice.PrimaryConcept,
		SATAccountCode:        result.SATAccountCode,
		SATAccountName:        result.SATAccountName,
		FamilyCode:            result.FamilyCode,
		ValidationType:        learning.ValidationHuman,
		OriginalPrediction:    result.SATAccountCode,
		OriginalConfidence:    result.ConfidenceSAT,
		HasOriginalPrediction: true,
	})
}

func (p *Pipeline) resultFromLearningHit(ctx context.Context, invoice InvoiceSnapshot, hit learning.Match) ClassificationResult {
	name := ""
	if p.catalog != nil {
		if acct, err := p.catalog.GetByCode(ctx, hit.Row.SATAccountCode); err == nil {
			name = acct.Name
		}
	}
	return ClassificationResult{
		SATAccountCode:      hit.Row.SATAccountCode,
		SATAccountName:      name,
		FamilyCode:          hit.Row.FamilyCode,
		ConfidenceSAT:       hit.Similarity,
		ConfidenceFamily:    hit.Similarity,
		ExplanationShort:    "Coincidencia con historial de aprendizaje.",
		ExplanationDetail:   "Un concepto casi identico de este proveedor ya fue clasificado y validado previamente.",
		Status:              StatusConfirmed,
		RequiresHumanReview: hit.Similarity < learning.AutoApplyThreshold,
	}
}
