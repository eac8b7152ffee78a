// Package correction implements the Correction API surface consumed by the
// operator UI (spec.md §6): batch auto-apply, learning statistics, and the
// human-correction write path. Grounded in
// original_source/api/classification_correction_api.py.
//
// Invoice persistence itself (expense_invoices) is an upstream/downstream
// concern the core does not own, per spec.md §1's "Out of scope" list; this
// package operates on caller-supplied PendingInvoice records and returns the
// classifications to apply, leaving the write-back to the caller.
package correction

import (
	"context"
	"fmt"

	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/learning"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// PendingInvoice is the minimal shape the batch auto-apply sweep needs from
// a caller-owned pending invoice.
type PendingInvoice struct {
	InvoiceID    string
	ProviderName string
	Concept      string
	CurrentCode  string
	Confirmed    bool // a confirmed result is never overwritten (monotone auto-apply, spec.md §8)
}

// AppliedResult is one invoice the batch sweep decided to auto-apply.
type AppliedResult struct {
	InvoiceID    string
	ProviderName string
	Concept      string
	OldCode      string
	NewCode      string
	NewName      string
	FamilyCode   string
	Similarity   float64
	Source       learning.ValidationType
}

// CorrectionInput is a human correction of a previously emitted
// classification, per spec.md §6 correct().
type CorrectionInput struct {
	TenantID           tenant.ID
	SessionID          string
	ProviderName       string
	Concept            string
	NewSATCode         string
	NewSATName         string
	NewFamilyCode      string
	Reason             string
	User               string
	OriginalPrediction string
	OriginalConfidence float64
	HasOriginalPrediction bool
}

// Service implements the Correction API's batch and statistics operations
// on top of the learning substrate and the catalog's canonical names.
type Service struct {
	lookup  *learning.Lookup
	writer  *learning.Writer
	repo    *learning.Repo
	catalog *catalog.Repo
}

// NewService builds a Service from the shared learning and catalog
// components.
func NewService(lookup *learning.Lookup, writer *learning.Writer, repo *learning.Repo, cat *catalog.Repo) *Service {
	return &Service{lookup: lookup, writer: writer, repo: repo, catalog: cat}
}

// Correct records a human correction: writes learning history (and its
// ai_correction_memory mirror) and reports pending invoices that would now
// benefit from re-classification, per
// original_source/api/classification_correction_api.py's correct().
func (s *Service) Correct(ctx context.Context, in CorrectionInput, pending []PendingInvoice) ([]AppliedResult, error) {
	err := s.writer.Save(ctx, learning.SaveInput{
		TenantID:              in.TenantID,
		ProviderName:          in.ProviderName,
		Concept:               in.Concept,
		SATAccountCode:        in.NewSATCode,
		SATAccountName:        in.NewSATName,
		FamilyCode:            in.NewFamilyCode,
		ValidationType:        learning.ValidationHuman,
		ValidatedBy:           in.User,
		OriginalPrediction:    in.OriginalPrediction,
		OriginalConfidence:    in.OriginalConfidence,
		HasOriginalPrediction: in.HasOriginalPrediction,
	})
	if err != nil {
		return nil, fmt.Errorf("correction: save human correction: %w", err)
	}

	var suggestions []AppliedResult
	for _, p := range pending {
		if p.Confirmed {
			continue
		}
		m := s.lookup.Find(ctx, in.TenantID, p.ProviderName, p.Concept)
		if m != nil && m.Row.SATAccountCode == in.NewSATCode {
			suggestions = append(suggestions, AppliedResult{
				InvoiceID:    p.InvoiceID,
				ProviderName: p.ProviderName,
				Concept:      p.Concept,
				OldCode:      p.CurrentCode,
				NewCode:      in.NewSATCode,
				NewName:      in.NewSATName,
				FamilyCode:   in.NewFamilyCode,
				Similarity:   m.Similarity,
				Source:       m.Row.ValidationType,
			})
			if len(suggestions) >= 10 {
				break
			}
		}
	}
	return suggestions, nil
}

// SearchSimilar is the preview contract for the UI: display-only similar
// classifications, never short-circuiting anything.
func (s *Service) SearchSimilar(ctx context.Context, tenantID tenant.ID, provider, concept string, topK int) ([]learning.Match, error) {
	return s.lookup.FindSimilar(ctx, tenantID, provider, concept, topK)
}

// LearningStats reports learning-history totals for tenantID.
func (s *Service) LearningStats(ctx context.Context, tenantID tenant.ID) (learning.Stats, error) {
	return s.repo.Stats(ctx, tenantID)
}

// BatchAutoApply scans pending, applying the learned classification to any
// invoice with a ≥ θ_auto similarity match, skipping already-confirmed
// invoices (monotone auto-apply, spec.md §8) and anything without a
// sufficiently similar historical match.
func (s *Service) BatchAutoApply(ctx context.Context, tenantID tenant.ID, pending []PendingInvoice, limit int) (applied []AppliedResult, skipped int, err error) {
	if limit <= 0 || limit > len(pending) {
		limit = len(pending)
	}
	for _, p := range pending[:limit] {
		if p.Confirmed || p.ProviderName == "" || p.Concept == "" {
			skipped++
			continue
		}
		m := s.lookup.Find(ctx, tenantID, p.ProviderName, p.Concept)
		if m == nil {
			skipped++
			continue
		}
		account, err := s.catalog.GetByCode(ctx, m.Row.SATAccountCode)
		if err != nil {
			skipped++
			continue
		}
		applied = append(applied, AppliedResult{
			InvoiceID:    p.InvoiceID,
			ProviderName: p.ProviderName,
			Concept:      p.Concept,
			OldCode:      p.CurrentCode,
			NewCode:      account.Code,
			NewName:      account.Name,
			FamilyCode:   account.FamilyHint,
			Similarity:   m.Similarity,
			Source:       m.Row.ValidationType,
		})
	}
	return applied, skipped, nil
}
