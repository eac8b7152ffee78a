// Package classify implements the five-stage hierarchical classification
// pipeline (spec.md §2, §4.1-§4.3, §4.S): Family Classifier, Subfamily
// Classifier, Candidate Retriever, Account Selector, and the Model
// Selector that picks cheap vs. strong model per phase.
package classify

import (
	"github.com/contaflow/classifier-core/pkg/core/catalog"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// Candidate is a scored leaf-account candidate produced by the Candidate
// Retriever (spec.md §4.2B), either strategy.
type Candidate = catalog.Candidate

// PaymentMethod is the CFDI MetodoPago value.
type PaymentMethod string

const (
	PaymentPUE   PaymentMethod = "PUE"
	PaymentPPD   PaymentMethod = "PPD"
	PaymentOther PaymentMethod = "other"
)

// ConceptLine is one CFDI concepto line item.
type ConceptLine struct {
	Description   string
	Amount        float64
	ClaveProdServ string
	SharePct      float64 // fraction (0-1) of the invoice total this line represents
}

// InvoiceSnapshot is the pipeline's sole input: a pre-parsed CFDI plus
// tenant scoping, per spec.md §3.
type InvoiceSnapshot struct {
	TenantID         tenant.ID
	EmisorRFC        string
	EmisorName       string
	ReceptorRFC      string
	ReceptorName     string
	PrimaryConcept   string
	ClaveProdServ    string
	Total            float64
	Currency         string
	MetodoPago       PaymentMethod
	UsoCFDI          string
	Conceptos        []ConceptLine
}

// Validate enforces the minimal well-formedness spec.md §7 error kind 1
// requires before the pipeline runs: a malformed invoice is the caller's
// responsibility to reject, but the pipeline double-checks and fails fast
// rather than producing a nonsensical result.
func (inv InvoiceSnapshot) Validate() error {
	if inv.EmisorRFC == "" {
		return &PipelineError{Kind: ErrInvalidInput, Stage: "validate", Err: errMissingEmisor}
	}
	if len(inv.Conceptos) == 0 {
		return &PipelineError{Kind: ErrInvalidInput, Stage: "validate", Err: errMissingConceptos}
	}
	if inv.Total <= 0 {
		return &PipelineError{Kind: ErrInvalidInput, Stage: "validate", Err: errMissingTotal}
	}
	return nil
}

// IsReceived reports whether this invoice is a purchase (RECIBIDA) from the
// tenant's point of view, i.e. the receiver's RFC matches the tenant's own
// RFC. When false, it is a sale (EMITIDA).
func (inv InvoiceSnapshot) IsReceived(tenantRFC string) bool {
	return inv.ReceptorRFC == tenantRFC
}

// ConstraintMode names the strictness band the Account Selector applies to
// the family hard constraint, resolving spec.md §9 Open Question 4.
type ConstraintMode string

const (
	// ConstraintSilent: family confidence >= 0.95. Constraint applied, no
	// flag surfaced beyond the model's own confidence.
	ConstraintSilent ConstraintMode = "silent"
	// ConstraintFlagged: family confidence in [0.80, 0.95). Constraint
	// applied, but requires_human_review is forced true.
	ConstraintFlagged ConstraintMode = "flagged"
	// ConstraintSkipped: family confidence < 0.80. The hierarchical
	// constraint is not enforced; §4.2A's subfamily skip policy already
	// degrades to the family -> subfamily fallback map at this point.
	ConstraintSkipped ConstraintMode = "skipped"
)

// ConstraintModeFor classifies a family confidence score into its band.
func ConstraintModeFor(familyConfidence float64) ConstraintMode {
	switch {
	case familyConfidence >= 0.95:
		return ConstraintSilent
	case familyConfidence >= 0.80:
		return ConstraintFlagged
	default:
		return ConstraintSkipped
	}
}

// Status is the lifecycle state of an emitted ClassificationResult.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAutoApplied    Status = "auto-applied"
	StatusHumanCorrected Status = "human-corrected"
	StatusConfirmed      Status = "confirmed"
)

// AlternativeCandidate is one unused candidate surfaced alongside the final
// pick, up to 4 per spec.md §3/§8.
type AlternativeCandidate struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	FamilyCode  string  `json:"family_code"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// PipelineMetadata carries every phase's structured trace, per spec.md §6.
type PipelineMetadata struct {
	HierarchicalPhase1  FamilyResult     `json:"hierarchical_phase1"`
	HierarchicalPhase2A SubfamilyResult  `json:"hierarchical_phase2a"`
	HierarchicalPhase2B []Candidate      `json:"hierarchical_phase2b"`
	HierarchicalPhase3  SelectorTrace    `json:"hierarchical_phase3"`
	SelectedModel       string           `json:"selected_model"`
	ModelSelectionReason string          `json:"model_selection_reason"`
}

// ClassificationResult is the pipeline's sole output, per spec.md §3/§6.
type ClassificationResult struct {
	SATAccountCode        string                 `json:"sat_account_code"`
	SATAccountName        string                 `json:"sat_account_name"`
	FamilyCode            string                 `json:"family_code"`
	ConfidenceSAT         float64                `json:"confidence_sat"`
	ConfidenceFamily      float64                `json:"confidence_family"`
	ModelVersion          string                 `json:"model_version"`
	ExplanationShort      string                 `json:"explanation_short"`
	ExplanationDetail     string                 `json:"explanation_detail"`
	AlternativeCandidates []AlternativeCandidate `json:"alternative_candidates"`
	Status                Status                 `json:"status"`
	RequiresHumanReview   bool                   `json:"requires_human_review"`
	Metadata              PipelineMetadata       `json:"metadata"`
}
