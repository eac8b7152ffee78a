package classify

import "errors"

// ErrKind enumerates the pipeline's error kinds in order of fatality, per
// spec.md §7.
type ErrKind string

const (
	ErrInvalidInput      ErrKind = "invalid_input"
	ErrNoCandidates      ErrKind = "no_candidates"
	ErrProviderError     ErrKind = "provider_error"
	ErrSchemaViolation   ErrKind = "schema_violation"
	ErrHierarchyViolation ErrKind = "hierarchy_violation"
	ErrDegradedEnrichment ErrKind = "degraded_enrichment"
)

// PipelineError attaches a Kind and the stage it occurred in to an
// underlying error, so callers can branch on Kind without string matching.
// Only ErrInvalidInput is meant to propagate as a hard failure; every other
// kind is handled internally by the pipeline and surfaces as a low-
// confidence ClassificationResult, never as a returned error, per spec.md
// §7's "never crash the pipeline" mandate.
type PipelineError struct {
	Kind  ErrKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " at " + e.Stage
	}
	return string(e.Kind) + " at " + e.Stage + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

var (
	errMissingEmisor    = errors.New("invoice missing emisor RFC")
	errMissingConceptos = errors.New("invoice has no line items")
	errMissingTotal     = errors.New("invoice total must be positive")
)
