// Package learning is the append-only substrate that short-circuits the LLM
// pipeline when a semantically close validated classification already
// exists, and persists newly validated classifications for future lookups,
// per spec.md §4.L / §4.M.
package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/contaflow/classifier-core/pkg/core/tenant"
	"github.com/contaflow/classifier-core/pkg/core/vector"
)

// ValidationType records how a Row's account assignment was validated.
type ValidationType string

const (
	ValidationHuman     ValidationType = "human"
	ValidationAuto      ValidationType = "auto"
	ValidationCorrected ValidationType = "corrected"
)

// Row is one append-only classification_learning_history record. Rows are
// never updated or deleted; KNN retrieval picks the closest by embedding and
// ties are broken by recency (most recent row wins), per spec.md §3.
type Row struct {
	ID                  uuid.UUID
	SessionID           *uuid.UUID
	TenantID            tenant.ID
	ProviderName        string
	Concept             string
	Embedding           vector.Vector // normalized embedding of "<provider> - <concept>"
	SATAccountCode       string
	FamilyCode          string
	ValidationType      ValidationType
	ValidatedBy         string
	OriginalPrediction  string  // LLM's original sat_account_code guess, if any
	OriginalConfidence  float64 // LLM's original confidence, if any
	HasOriginalPrediction bool
	CreatedAt           time.Time
}

// Match is a Row promoted to a lookup hit, carrying the similarity that
// produced it.
type Match struct {
	Row        Row
	Similarity float64
}
