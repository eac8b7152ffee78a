package learning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/classifier-core/pkg/core/embedding"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// SaveInput is everything the Learning Writer needs to persist a validated
// classification, per spec.md §4.M.
type SaveInput struct {
	TenantID           tenant.ID
	SessionID          *uuid.UUID
	ProviderName       string
	Concept            string
	SATAccountCode     string
	SATAccountName     string
	FamilyCode         string
	ValidationType     ValidationType
	ValidatedBy        string
	OriginalPrediction string
	OriginalConfidence float64
	HasOriginalPrediction bool
}

// Writer persists validated classifications. Save converges
// classification_learning_history (the auto-apply index) and
// ai_correction_memory (the prompt-context RAG source) in a single
// transaction so the two tables never diverge after a write — resolving
// spec.md §9's Open Question 2 about their relationship.
type Writer struct {
	pool *pgxpool.Pool
	enc  embedding.Encoder
}

// NewWriter builds a Writer backed by pool, using the process-wide encoder
// singleton.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool, enc: embedding.Get()}
}

// Save embeds "<provider> - <concept>" with the same encoder and
// normalization as Lookup, then writes both tables in one transaction.
func (w *Writer) Save(ctx context.Context, in SaveInput) error {
	q, err := w.enc.Embed(ctx, in.ProviderName+" - "+in.Concept)
	if err != nil {
		return fmt.Errorf("learning: embed for save: %w", err)
	}
	if !q.IsNormalized() {
		q = q.Normalize()
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("learning: begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO classification_learning_history
		   (id, session_id, tenant_id, provider_name, concept, embedding,
		    sat_account_code, family_code, validation_type, validated_by,
		    original_prediction, original_confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		id, in.SessionID, int64(in.TenantID), in.ProviderName, in.Concept, q,
		in.SATAccountCode, in.FamilyCode, in.ValidationType, in.ValidatedBy,
		nullableString(in.HasOriginalPrediction, in.OriginalPrediction),
		nullableFloat(in.HasOriginalPrediction, in.OriginalConfidence),
	)
	if err != nil {
		return fmt.Errorf("learning: insert learning history: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO ai_correction_memory
		   (tenant_id, provider_name, concept, sat_account_code, sat_account_name,
		    family_code, validation_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		int64(in.TenantID), in.ProviderName, in.Concept, in.SATAccountCode, in.SATAccountName,
		in.FamilyCode, in.ValidationType,
	)
	if err != nil {
		return fmt.Errorf("learning: mirror to correction memory: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("learning: commit save transaction: %w", err)
	}
	return nil
}

func nullableString(has bool, s string) *string {
	if !has {
		return nil
	}
	return &s
}

func nullableFloat(has bool, f float64) *float64 {
	if !has {
		return nil
	}
	return &f
}
