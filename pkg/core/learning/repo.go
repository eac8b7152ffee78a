package learning

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/classifier-core/pkg/core/tenant"
	"github.com/contaflow/classifier-core/pkg/core/vector"
)

// Repo is the pgx-backed classification_learning_history store.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo builds a Repo backed by pool.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// TopMatch returns the single closest row for tenantID by cosine similarity
// to query, or nil if nothing meets minSimilarity. Most-recent row wins
// ties, per spec.md §3.
func (r *Repo) TopMatch(ctx context.Context, tenantID tenant.ID, query vector.Vector, minSimilarity float64) (*Match, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, session_id, tenant_id, provider_name, concept, embedding,
		        sat_account_code, family_code, validation_type, validated_by,
		        original_prediction, original_confidence, created_at,
		        1 - (embedding <=> $2) AS similarity
		   FROM classification_learning_history
		  WHERE tenant_id = $1 AND 1 - (embedding <=> $2) >= $3
		  ORDER BY (1 - (embedding <=> $2)) DESC, created_at DESC
		  LIMIT 1`, int64(tenantID), query, minSimilarity)

	m, err := scanMatch(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("learning: top match for tenant %d: %w", tenantID, err)
	}
	return m, nil
}

// FindSimilar returns up to topK rows for tenantID above minSimilarity,
// ordered by similarity desc, for display-only "suggest a correction" use
// (spec.md §4.L).
func (r *Repo) FindSimilar(ctx context.Context, tenantID tenant.ID, query vector.Vector, topK int, minSimilarity float64) ([]Match, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, tenant_id, provider_name, concept, embedding,
		        sat_account_code, family_code, validation_type, validated_by,
		        original_prediction, original_confidence, created_at,
		        1 - (embedding <=> $2) AS similarity
		   FROM classification_learning_history
		  WHERE tenant_id = $1 AND 1 - (embedding <=> $2) >= $3
		  ORDER BY (1 - (embedding <=> $2)) DESC, created_at DESC
		  LIMIT $4`, int64(tenantID), query, minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("learning: find similar for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("learning: scan similar row: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// agreeingCorrectionValidationTypes restricts CountAgreeingCorrections to
// rows a human actually validated. An "auto" row reflects the pipeline's own
// prior guess, not a confirmed fact, so it must never count toward
// triggering the next auto-apply — otherwise two ordinary, unreviewed runs
// for the same provider would bootstrap auto-apply with no human ever
// having confirmed anything.
var agreeingCorrectionValidationTypes = []string{string(ValidationHuman), string(ValidationCorrected)}

// CountAgreeingCorrections counts historical human-validated rows for
// tenantID + providerRFC that agree on a single SAT code, feeding the
// Account Selector's auto-apply shortcut ("≥ 2 agree" per spec.md §4.3).
func (r *Repo) CountAgreeingCorrections(ctx context.Context, tenantID tenant.ID, providerName string) (code string, count int, err error) {
	row := r.pool.QueryRow(ctx,
		`SELECT sat_account_code, count(*) AS n
		   FROM classification_learning_history
		  WHERE tenant_id = $1 AND provider_name = $2 AND validation_type = ANY($3)
		  GROUP BY sat_account_code
		  ORDER BY n DESC
		  LIMIT 1`, int64(tenantID), providerName, agreeingCorrectionValidationTypes)
	if err := row.Scan(&code, &count); err != nil {
		if err == pgx.ErrNoRows {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("learning: count agreeing corrections for %q: %w", providerName, err)
	}
	return code, count, nil
}

// Stats summarizes a tenant's learning history for the learning-stats API,
// grounded on original_source/api/classification_correction_api.py's
// get_learning_statistics.
type Stats struct {
	TotalValidations int
	ByValidationType map[ValidationType]int
	TopProviders     []ProviderCount
}

// ProviderCount is one entry of Stats.TopProviders.
type ProviderCount struct {
	ProviderName string
	Count        int
}

// Stats aggregates classification_learning_history for tenantID.
func (r *Repo) Stats(ctx context.Context, tenantID tenant.ID) (Stats, error) {
	var s Stats
	s.ByValidationType = make(map[ValidationType]int)

	row := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM classification_learning_history WHERE tenant_id = $1`, int64(tenantID))
	if err := row.Scan(&s.TotalValidations); err != nil {
		return s, fmt.Errorf("learning: count total validations: %w", err)
	}

	typeRows, err := r.pool.Query(ctx,
		`SELECT validation_type, count(*) FROM classification_learning_history
		  WHERE tenant_id = $1 GROUP BY validation_type`, int64(tenantID))
	if err != nil {
		return s, fmt.Errorf("learning: by-validation-type breakdown: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var vt ValidationType
		var n int
		if err := typeRows.Scan(&vt, &n); err != nil {
			return s, fmt.Errorf("learning: scan validation-type row: %w", err)
		}
		s.ByValidationType[vt] = n
	}
	if err := typeRows.Err(); err != nil {
		return s, err
	}

	providerRows, err := r.pool.Query(ctx,
		`SELECT provider_name, count(*) AS n FROM classification_learning_history
		  WHERE tenant_id = $1 GROUP BY provider_name ORDER BY n DESC LIMIT 10`, int64(tenantID))
	if err != nil {
		return s, fmt.Errorf("learning: top providers: %w", err)
	}
	defer providerRows.Close()
	for providerRows.Next() {
		var pc ProviderCount
		if err := providerRows.Scan(&pc.ProviderName, &pc.Count); err != nil {
			return s, fmt.Errorf("learning: scan top-provider row: %w", err)
		}
		s.TopProviders = append(s.TopProviders, pc)
	}
	return s, providerRows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (*Match, error) {
	var m Match
	var sessionID *uuid.UUID
	var originalPrediction *string
	var originalConfidence *float64
	if err := row.Scan(
		&m.Row.ID, &sessionID, &m.Row.TenantID, &m.Row.ProviderName, &m.Row.Concept, &m.Row.Embedding,
		&m.Row.SATAccountCode, &m.Row.FamilyCode, &m.Row.ValidationType, &m.Row.ValidatedBy,
		&originalPrediction, &originalConfidence, &m.Row.CreatedAt, &m.Similarity,
	); err != nil {
		return nil, err
	}
	m.Row.SessionID = sessionID
	if originalPrediction != nil {
		m.Row.OriginalPrediction = *originalPrediction
		m.Row.HasOriginalPrediction = true
	}
	if originalConfidence != nil {
		m.Row.OriginalConfidence = *originalConfidence
	}
	return &m, nil
}
