package learning

import (
	"context"
	"fmt"

	"github.com/contaflow/classifier-core/pkg/core/embedding"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// AutoApplyThreshold (θ_auto) is the similarity floor above which a
// learning-history hit short-circuits the pipeline, per spec.md §4.L.
const AutoApplyThreshold = 0.92

// DisplayThreshold (θ_display) is the lower floor above which a result is
// surfaced for "find similar" UI suggestions but never short-circuits the
// pipeline, per spec.md §4.L.
const DisplayThreshold = 0.85

// Lookup implements the Learning Lookup stage (spec.md §4.L): a semantic
// KNN short-circuit against classification_learning_history.
type Lookup struct {
	repo *Repo
	enc  embedding.Encoder
}

// NewLookup builds a Lookup backed by repo, using the process-wide encoder
// singleton.
func NewLookup(repo *Repo) *Lookup {
	return &Lookup{repo: repo, enc: embedding.Get()}
}

// Find computes the "<provider> - <concept>" embedding and returns the
// closest learning-history row for tenantID if similarity >= θ_auto, or nil
// otherwise. Any failure (embedder down, DB down) is swallowed and returns
// nil: the Learning Lookup stage is fail-open, per spec.md §4.L —
// the pipeline always proceeds to the Family Classifier on error.
func (l *Lookup) Find(ctx context.Context, tenantID tenant.ID, provider, concept string) *Match {
	q, err := l.enc.Embed(ctx, provider+" - "+concept)
	if err != nil {
		return nil
	}
	m, err := l.repo.TopMatch(ctx, tenantID, q, AutoApplyThreshold)
	if err != nil {
		return nil
	}
	return m
}

// FindSimilar returns display-only suggestions between θ_display and θ_auto
// (and above), for the "suggest a correction" UI contract. It does not
// short-circuit the pipeline.
func (l *Lookup) FindSimilar(ctx context.Context, tenantID tenant.ID, provider, concept string, topK int) ([]Match, error) {
	q, err := l.enc.Embed(ctx, provider+" - "+concept)
	if err != nil {
		return nil, fmt.Errorf("learning: embed for find-similar: %w", err)
	}
	return l.repo.FindSimilar(ctx, tenantID, q, topK, DisplayThreshold)
}
