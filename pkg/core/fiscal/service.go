package fiscal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/classifier-core/pkg/core/embedding"
)

// Service performs the depreciation-rate RAG lookup over fiscal_regulations.
type Service struct {
	pool *pgxpool.Pool
	enc  embedding.Encoder
}

// NewService builds a Service backed by pool, using the process-wide
// embedding encoder singleton.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, enc: embedding.Get()}
}

// LookupDepreciationRate embeds assetDescription and returns the top-1
// regulation by cosine similarity, alongside that similarity score. This is
// a sibling of the candidate-retrieval vector strategy (spec.md §4.2B) but
// outside the five-stage pipeline: it shares the catalog's embedding
// infrastructure to answer "what's the depreciation rate for this asset",
// a question the distilled pipeline never asks but the fiscal_regulations
// table in spec.md §3 exists to serve.
func (s *Service) LookupDepreciationRate(ctx context.Context, assetDescription string) (*Regulation, float64, error) {
	q, err := s.enc.Embed(ctx, assetDescription)
	if err != nil {
		return nil, 0, fmt.Errorf("fiscal: embed asset description: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT law_code, article_number, section, text,
		        fiscal_rate_pct, accounting_rate_pct, useful_life_years,
		        1 - (content_embedding <=> $1) AS score
		   FROM fiscal_regulations
		  ORDER BY content_embedding <=> $1
		  LIMIT 1`, q)

	var reg Regulation
	var score float64
	if err := row.Scan(&reg.LawCode, &reg.ArticleNumber, &reg.Section, &reg.Text,
		&reg.StructuredData.FiscalRatePct, &reg.StructuredData.AccountingRatePct,
		&reg.StructuredData.UsefulLifeYears, &score); err != nil {
		if err == pgx.ErrNoRows {
			return nil, 0, fmt.Errorf("fiscal: no regulation found for %q", assetDescription)
		}
		return nil, 0, fmt.Errorf("fiscal: lookup depreciation rate for %q: %w", assetDescription, err)
	}
	return &reg, score, nil
}
