package tenantctx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// Provider loads tenant classification settings and few-shot examples.
type Provider struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewProvider builds a Provider backed by pool and an optional cache (pass
// NewCache(nil) for no-Redis deployments).
func NewProvider(pool *pgxpool.Pool, cache *Cache) *Provider {
	return &Provider{pool: pool, cache: cache}
}

type settingsRow struct {
	RFC                     string            `json:"rfc"`
	Industry                string            `json:"industry"`
	BusinessModel           string            `json:"business_model"`
	TypicalExpenses         []string          `json:"typical_expenses"`
	ProviderTreatments      map[string]string `json:"provider_treatments"`
	CapitalizationThreshold *float64          `json:"capitalization_threshold"`
	Policies                struct {
		COGS  string `json:"cogs"`
		OpEx  string `json:"opex"`
		Sales string `json:"sales_expense"`
	} `json:"policies"`
	Preferences struct {
		DetailLevel          string  `json:"detail_level"`
		AutoApproveThreshold float64 `json:"auto_approve_threshold"`
	} `json:"preferences"`
}

// GetContext loads tenantID's settings JSON from the companies table. A
// missing row returns (nil, nil); a query or JSON decoding failure returns
// an error, which Pipeline.Classify discards before proceeding without
// tenant context enrichment, per spec.md §7 error kind 6.
func (p *Provider) GetContext(ctx context.Context, tenantID tenant.ID) (*CompanyContext, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT settings FROM companies WHERE tenant_id = $1`, int64(tenantID),
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tenantctx: load settings for tenant %d: %w", tenantID, err)
	}

	var sr settingsRow
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("tenantctx: parse settings for tenant %d: %w", tenantID, err)
	}

	return &CompanyContext{
		TenantRFC:               sr.RFC,
		Industry:                DescribeIndustry(sr.Industry),
		BusinessModel:           DescribeIndustry(sr.BusinessModel),
		TypicalExpenses:         sr.TypicalExpenses,
		ProviderTreatments:      sr.ProviderTreatments,
		CapitalizationThreshold: sr.CapitalizationThreshold,
		Policies: Policies{
			COGSDefinition:         sr.Policies.COGS,
			OpExDefinition:         sr.Policies.OpEx,
			SalesExpenseDefinition: sr.Policies.Sales,
		},
		Preferences: Preferences{
			DetailLevel:          sr.Preferences.DetailLevel,
			AutoApproveThreshold: sr.Preferences.AutoApproveThreshold,
		},
	}, nil
}

// GetSimilarCorrections retrieves past validated classifications for the
// same provider from ai_correction_memory, used as Account Selector RAG
// context (spec.md §4.3). An empty providerRFC matches any provider;
// description is not used by the query.
func (p *Provider) GetSimilarCorrections(ctx context.Context, tenantID tenant.ID, providerRFC, description string, limit int) ([]Correction, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT provider_name, concept, sat_account_code, family_code
		   FROM ai_correction_memory
		  WHERE tenant_id = $1 AND ($2 = '' OR provider_name = $2)
		  ORDER BY created_at DESC
		  LIMIT $3`, int64(tenantID), providerRFC, limit)
	if err != nil {
		return nil, fmt.Errorf("tenantctx: similar corrections for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.ProviderName, &c.Concept, &c.SATCode, &c.FamilyCode); err != nil {
			return nil, fmt.Errorf("tenantctx: scan correction row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetFamilyClassificationExamples returns up to limit (default 5) few-shot
// family-classification examples for tenantID, Redis-cached for
// ExamplesTTL. On cache miss it reads the most recent ai_correction_memory
// rows, deduplicated on description; past pipeline classifications are not
// included.
func (p *Provider) GetFamilyClassificationExamples(ctx context.Context, tenantID tenant.ID, limit int) ([]Example, error) {
	if limit <= 0 {
		limit = 5
	}
	key := examplesCacheKey(int64(tenantID))
	if p.cache != nil {
		if cached, ok := p.cache.GetExamples(ctx, key); ok {
			return cached, nil
		}
	}

	rows, err := p.pool.Query(ctx,
		`SELECT concept, family_code FROM ai_correction_memory
		  WHERE tenant_id = $1
		  ORDER BY created_at DESC
		  LIMIT $2`, int64(tenantID), limit*2)
	if err != nil {
		return nil, fmt.Errorf("tenantctx: family examples for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var examples []Example
	for rows.Next() {
		var e Example
		e.ConfidenceFamily = 1.0 // validated rows are ground truth
		if err := rows.Scan(&e.Description, &e.FamilyCode); err != nil {
			return nil, fmt.Errorf("tenantctx: scan example row: %w", err)
		}
		if seen[e.Description] {
			continue
		}
		seen[e.Description] = true
		examples = append(examples, e)
		if len(examples) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.SetExamples(ctx, key, examples)
	}
	return examples, nil
}
