package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/classifier-core/pkg/core/cache"
	"github.com/contaflow/classifier-core/pkg/core/vector"
)

// Repo is the pgx-backed SAT catalog reference, shared read-only across the
// classification pipeline's stages.
type Repo struct {
	pool                *pgxpool.Pool
	productServiceCache *cache.LRU
}

// NewRepo builds a Repo backed by pool, with its own product/service code
// LRU cache per spec.md §7 (10,000 entries).
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{
		pool:                pool,
		productServiceCache: cache.NewLRU(cache.DefaultCapacity),
	}
}

// GetByCode returns the canonical catalog row for code. Callers in
// classify.Selector use this as the sole source of sat_account_name — the
// LLM's own generated name is never trusted, per spec.md §4.3.
func (r *Repo) GetByCode(ctx context.Context, code string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT code, name, description, family_hint, embedding
		   FROM sat_account_embeddings WHERE code = $1`, code)
	var a Account
	if err := row.Scan(&a.Code, &a.Name, &a.Description, &a.FamilyHint, &a.Embedding); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("catalog: no account for code %q", code)
		}
		return nil, fmt.Errorf("catalog: get by code %q: %w", code, err)
	}
	return &a, nil
}

// SubfamiliesForFamily returns the 3-digit subfamily rows sharing the
// family code's leading digit, the Subfamily Classifier's shortlist per
// spec.md §4.2A (typically 3-15 entries).
func (r *Repo) SubfamiliesForFamily(ctx context.Context, familyCode string) ([]Account, error) {
	if familyCode == "" {
		return nil, fmt.Errorf("catalog: empty family code")
	}
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, description, family_hint, embedding
		   FROM sat_account_embeddings
		  WHERE length(code) = 3 AND left(code, 1) = left($1, 1) AND code != $1
		  ORDER BY code`, familyCode)
	if err != nil {
		return nil, fmt.Errorf("catalog: subfamilies for family %q: %w", familyCode, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// LeavesForSubfamily returns the leaf accounts ("NNN.NN") under subfamilyCode.
func (r *Repo) LeavesForSubfamily(ctx context.Context, subfamilyCode string) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, description, family_hint, embedding
		   FROM sat_account_embeddings
		  WHERE code LIKE $1
		  ORDER BY code`, subfamilyCode+".%")
	if err != nil {
		return nil, fmt.Errorf("catalog: leaves for subfamily %q: %w", subfamilyCode, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// LeavesForFamily widens the candidate pool to the whole family, used when a
// subfamily yields no leaves (spec.md §4.2B fallback).
func (r *Repo) LeavesForFamily(ctx context.Context, familyCode string) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, description, family_hint, embedding
		   FROM sat_account_embeddings
		  WHERE left(code, 1) = left($1, 1) AND code LIKE '%.%'
		  ORDER BY code`, familyCode)
	if err != nil {
		return nil, fmt.Errorf("catalog: leaves for family %q: %w", familyCode, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// VectorSearchLeaves performs a pgvector ANN search restricted to leaf codes
// matching codePrefix (a subfamily or family string), converting cosine
// distance to score = 1 - distance per spec.md §4.2B Strategy B.
func (r *Repo) VectorSearchLeaves(ctx context.Context, query vector.Vector, codePrefix string, limit int) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, description, family_hint, embedding,
		        1 - (embedding <=> $1) AS score
		   FROM sat_account_embeddings
		  WHERE code LIKE $2 AND code LIKE '%.%'
		  ORDER BY embedding <=> $1
		  LIMIT $3`, query, codePrefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: vector search prefix %q: %w", codePrefix, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var a Account
		if err := rows.Scan(&a.Code, &a.Name, &a.Description, &a.FamilyHint, &a.Embedding, &c.Score); err != nil {
			return nil, fmt.Errorf("catalog: scan vector search row: %w", err)
		}
		c.Code = a.Code
		c.Name = a.Name
		c.Description = a.Description
		c.FamilyHint = a.FamilyHint
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProductServiceName resolves an 8-digit ClaveProdServ code to its catalog
// name, consulting the bounded LRU before hitting Postgres.
func (r *Repo) ProductServiceName(ctx context.Context, claveProdServ string) (string, error) {
	if name, ok := r.productServiceCache.Get(claveProdServ); ok {
		return name, nil
	}

	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT name FROM sat_product_service_catalog WHERE code = $1`, claveProdServ,
	).Scan(&name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("catalog: no product/service entry for code %q", claveProdServ)
		}
		return "", fmt.Errorf("catalog: product/service lookup %q: %w", claveProdServ, err)
	}
	r.productServiceCache.Set(claveProdServ, name)
	return name, nil
}

// Candidate is a scored leaf-account candidate produced by either retrieval
// strategy in spec.md §4.2B.
type Candidate struct {
	Code          string
	Name          string
	Description   string
	FamilyHint    string
	Score         float64
	LLMReasoning  string
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Code, &a.Name, &a.Description, &a.FamilyHint, &a.Embedding); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
