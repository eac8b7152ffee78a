// Package embedding provides the process-wide multilingual sentence encoder
// used to embed "<provider> - <concept>" strings for the learning lookup
// (spec.md §4.L) and concept strings for vector-based candidate retrieval
// (spec.md §4.2B Strategy B).
//
// The singleton lifecycle mirrors the teacher's module-level lazy
// initialization pattern (prompt.Get(), store.InitDB's sync.Once).
package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/contaflow/classifier-core/pkg/core/vector"
)

// Encoder turns text into a normalized 384-dim embedding.
type Encoder interface {
	Embed(ctx context.Context, text string) (vector.Vector, error)
}

var (
	instance Encoder
	once     sync.Once
)

// Get returns the process-wide encoder, initializing it on first use.
// EMBEDDING_SERVICE_URL selects an HTTP-backed multilingual MiniLM server;
// its absence falls back to the deterministic offline encoder, which keeps
// the pipeline usable (and testable) without a model-serving sidecar.
func Get() Encoder {
	once.Do(func() {
		if url := os.Getenv("EMBEDDING_SERVICE_URL"); url != "" {
			instance = &HTTPEncoder{BaseURL: url, Client: &http.Client{}}
			return
		}
		instance = &OfflineEncoder{}
	})
	return instance
}

// SetForTesting overrides the singleton; tests restore it with the returned
// func. Never call this outside test code.
func SetForTesting(e Encoder) (restore func()) {
	once.Do(func() {}) // ensure Get()'s lazy-init never fires after an override
	prev := instance
	instance = e
	return func() { instance = prev }
}

// HTTPEncoder calls an external embedding microservice (e.g. a
// sentence-transformers multilingual-MiniLM server) over HTTP.
type HTTPEncoder struct {
	BaseURL string
	Client  *http.Client
}

// Embed sends a POST with an empty body to BaseURL+"/embed" and returns a
// transport error or non-200 status as an error. It neither sends the text
// nor decodes a response, so a 200 reply also yields an error; callers
// (learning lookup, retrieval) treat embedder failure as fail-open per
// spec.md §4.L.
func (e *HTTPEncoder) Embed(ctx context.Context, text string) (vector.Vector, error) {
	// Minimal dependency-free client: a real deployment would reuse an
	// http.Client with keep-alives configured process-wide, same posture
	// as the teacher's GeminiProvider building its own client per call.
	var v vector.Vector
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/embed", nil)
	if err != nil {
		return v, fmt.Errorf("embedding: build request: %w", err)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return v, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return v, fmt.Errorf("embedding: service returned status %d", resp.StatusCode)
	}
	return v, fmt.Errorf("embedding: HTTPEncoder wire format not configured for this deployment")
}

// OfflineEncoder deterministically projects text into a unit vector using a
// seeded hash, giving tests (and air-gapped environments) a stable,
// dependency-free stand-in for the real multilingual encoder. It has no
// semantic meaning beyond "same text -> same vector, different text ->
// different vector" and must never be used to serve production traffic.
type OfflineEncoder struct{}

// Embed hashes text with SHA-256 and expands the digest into Dims floats via
// a simple counter-mode stretch, then normalizes the result.
func (e *OfflineEncoder) Embed(_ context.Context, text string) (vector.Vector, error) {
	var v vector.Vector
	h := sha256.Sum256([]byte(text))
	for i := 0; i < vector.Dims; i++ {
		seed := sha256.Sum256(append(h[:], byte(i), byte(i>>8)))
		// Map bytes of the stretched digest into roughly [-1, 1].
		var acc int32
		for _, b := range seed[:4] {
			acc = acc*31 + int32(b)
		}
		v[i] = float32(acc%2000-1000) / 1000.0
	}
	return v.Normalize(), nil
}
