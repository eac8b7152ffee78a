// Package correction exposes pkg/core/correction's Service over HTTP,
// grounded on original_source/api/classification_correction_api.py's four
// endpoints: /correct, /search-similar, /learning-stats, /batch-auto-apply.
package correction

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/contaflow/classifier-core/pkg/core/correction"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// Handler holds the correction service dependency.
type Handler struct {
	Service *correction.Service
}

// NewHandler builds a Handler.
func NewHandler(service *correction.Service) *Handler {
	return &Handler{Service: service}
}

func cors(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

type correctRequestWire struct {
	TenantID              int64                        `json:"tenant_id"`
	SessionID             string                        `json:"session_id"`
	ProviderName          string                        `json:"provider_name"`
	Concept               string                        `json:"concept"`
	NewSATCode            string                        `json:"new_sat_code"`
	NewSATName            string                        `json:"new_sat_name"`
	NewFamilyCode         string                        `json:"new_family_code"`
	Reason                string                        `json:"reason"`
	User                  string                        `json:"user"`
	OriginalPrediction    string                        `json:"original_prediction"`
	OriginalConfidence    float64                       `json:"original_confidence"`
	HasOriginalPrediction bool                          `json:"has_original_prediction"`
	Pending               []correctPendingInvoiceWire `json:"pending"`
}

type correctPendingInvoiceWire struct {
	InvoiceID    string `json:"invoice_id"`
	ProviderName string `json:"provider_name"`
	Concept      string `json:"concept"`
	CurrentCode  string `json:"current_code"`
	Confirmed    bool   `json:"confirmed"`
}

// HandleCorrect records a human correction and returns re-classification
// suggestions for still-pending invoices whose learning-history match now
// points at the corrected code.
func (h *Handler) HandleCorrect(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req correctRequestWire
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pending := make([]correction.PendingInvoice, 0, len(req.Pending))
	for _, p := range req.Pending {
		pending = append(pending, correction.PendingInvoice{
			InvoiceID:    p.InvoiceID,
			ProviderName: p.ProviderName,
			Concept:      p.Concept,
			CurrentCode:  p.CurrentCode,
			Confirmed:    p.Confirmed,
		})
	}

	suggestions, err := h.Service.Correct(r.Context(), correction.CorrectionInput{
		TenantID:              tenant.ID(req.TenantID),
		SessionID:             req.SessionID,
		ProviderName:          req.ProviderName,
		Concept:               req.Concept,
		NewSATCode:            req.NewSATCode,
		NewSATName:            req.NewSATName,
		NewFamilyCode:         req.NewFamilyCode,
		Reason:                req.Reason,
		User:                  req.User,
		OriginalPrediction:    req.OriginalPrediction,
		OriginalConfidence:    req.OriginalConfidence,
		HasOriginalPrediction: req.HasOriginalPrediction,
	}, pending)
	if err != nil {
		log.Printf("[CORRECTION] correct failed: %v", err)
		http.Error(w, "failed to record correction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"suggestions": suggestions})
}

// HandleSearchSimilar returns display-only similar historical
// classifications for a provider/concept pair.
func (h *Handler) HandleSearchSimilar(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	q := r.URL.Query()
	tenantID := tenant.ID(parseInt64(q.Get("tenant_id")))
	provider := q.Get("provider_name")
	concept := q.Get("concept")
	topK := 5
	if v := parseInt64(q.Get("top_k")); v > 0 {
		topK = int(v)
	}

	matches, err := h.Service.SearchSimilar(r.Context(), tenantID, provider, concept, topK)
	if err != nil {
		log.Printf("[CORRECTION] search-similar failed: %v", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"matches": matches})
}

// HandleLearningStats reports a tenant's learning-history totals.
func (h *Handler) HandleLearningStats(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	tenantID := tenant.ID(parseInt64(r.URL.Query().Get("tenant_id")))
	stats, err := h.Service.LearningStats(r.Context(), tenantID)
	if err != nil {
		log.Printf("[CORRECTION] learning-stats failed: %v", err)
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

type batchAutoApplyRequestWire struct {
	TenantID int64                       `json:"tenant_id"`
	Pending  []correctPendingInvoiceWire `json:"pending"`
	Limit    int                         `json:"limit"`
}

// HandleBatchAutoApply sweeps pending invoices, applying any invoice with a
// sufficiently similar historical match.
func (h *Handler) HandleBatchAutoApply(w http.ResponseWriter, r *http.Request) {
	cors(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchAutoApplyRequestWire
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pending := make([]correction.PendingInvoice, 0, len(req.Pending))
	for _, p := range req.Pending {
		pending = append(pending, correction.PendingInvoice{
			InvoiceID:    p.InvoiceID,
			ProviderName: p.ProviderName,
			Concept:      p.Concept,
			CurrentCode:  p.CurrentCode,
			Confirmed:    p.Confirmed,
		})
	}

	applied, skipped, err := h.Service.BatchAutoApply(r.Context(), tenant.ID(req.TenantID), pending, req.Limit)
	if err != nil {
		log.Printf("[CORRECTION] batch-auto-apply failed: %v", err)
		http.Error(w, "batch auto-apply failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"applied": applied,
		"skipped": skipped,
	})
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
