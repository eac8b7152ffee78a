// Package classify exposes the hierarchical classification pipeline over
// HTTP, mirroring pkg/api/config's Handler-struct style.
package classify

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/contaflow/classifier-core/pkg/core/classify"
	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

// Handler holds the pipeline dependency for the classify endpoint.
type Handler struct {
	Pipeline *classify.Pipeline
}

// NewHandler builds a Handler.
func NewHandler(pipeline *classify.Pipeline) *Handler {
	return &Handler{Pipeline: pipeline}
}

// ConceptRequest is one CFDI concepto line in the wire request.
type ConceptRequest struct {
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	ClaveProdServ string  `json:"clave_prod_serv"`
	SharePct      float64 `json:"share_pct"`
}

// Request is the HandleClassify request body: a pre-parsed CFDI snapshot
// plus tenant scoping. Parsing the raw CFDI XML is explicitly out of scope
// per spec.md §1 — callers own that step.
type Request struct {
	TenantID       int64            `json:"tenant_id"`
	EmisorRFC      string           `json:"emisor_rfc"`
	EmisorName     string           `json:"emisor_name"`
	ReceptorRFC    string           `json:"receptor_rfc"`
	ReceptorName   string           `json:"receptor_name"`
	PrimaryConcept string           `json:"primary_concept"`
	ClaveProdServ  string           `json:"clave_prod_serv"`
	Total          float64          `json:"total"`
	Currency       string           `json:"currency"`
	MetodoPago     string           `json:"metodo_pago"`
	UsoCFDI        string           `json:"uso_cfdi"`
	Conceptos      []ConceptRequest `json:"conceptos"`
}

func (req Request) toSnapshot() classify.InvoiceSnapshot {
	conceptos := make([]classify.ConceptLine, 0, len(req.Conceptos))
	for _, c := range req.Conceptos {
		conceptos = append(conceptos, classify.ConceptLine{
			Description:   c.Description,
			Amount:        c.Amount,
			ClaveProdServ: c.ClaveProdServ,
			SharePct:      c.SharePct,
		})
	}

	method := classify.PaymentOther
	switch req.MetodoPago {
	case "PUE":
		method = classify.PaymentPUE
	case "PPD":
		method = classify.PaymentPPD
	}

	return classify.InvoiceSnapshot{
		TenantID:       tenant.ID(req.TenantID),
		EmisorRFC:      req.EmisorRFC,
		EmisorName:     req.EmisorName,
		ReceptorRFC:    req.ReceptorRFC,
		ReceptorName:   req.ReceptorName,
		PrimaryConcept: req.PrimaryConcept,
		ClaveProdServ:  req.ClaveProdServ,
		Total:          req.Total,
		Currency:       req.Currency,
		MetodoPago:     method,
		UsoCFDI:        req.UsoCFDI,
		Conceptos:      conceptos,
	}
}

// HandleClassify runs the invoice through the pipeline and returns the
// resulting ClassificationResult as JSON.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Pipeline.Classify(r.Context(), req.toSnapshot())
	if err != nil {
		log.Printf("[CLASSIFY] pipeline error: %v", err)
		http.Error(w, fmt.Sprintf("classification failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ConfirmRequest carries the invoice a result was computed for plus the
// result itself, so the operator's explicit confirmation can be recorded
// without re-running the pipeline.
type ConfirmRequest struct {
	Invoice Request                    `json:"invoice"`
	Result  classify.ClassificationResult `json:"result"`
}

// HandleConfirm persists an operator-confirmed classification to learning
// history, the non-correction entry point into the learning substrate per
// spec.md §3.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Pipeline.Confirm(r.Context(), req.Invoice.toSnapshot(), req.Result); err != nil {
		log.Printf("[CLASSIFY] confirm failed: %v", err)
		http.Error(w, fmt.Sprintf("confirm failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
