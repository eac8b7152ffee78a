package config

import (
	"encoding/json"
	"net/http"

	"github.com/contaflow/classifier-core/pkg/core/agent"
)

type Response struct {
	CheapProvider  string   `json:"cheap_provider"`
	StrongProvider string   `json:"strong_provider"`
	Available      []string `json:"available"`
}

// Handler holds dependencies for config introspection endpoints.
type Handler struct {
	AgentMgr *agent.Manager
	Config   agent.Config
}

// NewHandler creates a new config handler.
func NewHandler(agentMgr *agent.Manager, cfg agent.Config) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
		Config:   cfg,
	}
}

// HandleConfig reports the cheap/strong provider wiring currently in effect,
// for operational visibility into which tier a deployment is routing to.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	resp := Response{
		CheapProvider:  h.Config.CheapProvider,
		StrongProvider: h.Config.StrongProvider,
		Available:      []string{"openai", "gemini", "deepseek", "qwen", "kimi", "doubao"},
	}
	json.NewEncoder(w).Encode(resp)
}
