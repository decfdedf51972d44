// Package bridge exposes the engine's read-only state over a local HTTP
// endpoint so a browser UI can render it. Commands are intentionally not
// reachable here; they go through the engine API.
package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mkbrennan/partyquiz/internal/gate"
	"github.com/mkbrennan/partyquiz/internal/trivia"
)

// StateSource is the engine surface the bridge reads from.
type StateSource interface {
	Snapshot() trivia.SessionView
	Connectivity() trivia.ConnectivityState
	CanStart() gate.Decision
}

// Handler serves the session view to local UI surfaces.
type Handler struct {
	source StateSource
}

// NewHandler creates a bridge handler over a state source.
func NewHandler(source StateSource) *Handler {
	return &Handler{source: source}
}

// Routes returns the full bridge handler with permissive CORS, suitable
// for a UI served from another local port.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/state", h.handleState)
	mux.HandleFunc("/api/session/connectivity", h.handleConnectivity)
	return cors.AllowAll().Handler(mux)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.source.Snapshot())
}

func (h *Handler) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	decision := h.source.CanStart()
	writeJSON(w, map[string]any{
		"connectivity": h.source.Connectivity(),
		"can_start":    decision.CanStart,
		"graced":       decision.Graced,
		"reason":       decision.Reason,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode bridge response")
	}
}
