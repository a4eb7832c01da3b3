package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HealthResponse is the body returned by /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// methodNotAllowed tags the response with a request id so an operator can
// correlate a probe's 405 against access logs.
func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, HealthResponse{
		Status:    "method_not_allowed",
		Timestamp: time.Now(),
		RequestID: uuid.NewString(),
	})
}

// handleHealth reports liveness: a running process is always healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// handleReady reports readiness: false until the worker has finished its
// startup sequence (broker topology declared, object-store client built).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "not_ready",
			Timestamp: time.Now(),
			Reason:    "worker is initializing",
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready", Timestamp: time.Now()})
}
