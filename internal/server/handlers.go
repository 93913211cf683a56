// ABOUTME: Health, readiness and chat relay endpoints
// ABOUTME: Readiness pings the store; chat hands the connection to the relay

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ReadyResponse is the JSON response for GET /health/ready.
type ReadyResponse struct {
	Status          string `json:"status"`
	Database        string `json:"database"`
	ChatConnections int    `json:"chat_connections"`
}

// handleReady returns 200 when the store answers a ping, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Database: "ok", ChatConnections: s.registry.Len()}
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		resp.Status = "unavailable"
		resp.Database = detailUnavailable
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChat joins the caller to the chat relay under the client id from
// the path. No authentication is required.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.chat.ServeConn(w, r, chi.URLParam(r, "client_id"))
}
