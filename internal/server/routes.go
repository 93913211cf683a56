// ABOUTME: Router construction and cross-cutting HTTP middleware
// ABOUTME: chi router with request IDs, panic recovery, request logging, CORS and metrics

package server

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/2389/trowel/internal/auth"
)

// routes builds the API router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors(s.config.Server.CORSOrigins))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	// Health endpoints - no auth required
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}

	// Accounts
	r.Post("/signup", s.handleSignup)
	r.Post("/login", s.handleLogin)

	var recorder auth.FailureRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	requireAuth := auth.HTTPAuthMiddleware(s.guard, s.logger, recorder)

	r.With(requireAuth).Get("/users/me", s.handleMe)

	// Catalog: anyone may browse, members may edit
	r.Get("/materials", s.handleListMaterials)
	r.With(requireAuth).Post("/materials", s.handleCreateMaterial)
	r.With(requireAuth).Delete("/materials/{id}", s.handleDeleteMaterial)

	// Projects
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/projects", s.handleCreateProject)
		r.Get("/projects", s.handleListProjects)
	})

	// Chat relay - unauthenticated, addressed by a client-chosen label
	r.Get("/ws/{client_id}", s.handleChat)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// requestLogger logs one line per request. Bodies and headers are never
// logged, so passwords and tokens stay out of the logs.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// cors allows cross-origin calls from the listed origins, or from any origin
// when the list is empty or contains "*". Credentials are never allowed with
// a wildcard origin.
func cors(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")
				switch {
				case allowAll:
					h.Set("Access-Control-Allow-Origin", "*")
				case slices.Contains(origins, origin):
					h.Set("Access-Control-Allow-Origin", origin)
				}
				h.Set("Access-Control-Allow-Methods", strings.Join([]string{
					http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
				}, ","))
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
