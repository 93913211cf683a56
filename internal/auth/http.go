// ABOUTME: HTTP middleware for bearer-token authentication on API endpoints
// ABOUTME: Extracts the JWT from the Authorization header and adds the Identity to context

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/trowel/internal/store"
)

// Response details. Every credential problem shares one message so clients
// can't probe which part failed.
const (
	detailInvalidCredentials = "Could not validate credentials"
	detailExpired            = "Token expired"
	detailUnavailable        = "Database not reachable"
)

// FailureRecorder receives the outcome of every rejected request.
// reason is a short label such as "missing_token" or "expired".
type FailureRecorder interface {
	AuthFailure(reason string)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// failureReason maps an Authenticate error to a log/metric label
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, ErrMissingClaim):
		return "missing_claim"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "invalid"
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// HTTPAuthMiddleware creates an HTTP middleware that authenticates the bearer
// token through guard and adds the resolved Identity to the request context.
// recorder may be nil.
func HTTPAuthMiddleware(guard *Guard, logger *slog.Logger, recorder FailureRecorder) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	reject := func(w http.ResponseWriter, r *http.Request, reason, detail string) {
		logger.Info("request rejected", "path", r.URL.Path, "reason", reason)
		if recorder != nil {
			recorder.AuthFailure(reason)
		}
		writeDetail(w, http.StatusUnauthorized, detail)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				reject(w, r, "missing_token", detailInvalidCredentials)
				return
			}

			id, err := guard.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, ErrExpiredToken):
					reject(w, r, "expired", detailExpired)
				case errors.Is(err, ErrUnauthorized):
					reject(w, r, failureReason(err), detailInvalidCredentials)
				case errors.Is(err, store.ErrUnavailable):
					logger.Error("credential store unavailable", "error", err)
					writeDetail(w, http.StatusServiceUnavailable, detailUnavailable)
				default:
					logger.Error("authenticating request", "error", err)
					writeDetail(w, http.StatusInternalServerError, "Internal server error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
