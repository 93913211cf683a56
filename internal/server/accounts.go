// ABOUTME: Account endpoints: signup, login and the current-user lookup
// ABOUTME: Login answers identically for unknown emails and wrong passwords

package server

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/2389/trowel/internal/auth"
	"github.com/2389/trowel/internal/metrics"
	"github.com/2389/trowel/internal/store"
)

const (
	detailEmailTaken         = "Email already registered"
	detailInvalidCredentials = "Invalid credentials"
)

// SignupRequest is the JSON request body for POST /signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Validate checks the signup fields.
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.By(maxBytes(auth.MaxPasswordBytes))),
		validation.Field(&r.Username, validation.Length(0, 64)),
	)
}

// SignupResponse is the JSON response for POST /signup.
type SignupResponse struct {
	Msg string `json:"msg"`
	ID  string `json:"id"`
}

// LoginRequest is the JSON request body for POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login fields are present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// TokenResponse is the JSON response for POST /login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// maxBytes limits a string's length in bytes rather than runes.
func maxBytes(n int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if len(s) > n {
			return fmt.Errorf("must be no more than %d bytes", n)
		}
		return nil
	}
}

func (s *Server) recordSignup(result string) {
	if s.metrics != nil {
		s.metrics.Signup(result)
	}
}

func (s *Server) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.Login(result)
	}
}

// handleSignup creates an account. Uniqueness is enforced by the store, so
// concurrent signups for one email produce exactly one account.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		s.recordSignup(metrics.ResultInvalid)
		return
	}
	req.Email = store.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		s.recordSignup(metrics.ResultInvalid)
		sendValidationError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.recordSignup(metrics.ResultError)
		s.logger.Error("hashing password", "error", err)
		sendJSONError(w, http.StatusInternalServerError, detailInternal)
		return
	}

	user := &store.User{
		Email:        req.Email,
		PasswordHash: hash,
		Username:     req.Username,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			s.recordSignup(metrics.ResultConflict)
			sendJSONError(w, http.StatusBadRequest, detailEmailTaken)
			return
		}
		s.recordSignup(metrics.ResultError)
		sendStoreError(w, s.logger, "create user", err)
		return
	}

	s.recordSignup(metrics.ResultCreated)
	s.logger.Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, SignupResponse{Msg: "User created", ID: user.ID})
}

// handleLogin exchanges email and password for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = store.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		sendValidationError(w, err)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Spend the same bcrypt time as a real comparison.
		auth.DummyCompare(req.Password)
		s.rejectLogin(w, "unknown_email")
		return
	case err != nil:
		s.recordLogin(metrics.ResultError)
		sendStoreError(w, s.logger, "get user", err)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.rejectLogin(w, "wrong_password")
		return
	}

	token, err := s.verifier.Generate(user.Email, s.config.Auth.TokenTTL)
	if err != nil {
		s.recordLogin(metrics.ResultError)
		s.logger.Error("issuing token", "error", err)
		sendJSONError(w, http.StatusInternalServerError, detailInternal)
		return
	}

	s.recordLogin(metrics.ResultSuccess)
	s.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// rejectLogin answers 401 with one body for every credential failure; only
// the log line carries the reason.
func (s *Server) rejectLogin(w http.ResponseWriter, reason string) {
	s.recordLogin(metrics.ResultFailure)
	s.logger.Info("login rejected", "reason", reason)
	sendJSONError(w, http.StatusUnauthorized, detailInvalidCredentials)
}

// handleMe returns the caller's identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.MustFromContext(r.Context()))
}
