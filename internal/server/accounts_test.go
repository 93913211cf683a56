// ABOUTME: Tests for signup, login and the current-user endpoint
// ABOUTME: Covers duplicate emails, credential failures, revoked users and store outages

package server

import (
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/trowel/internal/auth"
	"github.com/2389/trowel/internal/store"
)

func TestSignupLoginMe(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/signup", "", map[string]string{
		"email": "ana@example.com", "password": "hunter2", "username": "Ana",
	})
	require.Equal(t, http.StatusCreated, resp.status, "body: %s", resp.body)
	var created SignupResponse
	resp.json(t, &created)
	assert.Equal(t, "User created", created.Msg)
	assert.NotEmpty(t, created.ID)

	resp = ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email": "ana@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, resp.status, "body: %s", resp.body)
	var tok TokenResponse
	resp.json(t, &tok)
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	resp = ts.do(t, http.MethodGet, "/users/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.status, "body: %s", resp.body)
	var me auth.Identity
	resp.json(t, &me)
	assert.Equal(t, auth.Identity{Email: "ana@example.com", ID: created.ID, Username: "Ana"}, me)
}

func TestSignup_DefaultUsername(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "bo@example.com", "pw", "")

	resp := ts.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.status)
	var me auth.Identity
	resp.json(t, &me)
	assert.Equal(t, auth.DefaultUsername, me.Username)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"email": "dup@example.com", "password": "pw"}

	resp := ts.do(t, http.MethodPost, "/signup", "", body)
	require.Equal(t, http.StatusCreated, resp.status)

	resp = ts.do(t, http.MethodPost, "/signup", "", body)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, detailEmailTaken, resp.detail(t))

	// Emails are compared case-insensitively.
	resp = ts.do(t, http.MethodPost, "/signup", "", map[string]string{"email": "  DUP@example.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	exposition := string(ts.do(t, http.MethodGet, "/metrics", "", nil).body)
	assert.Contains(t, exposition, `trowel_auth_signups_total{result="created"} 1`)
	assert.Contains(t, exposition, `trowel_auth_signups_total{result="conflict"} 2`)
}

func TestSignup_PaddedEmailIsTrimmed(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/signup", "", map[string]string{
		"email": "  New@Example.com ", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, resp.status, "body: %s", resp.body)

	resp = ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email": " new@example.com\t", "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.status, "body: %s", resp.body)
	var tok TokenResponse
	resp.json(t, &tok)

	var me auth.Identity
	ts.do(t, http.MethodGet, "/users/me", tok.AccessToken, nil).json(t, &me)
	assert.Equal(t, "new@example.com", me.Email)

	resp = ts.do(t, http.MethodPost, "/signup", "", map[string]string{
		"email": "new@example.com  ", "password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, detailEmailTaken, resp.detail(t))
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "trowel.db"))
	require.NoError(t, err)
	ts := newTestServer(t, withStore(sqlite))
	t.Cleanup(func() { _ = sqlite.Close() })

	const attempts = 8
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = ts.do(t, http.MethodPost, "/signup", "", map[string]string{
				"email": "race@example.com", "password": "pw",
			}).status
		}()
	}
	wg.Wait()

	var created, conflicts int
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, conflicts)
}

func TestSignup_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing email", map[string]string{"password": "pw"}, "email"},
		{"bad email", map[string]string{"email": "not-an-email", "password": "pw"}, "email"},
		{"missing password", map[string]string{"email": "a@example.com"}, "password"},
		{"password too long", map[string]string{"email": "a@example.com", "password": strings.Repeat("x", auth.MaxPasswordBytes+1)}, "password"},
		{"username too long", map[string]string{"email": "a@example.com", "password": "pw", "username": strings.Repeat("u", 65)}, "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/signup", "", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.status, "body: %s", resp.body)

			var body struct {
				Detail map[string]string `json:"detail"`
			}
			resp.json(t, &body)
			assert.Contains(t, body.Detail, tt.field)
		})
	}
}

func TestSignup_BadJSON(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/signup", "", "{not json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Equal(t, detailBadJSON, resp.detail(t))

	resp = ts.do(t, http.MethodPost, "/signup", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
}

func TestLogin_UnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "real@example.com", "right", "")

	unknown := ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email": "ghost@example.com", "password": "right",
	})
	wrong := ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email": "real@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, unknown.status)
	assert.Equal(t, unknown.status, wrong.status)
	assert.Equal(t, string(unknown.body), string(wrong.body))
	assert.Equal(t, detailInvalidCredentials, wrong.detail(t))
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "case@example.com", "pw", "")

	resp := ts.do(t, http.MethodPost, "/login", "", map[string]string{
		"email": "Case@Example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestMe_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Bearer", resp.header.Get("WWW-Authenticate"))

	resp = ts.do(t, http.MethodGet, "/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestMe_ExpiredToken(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "old@example.com", "pw", "")

	token, err := ts.verifier.Generate("old@example.com", -time.Minute)
	require.NoError(t, err)

	resp := ts.do(t, http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Token expired", resp.detail(t))
}

func TestMe_DeletedUserTokenStopsWorking(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "gone@example.com", "pw", "")

	resp := ts.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.status)

	require.NoError(t, ts.store.DeleteUser(t.Context(), "gone@example.com"))

	resp = ts.do(t, http.MethodGet, "/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestAccounts_StoreUnavailable(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "up@example.com", "pw", "")
	ts.store.SetUnavailable(true)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"signup", http.MethodPost, "/signup", "", map[string]string{"email": "new@example.com", "password": "pw"}},
		{"login", http.MethodPost, "/login", "", map[string]string{"email": "up@example.com", "password": "pw"}},
		{"me", http.MethodGet, "/users/me", token, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, http.StatusServiceUnavailable, resp.status)
			assert.Equal(t, detailUnavailable, resp.detail(t))
		})
	}
}
