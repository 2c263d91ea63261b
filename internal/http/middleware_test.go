package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om239903-ai/internship-project/internal/adapters/authroles"
	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
	mockauth "github.com/om239903-ai/internship-project/internal/mocks/auth"
)

func testAuthenticator() *Authenticator {
	return &Authenticator{
		Verifier: &mockauth.StaticVerifier{Tokens: map[string]domainauth.Identity{
			"op-token":     {Subject: "alice", Groups: []string{"scan-ops"}},
			"viewer-token": {Subject: "bob", Groups: []string{"sales"}},
			"none-token":   {Subject: "eve", Groups: []string{"finance"}},
		}},
		Roles: authroles.StaticRoleMapper{OperatorGroup: "scan-ops", ViewerGroup: "sales"},
	}
}

func TestRequireRole(t *testing.T) {
	var seen *domainauth.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireRole(testAuthenticator(), domainauth.RoleOperator)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic op-token", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "viewer", header: "Bearer viewer-token", want: http.StatusForbidden},
		{name: "no role", header: "Bearer none-token", want: http.StatusForbidden},
		{name: "operator", header: "bearer op-token", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/scans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "alice", seen.Subject)
				assert.Equal(t, domainauth.RoleOperator, seen.Role)
			}
		})
	}
}

func TestRequireRole_NilAuthenticatorPassesThrough(t *testing.T) {
	h := RequireRole(nil, domainauth.RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouter_AuthPerRoute(t *testing.T) {
	f := newAPIFixture(t, testAuthenticator())

	send := func(method, target, token, body string) int {
		req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/api/scans/scan-1", "", ""))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/scans/scan-1", "viewer-token", ""))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPost, "/api/scans", "viewer-token", startBody))
	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/scans", "op-token", startBody))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/healthz", "", ""))
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "boom")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/api/scans"`)
}
