package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		method   string
		wantCode int
		wantBody string
	}{
		{name: "no database", method: http.MethodGet, wantCode: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "database up", db: fakePinger{}, method: http.MethodGet, wantCode: http.StatusOK,
			wantBody: `{"status":"ok","database":"ok"}`},
		{name: "database down", db: fakePinger{err: errors.New("dial tcp: refused")}, method: http.MethodGet,
			wantCode: http.StatusServiceUnavailable, wantBody: `{"status":"degraded","database":"unreachable"}`},
		{name: "head", db: fakePinger{}, method: http.MethodHead, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthHandler{DB: tt.db}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/healthz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}
