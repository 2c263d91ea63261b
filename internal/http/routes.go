// Package httpx provides the HTTP control plane for deal scans.
package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/om239903-ai/internship-project/internal/domain/auth"
	"github.com/om239903-ai/internship-project/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Scans *service.ScanService
	// DB is pinged by /healthz when set.
	DB Pinger
	// Auth enables bearer authentication on /api routes when non-nil.
	Auth         *Authenticator
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	health := &HealthHandler{DB: services.DB, Logger: logger}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	registerScanRoutes(mux, &ScanHandlers{Svc: services.Scans, Logger: logger}, services.Auth)

	var h http.Handler = mux
	h = MaxBodyBytes(services.MaxBodyBytes)(h)
	h = Recover(logger)(h)
	return Logging(logger)(h)
}

func registerScanRoutes(mux *http.ServeMux, h *ScanHandlers, auth *Authenticator) {
	if h.Svc == nil {
		panic("registerScanRoutes: scan service is required") //nolint:forbidigo // Fail fast during server setup.
	}
	operator := RequireRole(auth, domainauth.RoleOperator)
	viewer := RequireRole(auth, domainauth.RoleViewer)

	mux.Handle("POST /api/scans", operator(http.HandlerFunc(h.Start)))
	mux.Handle("GET /api/scans", viewer(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/scans/{id}", viewer(http.HandlerFunc(h.Status)))
	mux.Handle("POST /api/scans/{id}/cancel", operator(http.HandlerFunc(h.Cancel)))
	mux.Handle("GET /api/scans/{id}/results", viewer(http.HandlerFunc(h.Results)))
}
