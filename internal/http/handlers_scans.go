package httpx

import (
	"log/slog"
	"net/http"

	"github.com/om239903-ai/internship-project/internal/core"
	"github.com/om239903-ai/internship-project/internal/domain/model"
	apperrors "github.com/om239903-ai/internship-project/internal/errors"
	"github.com/om239903-ai/internship-project/internal/service"
)

// ScanHandlers provides HTTP handlers for the scan control plane.
type ScanHandlers struct {
	Svc    *service.ScanService
	Logger *slog.Logger
}

// Start handles POST /api/scans.
func (h *ScanHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req core.StartScanRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Start(r.Context(), &req)
	if err != nil {
		RenderError(w, r, err, h.Logger)
		return
	}
	WriteJSON(w, http.StatusCreated, job.View())
}

// Status handles GET /api/scans/{id}. Unknown scans answer 200 with status not_found.
func (h *ScanHandlers) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.Status(r.Context(), r.PathValue("id")))
}

// Cancel handles POST /api/scans/{id}/cancel.
func (h *ScanHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, r, err, h.Logger)
		return
	}
	WriteJSON(w, http.StatusOK, job.View())
}

// Results handles GET /api/scans/{id}/results.
func (h *ScanHandlers) Results(w http.ResponseWriter, r *http.Request) {
	archived, err := parseBoolQuery(r, "archived")
	if err != nil {
		RenderError(w, r, err, h.Logger)
		return
	}
	q := model.DealResultQuery{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", service.DefaultResultsPageSize),
		Archived: archived,
	}
	if v := optionalString(r, "stage"); v != nil {
		q.Stage = *v
	}
	if v := optionalString(r, "pipeline"); v != nil {
		q.Pipeline = *v
	}

	page, err := h.Svc.Results(r.Context(), r.PathValue("id"), q)
	if err != nil {
		RenderError(w, r, err, h.Logger)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// List handles GET /api/scans.
func (h *ScanHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, service.DefaultListLimit, service.MaxListLimit)
	opts := model.ScanListOptions{
		ScanID:         optionalString(r, "scan_id"),
		OrganizationID: optionalString(r, "organization_id"),
		Limit:          limit,
		Offset:         offset,
	}
	if v := optionalString(r, "status"); v != nil {
		var status model.ScanStatus
		if err := status.UnmarshalText([]byte(*v)); err != nil {
			RenderError(w, r, apperrors.ValidationField("status", err.Error()), h.Logger)
			return
		}
		opts.Status = &status
	}

	views, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		RenderError(w, r, err, h.Logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"scans": views, "limit": limit, "offset": offset})
}
