package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nammaooru/civic-reports/internal/domain"
	appmw "github.com/nammaooru/civic-reports/internal/http/middleware"
	"github.com/nammaooru/civic-reports/internal/http/response"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// CreateReport handles POST /reports
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	claims := appmw.ClaimsFromContext(r.Context())
	if claims == nil {
		response.Unauthorized(w, "Missing or invalid authorization header")
		return
	}

	var req domain.CreateReportRequest
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	report, err := h.reportService.Create(r.Context(), claims.Sub, &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "Report created", "report_id", report.ID, "category", report.Category)
	response.WriteJSON(w, http.StatusCreated, report)
}

// GetReport handles GET /reports/{id}
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}
	ctx := context.WithValue(r.Context(), logger.ReportIDKey, id)

	report, err := h.reportService.Get(ctx, id)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, report)
}

// ListReports handles GET /reports
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	filter := domain.ReportFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   offset,
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := domain.ParseReportStatus(raw)
		if !ok {
			response.BadRequest(w, "Invalid status filter")
			return
		}
		filter.Status = &status
	}

	reports, total, err := h.reportService.List(r.Context(), filter)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// UpdateReportStatus handles PATCH /reports/{id}/status
func (h *Handlers) UpdateReportStatus(w http.ResponseWriter, r *http.Request) {
	claims := appmw.ClaimsFromContext(r.Context())
	if claims == nil {
		response.Unauthorized(w, "Missing or invalid authorization header")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}
	ctx := context.WithValue(r.Context(), logger.ReportIDKey, id)

	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	report, err := h.reportService.Transition(ctx, id, req.Status, claims)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	logger.InfoContext(ctx, "Report status updated",
		"report_id", report.ID, "status", report.Status, "updated_by", claims.Sub)
	response.WriteJSON(w, http.StatusOK, report)
}
