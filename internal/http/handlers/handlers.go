package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nammaooru/civic-reports/internal/http/response"
	"github.com/nammaooru/civic-reports/internal/service"
	"github.com/nammaooru/civic-reports/pkg/config"
)

type Handlers struct {
	authService   service.AuthService
	reportService service.ReportService
	config        *config.Config
}

func New(
	authService service.AuthService,
	reportService service.ReportService,
	config *config.Config,
) *Handlers {
	return &Handlers{
		authService:   authService,
		reportService: reportService,
		config:        config,
	}
}

// Helper functions

func decodeJSON(r *http.Request, v interface{}) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

func badJSON(w http.ResponseWriter) {
	response.BadRequest(w, "Invalid request body")
}
