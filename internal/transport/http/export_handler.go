package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "phtourism/internal/errors"
	"phtourism/internal/middleware"
	"phtourism/internal/services"
)

// ExportHandler streams views as XLSX or CSV downloads.
type ExportHandler struct {
	service      DashboardService
	validator    *middleware.FilterValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates an export handler.
func NewExportHandler(service DashboardService, validator *middleware.FilterValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "export")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{format}", h.Export)
	return r
}

// Export handles GET /api/export/{format}. CSV exports take view=rankings,
// trends, totals, unmatched or issues.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := h.validator.Parse(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req := services.ExportRequest{
		Filters: q.Filters(),
		Format:  chi.URLParam(r, "format"),
		View:    q.View,
	}
	name, contentType, err := services.ExportFilename(req)
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), req, &buf); err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "write export", slog.String("error", err.Error()))
	}
}
