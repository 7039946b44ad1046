package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "phtourism/internal/errors"
)

// GeoHandler serves geometry from the geo index as GeoJSON.
type GeoHandler struct {
	service      DashboardService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewGeoHandler creates a geography handler.
func NewGeoHandler(service DashboardService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *GeoHandler {
	return &GeoHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "geo")),
		errorHandler: errorHandler,
	}
}

// Routes returns the geography routes
func (h *GeoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/land", h.GetLand)
	r.Get("/mesh", h.GetMesh)
	r.With(h.IDCtx).Get("/features/{id}", h.GetFeature)
	r.With(h.IDCtx).Get("/provinces/{id}", h.GetProvince)
	return r
}

// IDCtx rejects empty or oversized identifiers.
func (h *GeoHandler) IDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" || len(id) > 64 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "id must be 1 to 64 characters"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetFeature handles GET /api/geo/features/{id}
func (h *GeoHandler) GetFeature(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Feature(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, f)
}

// GetProvince handles GET /api/geo/provinces/{id}
func (h *GeoHandler) GetProvince(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Province(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, f)
}

// GetLand handles GET /api/geo/land
func (h *GeoHandler) GetLand(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Land(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, f)
}

// GetMesh handles GET /api/geo/mesh
func (h *GeoHandler) GetMesh(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.ProvinceMesh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}
	render.JSON(w, r, m)
}
