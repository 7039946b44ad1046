package http

import (
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "phtourism/internal/errors"
	"phtourism/internal/exporter"
	"phtourism/internal/middleware"
	"phtourism/internal/services"
	"phtourism/internal/views"
	"phtourism/pkg/contracts/domain"
)

// ViewsHandler serves the views built for query filters.
type ViewsHandler struct {
	service      DashboardService
	validator    *middleware.FilterValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewViewsHandler creates a views handler.
func NewViewsHandler(service DashboardService, validator *middleware.FilterValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ViewsHandler {
	return &ViewsHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "views")),
		errorHandler: errorHandler,
	}
}

// Routes returns the views routes
func (h *ViewsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetViews)
	r.Get("/totals", h.GetTotals)
	r.Get("/rankings", h.GetRankings)
	r.Get("/trends", h.GetTrends)
	r.Get("/geo", h.GetGeo)
	return r
}

// GetViews handles GET /api/views. The payload carries an ETag and honors
// If-None-Match.
func (h *ViewsHandler) GetViews(w http.ResponseWriter, r *http.Request) {
	q, err := h.validator.Parse(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	payload, err := h.service.ViewsPayload(r.Context(), services.ViewRequest{Filters: q.Filters(), Limit: q.Limit})
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return
	}

	w.Header().Set("ETag", payload.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), payload.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.Body); err != nil {
		h.logger.WarnContext(r.Context(), "write views payload", slog.String("error", err.Error()))
	}
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (h *ViewsHandler) build(w http.ResponseWriter, r *http.Request) (*views.Views, middleware.FilterQuery, bool) {
	q, err := h.validator.Parse(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, q, false
	}
	v, err := h.service.Views(r.Context(), q.Filters())
	if err != nil {
		h.errorHandler.HandleError(w, r, serviceError(err))
		return nil, q, false
	}
	return v, q, true
}

// TotalEntry is one traveler total with its display form.
type TotalEntry struct {
	Traveler domain.TravelerType `json:"traveler"`
	Total    float64             `json:"total"`
	Display  string              `json:"display"`
}

// GetTotals handles GET /api/views/totals
func (h *ViewsHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.build(w, r)
	if !ok {
		return
	}

	totals := make([]TotalEntry, 0, len(v.TotalsByTraveler))
	for _, t := range domain.AllTravelerTypes() {
		total := v.TotalsByTraveler[t]
		totals = append(totals, TotalEntry{Traveler: t, Total: total, Display: exporter.FormatSI(total, 2)})
	}

	render.JSON(w, r, map[string]interface{}{
		"filters": v.Filters,
		"totals":  totals,
	})
}

// RankingEntry is a ranked destination with its display total.
type RankingEntry struct {
	domain.RankedDestination
	Display string `json:"display"`
}

// GetRankings handles GET /api/views/rankings. limit trims the list; the
// full length is reported as ranked_total.
func (h *ViewsHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	v, q, ok := h.build(w, r)
	if !ok {
		return
	}

	ranked := v.RankedDestinations
	if q.Limit > 0 {
		ranked = v.Top(q.Limit)
	}
	entries := make([]RankingEntry, 0, len(ranked))
	for _, d := range ranked {
		entries = append(entries, RankingEntry{RankedDestination: d, Display: exporter.FormatSI(d.Total, 2)})
	}

	render.JSON(w, r, map[string]interface{}{
		"filters":             v.Filters,
		"ranked_total":        len(v.RankedDestinations),
		"ranked_destinations": entries,
	})
}

// TrendEntry is a trend series with its display change.
type TrendEntry struct {
	domain.TrendSeries
	Change string `json:"change"`
}

// GetTrends handles GET /api/views/trends
func (h *ViewsHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.build(w, r)
	if !ok {
		return
	}

	entries := make([]TrendEntry, 0, len(v.TrendTable))
	for _, s := range v.TrendTable {
		entries = append(entries, TrendEntry{TrendSeries: s, Change: exporter.FormatChange(s.PercChange)})
	}

	render.JSON(w, r, map[string]interface{}{
		"filters":         v.Filters,
		"reference_years": v.ReferenceYears,
		"trend_table":     entries,
	})
}

// LegendTick is one value of the magnitude legend.
type LegendTick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// GetGeo handles GET /api/views/geo. Matched divisions follow ranking order
// and come with a magnitude legend for the largest value.
func (h *ViewsHandler) GetGeo(w http.ResponseWriter, r *http.Request) {
	v, _, ok := h.build(w, r)
	if !ok {
		return
	}

	joined := make([]views.GeoJoinedCount, 0, len(v.GeoJoinedCounts))
	maxValue := 0.0
	for _, d := range v.RankedDestinations {
		g, matched := v.GeoJoinedCounts[d.DivisionID]
		if !matched {
			continue
		}
		joined = append(joined, g)
		maxValue = math.Max(maxValue, g.Value)
	}

	ticks := exporter.LegendTicks(maxValue, 5)
	legend := make([]LegendTick, 0, len(ticks))
	for _, t := range ticks {
		legend = append(legend, LegendTick{Value: t, Label: exporter.FormatSITrim(t)})
	}

	render.JSON(w, r, map[string]interface{}{
		"filters":   v.Filters,
		"divisions": joined,
		"unmatched": v.Unmatched,
		"legend":    legend,
	})
}
