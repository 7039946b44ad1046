package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"phtourism/internal/cache"
	apperrors "phtourism/internal/errors"
	"phtourism/internal/exporter"
	"phtourism/internal/geo"
	"phtourism/internal/infrastructure"
	"phtourism/internal/sources"
	"phtourism/internal/views"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// RawLoader fetches the raw inputs of one load.
type RawLoader interface {
	Load(ctx context.Context) (*sources.Raw, error)
}

// DatasetSnapshot is one loaded dataset with the identity of its inputs.
type DatasetSnapshot struct {
	Dataset      *views.Dataset
	Fingerprint  string
	LoadedAt     time.Time
	CountsSource string
	GeoSource    string
}

// ReloadListener is notified after a new dataset has been swapped in.
type ReloadListener func(ctx context.Context, snap *DatasetSnapshot)

// DashboardOptions configures a DashboardService.
type DashboardOptions struct {
	Views   views.Options
	Cache   cache.ViewCache
	Metrics *infrastructure.EngineMetrics
	Tracer  trace.Tracer
}

// ViewRequest selects a views payload. Limit trims the ranked destinations;
// zero keeps them all.
type ViewRequest struct {
	Filters views.Filters
	Limit   int
}

// ViewsResponse is the JSON body of a views payload.
type ViewsResponse struct {
	*views.Views
	RankedTotal int    `json:"ranked_total"`
	Fingerprint string `json:"fingerprint"`
}

// Payload is a rendered views response.
type Payload struct {
	Body []byte
	ETag string
}

// DatasetInfo is the load report of the current dataset.
type DatasetInfo struct {
	views.Info
	Fingerprint  string    `json:"fingerprint"`
	LoadedAt     time.Time `json:"loaded_at"`
	CountsSource string    `json:"counts_source"`
	GeoSource    string    `json:"geo_source"`
}

// ExportRequest selects what Export writes. View names a single table for CSV.
type ExportRequest struct {
	Filters views.Filters
	Format  string
	View    string
}

// DashboardService serves views of the current dataset.
type DashboardService struct {
	loader  RawLoader
	options views.Options
	cache   cache.ViewCache
	metrics *infrastructure.EngineMetrics
	tracer  trace.Tracer
	logger  *slog.Logger

	current atomic.Pointer[DatasetSnapshot]
	loadMu  sync.Mutex
	group   singleflight.Group

	listenersMu sync.RWMutex
	listeners   []ReloadListener

	workbook *exporter.WorkbookWriter
	csv      *exporter.CSVWriter
}

// NewDashboardService creates the service. Nothing is loaded until Load runs.
func NewDashboardService(logger *slog.Logger, loader RawLoader, opts DashboardOptions) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("phtourism/services")
	}
	if opts.Views.Logger == nil {
		opts.Views.Logger = logger
	}

	return &DashboardService{
		loader:   loader,
		options:  opts.Views,
		cache:    opts.Cache,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   logger.With(slog.String("component", "dashboard_service")),
		workbook: exporter.NewWorkbookWriter(logger),
		csv:      exporter.NewCSVWriter(),
	}
}

// Subscribe registers a listener for completed reloads.
func (s *DashboardService) Subscribe(listener ReloadListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Load fetches the sources and replaces the current dataset. On failure the
// previous dataset stays in place.
func (s *DashboardService) Load(ctx context.Context) (DatasetInfo, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "dataset.load")
	defer span.End()

	start := time.Now()
	snap, err := s.load(ctx)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		infrastructure.RecordDatasetLoad(ctx, s.metrics, time.Since(start), 0, 0, err)
		s.logger.ErrorContext(ctx, "dataset load failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return DatasetInfo{}, err
	}

	previous := s.current.Swap(snap)
	info := infoOf(snap)

	infrastructure.RecordDatasetLoad(ctx, s.metrics, time.Since(start), info.Skipped, len(info.Unmatched), nil)
	span.SetAttributes(
		attribute.String("dataset.fingerprint", snap.Fingerprint),
		attribute.Int("dataset.rows", info.Rows),
		attribute.Int("dataset.skipped", info.Skipped))

	attrs := []any{
		slog.String("fingerprint", snap.Fingerprint),
		slog.Int("rows", info.Rows),
		slog.Int("skipped", info.Skipped),
		slog.Int("unmatched", len(info.Unmatched)),
		slog.Duration("duration", time.Since(start)),
	}
	if previous != nil {
		attrs = append(attrs, slog.String("previous_fingerprint", previous.Fingerprint))
	}
	s.logger.InfoContext(ctx, "dataset swapped", attrs...)

	s.notify(ctx, snap)
	return info, nil
}

func (s *DashboardService) load(ctx context.Context) (*DatasetSnapshot, error) {
	raw, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	ds, err := views.LoadDataset(ctx, raw.Counts, raw.Topology, s.options)
	if err != nil {
		var mismatch *geo.SchemaMismatchError
		if errors.As(err, &mismatch) {
			return nil, apperrors.NewSchemaMismatchError("geography does not match the schema mapping", err).
				WithContext("object", mismatch.Object).
				WithContext("source", raw.GeoSource)
		}
		if errors.Is(err, geo.ErrSchemaMismatch) {
			return nil, apperrors.NewSchemaMismatchError("geography does not match the schema mapping", err).
				WithContext("source", raw.GeoSource)
		}
		return nil, apperrors.NewParsingError("build dataset", err)
	}

	return &DatasetSnapshot{
		Dataset:      ds,
		Fingerprint:  raw.Fingerprint,
		LoadedAt:     time.Now().UTC(),
		CountsSource: raw.CountsSource,
		GeoSource:    raw.GeoSource,
	}, nil
}

func (s *DashboardService) notify(ctx context.Context, snap *DatasetSnapshot) {
	s.listenersMu.RLock()
	listeners := make([]ReloadListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(ctx, snap)
	}
}

// Snapshot returns the current dataset.
func (s *DashboardService) Snapshot() (*DatasetSnapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrDatasetNotLoaded
	}
	return snap, nil
}

// Views builds every view for the filters against the current dataset.
func (s *DashboardService) Views(ctx context.Context, filters views.Filters) (*views.Views, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.build(ctx, snap, filters)
}

func (s *DashboardService) build(ctx context.Context, snap *DatasetSnapshot, filters views.Filters) (*views.Views, error) {
	if err := filters.Validate(); err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	key := snap.Fingerprint + ":" + filters.Key()

	result, err, shared := s.group.Do(key, func() (interface{}, error) {
		spanCtx, span := s.tracer.Start(ctx, "views.build",
			trace.WithAttributes(
				attribute.String("views.filters", filters.Key()),
				attribute.String("dataset.fingerprint", snap.Fingerprint)))
		defer span.End()

		start := time.Now()
		v, err := views.Build(snap.Dataset, filters)
		infrastructure.RecordViewBuild(spanCtx, s.metrics, filters.Normalized().Traveler.String(), time.Since(start), err)
		if err != nil {
			infrastructure.RecordError(spanCtx, err)
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "view build shared", slog.String("key", key))
	}
	return result.(*views.Views), nil
}

// ViewsPayload returns the rendered views for a request. Payloads are cached
// per dataset fingerprint, filters and limit.
func (s *DashboardService) ViewsPayload(ctx context.Context, req ViewRequest) (Payload, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Payload{}, err
	}
	if req.Limit < 0 {
		return Payload{}, apperrors.NewAppValidationError("limit must not be negative")
	}

	key := cache.Key(snap.Fingerprint, req.Filters.Key()+"|limit="+strconv.Itoa(req.Limit))
	if body, ok := s.cache.Get(ctx, key); ok {
		infrastructure.RecordCacheLookup(ctx, s.metrics, true)
		return Payload{Body: body, ETag: ETag(body)}, nil
	}
	infrastructure.RecordCacheLookup(ctx, s.metrics, false)

	v, err := s.build(ctx, snap, req.Filters)
	if err != nil {
		return Payload{}, err
	}

	resp := ViewsResponse{Views: v, RankedTotal: len(v.RankedDestinations), Fingerprint: snap.Fingerprint}
	if req.Limit > 0 {
		trimmed := *v
		trimmed.RankedDestinations = v.Top(req.Limit)
		resp.Views = &trimmed
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return Payload{}, fmt.Errorf("encode views: %w", err)
	}
	s.cache.Set(ctx, key, body)
	return Payload{Body: body, ETag: ETag(body)}, nil
}

// ETag returns a strong entity tag for a payload.
func ETag(body []byte) string {
	sum := blake2b.Sum256(body)
	return `"` + hex.EncodeToString(sum[:12]) + `"`
}

// Feature returns the municipality feature for a division identifier.
func (s *DashboardService) Feature(ctx context.Context, id string) (*geo.Feature, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	f, err := snap.Dataset.Index().FeatureFor(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDivisionNotFound, id)
	}
	return f, nil
}

// Province returns the province feature for a province identifier.
func (s *DashboardService) Province(ctx context.Context, id string) (*geo.Feature, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	f, err := snap.Dataset.Index().ProvinceFor(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProvinceNotFound, id)
	}
	return f, nil
}

// Land returns the national outline.
func (s *DashboardService) Land(ctx context.Context) (*geo.Feature, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Dataset.Index().Land(), nil
}

// ProvinceMesh returns the internal province borders.
func (s *DashboardService) ProvinceMesh(ctx context.Context) (*geo.Mesh, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Dataset.Index().ProvinceMesh(), nil
}

// DatasetInfo returns the load report of the current dataset.
func (s *DashboardService) DatasetInfo(ctx context.Context) (DatasetInfo, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return DatasetInfo{}, err
	}
	return infoOf(snap), nil
}

func infoOf(snap *DatasetSnapshot) DatasetInfo {
	return DatasetInfo{
		Info:         snap.Dataset.Info(),
		Fingerprint:  snap.Fingerprint,
		LoadedAt:     snap.LoadedAt,
		CountsSource: snap.CountsSource,
		GeoSource:    snap.GeoSource,
	}
}

// Export writes the views for the filters as an XLSX workbook or as one CSV
// table. The output is written only once it is complete.
func (s *DashboardService) Export(ctx context.Context, req ExportRequest, w io.Writer) error {
	if req.Format != FormatXLSX && req.Format != FormatCSV {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "views.export",
		trace.WithAttributes(
			attribute.String("export.format", req.Format),
			attribute.String("export.view", req.View)))
	defer span.End()

	v, err := s.build(ctx, snap, req.Filters)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return err
	}

	var buf bytes.Buffer
	switch req.Format {
	case FormatXLSX:
		err = s.workbook.Write(&buf, v, snap.Dataset.Issues())
	case FormatCSV:
		var table exporter.Table
		if req.View == "issues" {
			table = exporter.IssuesTable(snap.Dataset.Issues())
		} else {
			var ok bool
			if table, ok = exporter.ViewTable(v, req.View); !ok {
				return fmt.Errorf("%w: %q", ErrUnknownView, req.View)
			}
		}
		err = s.csv.Write(&buf, exporter.WriteOptions{Table: table, BOMPrefix: true})
	}
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return fmt.Errorf("export %s: %w", req.Format, err)
	}

	s.logger.InfoContext(ctx, "views exported",
		slog.String("format", req.Format),
		slog.String("view", req.View),
		slog.String("filters", req.Filters.Key()),
		slog.Int("bytes", buf.Len()))

	_, err = buf.WriteTo(w)
	return err
}

// ExportFilename returns the download name and content type of an export.
func ExportFilename(req ExportRequest) (name, contentType string, err error) {
	switch req.Format {
	case FormatXLSX:
		return "tourism_views.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	case FormatCSV:
		view := req.View
		if view == "" {
			view = "rankings"
		}
		return "tourism_" + view + ".csv", "text/csv; charset=utf-8", nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
}
