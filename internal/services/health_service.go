package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// DatasetProbe exposes the current dataset to health checks.
type DatasetProbe interface {
	Snapshot() (*DatasetSnapshot, error)
}

// ClientCounter reports connected WebSocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	repoURL   string
	buildTime string
	buildID   string
	dataset   DatasetProbe
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	RepoURL   string
	BuildTime string
	BuildID   string
}

// NewHealthService creates a health service. The hub may be nil when the
// WebSocket transport is disabled.
func NewHealthService(logger *slog.Logger, build BuildInfo, dataset DatasetProbe, hub ClientCounter) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))

	logger.Info("health service initialized",
		slog.String("version", build.Version),
		slog.String("build_time", build.BuildTime),
		slog.String("build_id", build.BuildID))

	return &HealthService{
		version:   build.Version,
		repoURL:   build.RepoURL,
		buildTime: build.BuildTime,
		buildID:   build.BuildID,
		dataset:   dataset,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck is ready once a dataset with at least one geo feature has
// been loaded.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	dataset, geo := hs.checkDataset()
	status.Services["dataset"] = dataset
	status.Services["geo"] = geo
	status.Services["websocket"] = hs.checkWebSocket()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "not ready", slog.String("dataset", dataset.Message))
	}
	return status
}

func (hs *HealthService) checkDataset() (dataset, geo ServiceHealth) {
	if hs.dataset == nil {
		missing := ServiceHealth{Status: "not_ready", Message: "dataset service not configured"}
		return missing, missing
	}
	snap, err := hs.dataset.Snapshot()
	if err != nil {
		missing := ServiceHealth{Status: "not_ready", Message: err.Error()}
		return missing, missing
	}

	info := snap.Dataset.Info()
	dataset = ServiceHealth{
		Status: "ready",
		Message: fmt.Sprintf("%d rows accepted, %d skipped, %d divisions without geometry",
			info.Accepted, info.Skipped, len(info.Unmatched)),
		Uptime: time.Since(snap.LoadedAt).Round(time.Second).String(),
	}

	geo = ServiceHealth{Status: "ready", Message: fmt.Sprintf("%d features indexed", info.GeoFeatures)}
	if info.GeoFeatures == 0 {
		geo = ServiceHealth{Status: "not_ready", Message: "geo index is empty"}
	}
	return dataset, geo
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "ready", Message: "websocket disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"repo_url":     hs.repoURL,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}
