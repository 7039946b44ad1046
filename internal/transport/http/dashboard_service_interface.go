package http

import (
	"context"
	"io"

	"phtourism/internal/geo"
	"phtourism/internal/services"
	"phtourism/internal/views"
)

// DashboardService is the part of services.DashboardService the handlers use.
type DashboardService interface {
	Load(ctx context.Context) (services.DatasetInfo, error)
	DatasetInfo(ctx context.Context) (services.DatasetInfo, error)
	Views(ctx context.Context, filters views.Filters) (*views.Views, error)
	ViewsPayload(ctx context.Context, req services.ViewRequest) (services.Payload, error)
	Feature(ctx context.Context, id string) (*geo.Feature, error)
	Province(ctx context.Context, id string) (*geo.Feature, error)
	Land(ctx context.Context) (*geo.Feature, error)
	ProvinceMesh(ctx context.Context) (*geo.Mesh, error)
	Export(ctx context.Context, req services.ExportRequest, w io.Writer) error
}
