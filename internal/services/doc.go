// Package services holds the dashboard's business logic between the HTTP and
// WebSocket transports and the engine packages.
//
// DashboardService owns the current dataset. Load fetches both sources,
// builds a views.Dataset and swaps it in atomically; readers always see a
// complete dataset or none. View requests are pure builds against the current
// snapshot: identical concurrent requests are coalesced and rendered payloads
// are cached under the dataset fingerprint, so a reload never serves stale
// bytes.
//
// HealthService reports liveness, readiness and build information.
//
// Example usage:
//
//	svc := services.NewDashboardService(logger, loader, services.DashboardOptions{
//		Views:   views.Options{Mapping: cfg.Schema, MaxIssues: cfg.Sources.MaxIssues},
//		Cache:   cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL),
//		Metrics: metrics,
//	})
//	if _, err := svc.Load(ctx); err != nil {
//		return err
//	}
//	payload, err := svc.ViewsPayload(ctx, services.ViewRequest{Filters: f, Limit: 10})
package services
