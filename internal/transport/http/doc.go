// Package http implements the HTTP handlers of the tourism dashboard API.
// Handlers are a thin layer over the services package: they parse and
// validate query filters, call the dashboard service and translate its
// sentinels into API errors rendered as RFC 7807 problems.
//
// # Routes
//
// Each handler exposes a chi sub-router through Routes and is mounted by the
// application:
//
//	/api/views          ViewsHandler    full views payload with ETag
//	/api/views/totals   ViewsHandler    per-traveler totals
//	/api/views/rankings ViewsHandler    ranked destinations, limit aware
//	/api/views/trends   ViewsHandler    trend series in ranking order
//	/api/views/geo      ViewsHandler    matched divisions and legend
//	/api/geo            GeoHandler      land, province mesh and features
//	/api/dataset        DatasetHandler  load summary and reload
//	/api/export/{fmt}   ExportHandler   xlsx or csv download
//	/api/health         HealthHandler   health, readiness and liveness
//	/metrics            MetricsHandler  Prometheus scrape endpoint
//
// # Query Filters
//
// Views and exports accept the same query parameters:
//
//	years=2019,2023     restrict to the listed years; empty means all
//	region=NCR          restrict to a region; "All regions" means all
//	traveler=domestic   total, domestic, foreign or overseas
//	limit=10            trim ranked destinations
//	view=trends         table for csv exports
//
// Invalid parameters are answered with 400 and a VALIDATION_FAILED problem
// listing each offending field.
//
// # Errors
//
// A request before the first successful load gets 503 DATASET_NOT_LOADED.
// Unknown geometry ids get 404 DIVISION_NOT_FOUND or PROVINCE_NOT_FOUND.
// Reload failures keep the previous dataset and are reported as 422 for
// schema mismatches and 502 for unreachable sources.
package http
