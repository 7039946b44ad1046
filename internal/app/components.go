package app

import (
	"context"
	"fmt"
	"log/slog"

	"phtourism/internal/cache"
	"phtourism/internal/config"
	"phtourism/internal/dataprocessing"
	apperrors "phtourism/internal/errors"
	"phtourism/internal/sources"
	"phtourism/internal/views"
)

// NewSourceLoader builds the loader for the configured inputs. A spreadsheet
// wins over a counts URL, and a URL wins over a local path.
func NewSourceLoader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sources.Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	keyColumn := cfg.Schema.Counts.DivisionID

	var counts sources.CountsSource
	switch {
	case cfg.Sources.Sheets.Enabled():
		sheetsSource, err := sources.NewSheetsSource(ctx, cfg.Sources.Sheets, keyColumn)
		if err != nil {
			return nil, apperrors.NewConfigError("failed to create counts source", err)
		}
		counts = sheetsSource
	default:
		fetcher := newFetcher(logger, cfg.Sources.CountsURL, cfg.Sources.CountsPath, cfg.Sources.HTTP)
		if fetcher == nil {
			return nil, apperrors.NewConfigError("no counts source configured", nil)
		}
		counts = sources.NewTabularSource(fetcher, sources.Format(cfg.Sources.CountsFormat), keyColumn)
	}

	geo := newFetcher(logger, cfg.Sources.GeoURL, cfg.Sources.GeoPath, cfg.Sources.HTTP)
	if geo == nil {
		return nil, apperrors.NewConfigError("no geography source configured", nil)
	}

	logger.InfoContext(ctx, "sources configured",
		slog.String("counts", counts.Name()),
		slog.String("geography", geo.Name()))

	return sources.NewLoader(logger, counts, geo, cfg.Schema.Counts), nil
}

func newFetcher(logger *slog.Logger, url, path string, retry sources.RetryConfig) sources.Fetcher {
	switch {
	case url != "":
		return sources.NewHTTPFetcher(logger, url, nil, retry)
	case path != "":
		return sources.NewFileFetcher(path)
	}
	return nil
}

// NewViewCache returns the in-process LRU, fronting Redis when an address is
// configured.
func NewViewCache(cfg config.CacheConfig, logger *slog.Logger) cache.ViewCache {
	memory := cache.NewMemoryCache(cfg.Size, cfg.TTL)
	if cfg.RedisAddr == "" {
		return memory
	}
	client := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	return cache.NewTiered(memory, cache.NewRedisCache(logger, client, cfg.RedisTTL))
}

// ViewOptions maps the configuration onto dataset loading options.
func ViewOptions(cfg *config.Config, logger *slog.Logger) views.Options {
	return views.Options{
		Mapping:   cfg.Schema,
		Trend:     dataprocessing.TrendConfig{ReferenceYears: cfg.Trend.ReferenceYears},
		MaxIssues: cfg.Sources.MaxIssues,
		Logger:    logger,
	}
}
