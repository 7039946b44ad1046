package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultMaxBytes bounds a single fetched document.
const DefaultMaxBytes = 256 << 20

// ErrTooLarge is returned when a document exceeds the fetcher's size limit.
var ErrTooLarge = errors.New("document exceeds size limit")

// Fetcher returns the bytes of one input document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Name() string
}

// FileFetcher reads a local file.
type FileFetcher struct {
	Path string
}

// NewFileFetcher creates a fetcher for path.
func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{Path: path}
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileFetcher) Name() string {
	return "file:" + f.Path
}

// RetryConfig controls HTTP retries.
type RetryConfig struct {
	MaxRetries      uint64        `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3"`
	InitialInterval time.Duration `yaml:"initial_interval" envconfig:"INITIAL_INTERVAL" default:"500ms"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
}

// HTTPFetcher downloads a document. Server errors and transport failures are
// retried with exponential backoff; client errors fail immediately.
type HTTPFetcher struct {
	url      string
	client   *http.Client
	retry    RetryConfig
	maxBytes int64
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher for url. A nil client gets one with the
// configured timeout.
func NewHTTPFetcher(logger *slog.Logger, url string, client *http.Client, retry RetryConfig) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: retry.Timeout}
	}
	return &HTTPFetcher{
		url:      url,
		client:   client,
		retry:    retry,
		maxBytes: DefaultMaxBytes,
		logger:   logger.With(slog.String("component", "http_fetcher")),
	}
}

func (f *HTTPFetcher) Name() string {
	return f.url
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", f.url, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(fmt.Errorf("GET %s: status %d", f.url, resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("GET %s: status %d", f.url, resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if int64(len(body)) > f.maxBytes {
			body = nil
			return backoff.Permanent(fmt.Errorf("GET %s: %w (%d bytes)", f.url, ErrTooLarge, f.maxBytes))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	if f.retry.InitialInterval > 0 {
		policy.InitialInterval = f.retry.InitialInterval
	}

	notify := func(err error, wait time.Duration) {
		f.logger.WarnContext(ctx, "fetch failed, retrying",
			slog.String("url", f.url),
			slog.String("error", err.Error()),
			slog.Duration("wait", wait))
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, f.retry.MaxRetries), ctx),
		notify)
	if err != nil {
		return nil, err
	}
	return body, nil
}
