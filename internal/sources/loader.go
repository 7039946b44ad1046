package sources

import (
	"context"
	"encoding/hex"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"phtourism/internal/dataprocessing"
	apperrors "phtourism/internal/errors"
	"phtourism/internal/schema"
	"phtourism/pkg/contracts/domain"
)

// Raw holds both inputs of one load.
type Raw struct {
	Counts   []domain.RawRow
	Topology []byte

	// Fingerprint identifies the pair of payloads. Equal inputs give equal
	// fingerprints across processes.
	Fingerprint string

	CountsSource string
	GeoSource    string
	FetchedAt    time.Time
}

// Loader fetches the counts table and the geography.
type Loader struct {
	counts  CountsSource
	geo     Fetcher
	columns schema.Counts
	logger  *slog.Logger
}

// NewLoader creates a loader. Tables missing any of the mapped columns are
// rejected before normalization.
func NewLoader(logger *slog.Logger, counts CountsSource, geo Fetcher, columns schema.Counts) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		counts:  counts,
		geo:     geo,
		columns: columns,
		logger:  logger.With(slog.String("component", "source_loader")),
	}
}

// Load fetches both inputs concurrently. Failures are *errors.AppError values
// of type SOURCE or SCHEMA_MISMATCH.
func (l *Loader) Load(ctx context.Context) (*Raw, error) {
	start := time.Now()

	var (
		table    *CountsTable
		topology []byte
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		t, err := l.counts.Counts(egCtx)
		if err != nil {
			return apperrors.NewSourceError(l.counts.Name(), err)
		}
		table = t
		return nil
	})
	eg.Go(func() error {
		data, err := l.geo.Fetch(egCtx)
		if err != nil {
			return apperrors.NewSourceError(l.geo.Name(), err)
		}
		topology = data
		return nil
	})
	if err := eg.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "source load failed", slog.String("error", err.Error()))
		return nil, err
	}

	if missing := l.missingColumns(table.Rows); len(missing) > 0 {
		return nil, apperrors.NewSchemaMismatchError("counts table is missing mapped columns", nil).
			WithContext("missing_columns", missing).
			WithContext("source", l.counts.Name())
	}

	raw := &Raw{
		Counts:       table.Rows,
		Topology:     topology,
		Fingerprint:  Fingerprint(table.Payload, topology),
		CountsSource: l.counts.Name(),
		GeoSource:    l.geo.Name(),
		FetchedAt:    time.Now().UTC(),
	}

	l.logger.InfoContext(ctx, "sources loaded",
		slog.Int("rows", len(raw.Counts)),
		slog.Int("topology_bytes", len(raw.Topology)),
		slog.String("fingerprint", raw.Fingerprint),
		slog.Duration("duration", time.Since(start)))

	return raw, nil
}

func (l *Loader) missingColumns(rows []domain.RawRow) []string {
	if len(rows) == 0 {
		return nil
	}
	header := dataprocessing.HeaderOf(rows)
	var missing []string
	for _, col := range l.columns.Required() {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	slices.Sort(missing)
	return missing
}

// Fingerprint hashes the counts payload and the topology with BLAKE2b and
// returns the first 16 bytes as hex.
func Fingerprint(counts, topology []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write(counts)
	h.Write([]byte{0})
	h.Write(topology)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
