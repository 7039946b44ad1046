package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"phtourism/internal/app"
	"phtourism/internal/cache"
	"phtourism/internal/config"
	"phtourism/internal/infrastructure"
	"phtourism/internal/middleware"
	"phtourism/internal/services"
)

// session is the state shared by every subcommand once sources are loaded
type session struct {
	logger    *slog.Logger
	service   *services.DashboardService
	validator *middleware.FilterValidator
}

type rootOptions struct {
	countsPath string
	countsURL  string
	geoPath    string
	geoURL     string
	logLevel   string
}

type filterOptions struct {
	years    string
	region   string
	traveler string
	limit    int
	view     string
}

func (f *filterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.years, "years", "", "comma separated years, empty for all")
	cmd.Flags().StringVar(&f.region, "region", "", "region name, empty for all regions")
	cmd.Flags().StringVar(&f.traveler, "traveler", "", "traveler type: total, domestic, foreign or overseas")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "number of ranked destinations to keep, 0 for all")
}

func (f *filterOptions) query(v *middleware.FilterValidator) (middleware.FilterQuery, error) {
	values := url.Values{}
	values.Set("years", f.years)
	values.Set("region", f.region)
	values.Set("traveler", f.traveler)
	values.Set("view", f.view)
	if f.limit != 0 {
		values.Set("limit", strconv.Itoa(f.limit))
	}
	return v.ParseValues(values)
}

func newRootCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	opts := &rootOptions{}
	s := &session{}

	root := &cobra.Command{
		Use:          "tourismctl",
		Short:        "Build tourism dashboard views from the configured sources",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open(cmd, opts, loadConfig)
		},
	}

	root.PersistentFlags().StringVar(&opts.countsPath, "counts", "", "counts table path (CSV or XLSX)")
	root.PersistentFlags().StringVar(&opts.countsURL, "counts-url", "", "counts table URL")
	root.PersistentFlags().StringVar(&opts.geoPath, "geo", "", "municipality topology path")
	root.PersistentFlags().StringVar(&opts.geoURL, "geo-url", "", "municipality topology URL")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newBuildCmd(s),
		newExportCmd(s),
		newInspectCmd(s),
		newMeshCmd(s),
	)
	return root
}

// open loads the configuration, applies flag overrides and loads the dataset
func (s *session) open(cmd *cobra.Command, opts *rootOptions, loadConfig func() (*config.Config, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.countsPath != "" {
		cfg.Sources.CountsPath = opts.countsPath
		cfg.Sources.CountsURL = ""
	}
	if opts.countsURL != "" {
		cfg.Sources.CountsURL = opts.countsURL
	}
	if opts.geoPath != "" {
		cfg.Sources.GeoPath = opts.geoPath
		cfg.Sources.GeoURL = ""
	}
	if opts.geoURL != "" {
		cfg.Sources.GeoURL = opts.geoURL
	}

	logger := infrastructure.NewJSONLogger(cmd.ErrOrStderr(), infrastructure.ParseLevel(opts.logLevel))
	ctx := cmd.Context()

	loader, err := app.NewSourceLoader(ctx, cfg, logger)
	if err != nil {
		return err
	}

	service := services.NewDashboardService(logger, loader, services.DashboardOptions{
		Views: app.ViewOptions(cfg, logger),
		Cache: cache.Nop{},
	})
	if _, err := service.Load(ctx); err != nil {
		return err
	}

	s.logger = logger
	s.service = service
	s.validator = middleware.NewFilterValidator(logger)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBuildCmd(s *session) *cobra.Command {
	filters := &filterOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Print the views JSON for a filter selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := filters.query(s.validator)
			if err != nil {
				return err
			}
			payload, err := s.service.ViewsPayload(cmd.Context(), services.ViewRequest{Filters: q.Filters(), Limit: q.Limit})
			if err != nil {
				return err
			}

			var out bytes.Buffer
			if err := json.Indent(&out, payload.Body, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	filters.register(cmd)
	return cmd
}

func newExportCmd(s *session) *cobra.Command {
	filters := &filterOptions{}
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the views as an XLSX workbook or a CSV table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := filters.query(s.validator)
			if err != nil {
				return err
			}
			req := services.ExportRequest{Filters: q.Filters(), Format: format, View: q.View}

			name, _, err := services.ExportFilename(req)
			if err != nil {
				return err
			}
			if output == "" {
				output = name
			}

			var buf bytes.Buffer
			if err := s.service.Export(cmd.Context(), req, &buf); err != nil {
				return err
			}
			if output == "-" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}

			s.logger.InfoContext(cmd.Context(), "export written",
				slog.String("path", output),
				slog.String("format", format),
				slog.Int("bytes", buf.Len()))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVar(&filters.view, "view", "", "CSV table: rankings, trends, totals, unmatched or issues")
	cmd.Flags().StringVar(&format, "format", services.FormatXLSX, "export format: xlsx or csv")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output path, - for stdout")
	return cmd
}

func newInspectCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the load report with skipped rows and unmatched ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := s.service.DatasetInfo(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := s.service.Snapshot()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"dataset": info,
				"issues":  snap.Dataset.Issues(),
			})
		},
	}
}

func newMeshCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "mesh",
		Short: "Print the province mesh as GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mesh, err := s.service.ProvinceMesh(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), mesh)
		},
	}
}
