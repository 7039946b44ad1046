package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"phtourism/internal/dataprocessing"
	"phtourism/pkg/contracts/domain"
)

// CountsTable is a decoded counts table with the payload it was decoded from.
type CountsTable struct {
	Rows    []domain.RawRow
	Payload []byte
}

// CountsSource produces the raw counts table.
type CountsSource interface {
	Counts(ctx context.Context) (*CountsTable, error)
	Name() string
}

// Format of a tabular counts document.
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// TabularSource decodes a CSV or XLSX document from a fetcher.
type TabularSource struct {
	fetcher   Fetcher
	format    Format
	keyColumn string
}

// NewTabularSource creates a counts source. With FormatAuto the format is
// taken from the fetcher name's extension, then from the payload itself.
// keyColumn locates the header row in workbooks.
func NewTabularSource(fetcher Fetcher, format Format, keyColumn string) *TabularSource {
	return &TabularSource{fetcher: fetcher, format: format, keyColumn: keyColumn}
}

func (s *TabularSource) Name() string {
	return s.fetcher.Name()
}

func (s *TabularSource) Counts(ctx context.Context) (*CountsTable, error) {
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	var rows []domain.RawRow
	switch s.detect(data) {
	case FormatXLSX:
		rows, err = dataprocessing.ReadWorkbook(bytes.NewReader(data), s.keyColumn)
	default:
		rows, err = dataprocessing.ReadCSV(bytes.NewReader(data))
	}
	if err != nil {
		return nil, err
	}
	return &CountsTable{Rows: rows, Payload: data}, nil
}

func (s *TabularSource) detect(data []byte) Format {
	if s.format != FormatAuto {
		return s.format
	}
	switch strings.ToLower(path.Ext(s.fetcher.Name())) {
	case ".xlsx":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	}
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// SheetsConfig locates a counts table in Google Sheets.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	Range           string `yaml:"range" envconfig:"RANGE" default:"Sheet1"`
	APIKey          string `yaml:"api_key" envconfig:"API_KEY"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// Enabled reports whether a spreadsheet is configured.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

// SheetsSource reads the counts table from a spreadsheet range.
type SheetsSource struct {
	service   *sheets.Service
	config    SheetsConfig
	keyColumn string
}

// NewSheetsSource creates the Sheets client. An API key or a service account
// credentials file from the config is added to opts.
func NewSheetsSource(ctx context.Context, config SheetsConfig, keyColumn string, opts ...option.ClientOption) (*SheetsSource, error) {
	switch {
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	case config.APIKey != "":
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsReadonlyScope))

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsSource{service: service, config: config, keyColumn: keyColumn}, nil
}

func (s *SheetsSource) Name() string {
	return "sheets:" + s.config.SpreadsheetID + "/" + s.config.Range
}

func (s *SheetsSource) Counts(ctx context.Context) (*CountsTable, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.config.SpreadsheetID, s.config.Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read from sheets: %w", err)
	}

	records := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		records[i] = make([]string, len(row))
		for j, cell := range row {
			records[i][j] = fmt.Sprint(cell)
		}
	}

	rows, err := dataprocessing.ReadRecords(records, s.keyColumn)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode sheet values: %w", err)
	}
	return &CountsTable{Rows: rows, Payload: payload}, nil
}
