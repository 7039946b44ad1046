package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []int{2019, 2021, 2023}, cfg.Trend.ReferenceYears)
	assert.Equal(t, "correspondence_code_mod", cfg.Schema.Counts.DivisionID)
	assert.Equal(t, "CC_2_MOD", cfg.Schema.Geography.MunicipalityIDProperty)
	assert.Equal(t, DefaultCountsPath, cfg.Sources.CountsPath)
	assert.Equal(t, uint64(3), cfg.Sources.HTTP.MaxRetries)
	assert.Equal(t, 256, cfg.Cache.Size)
	assert.Equal(t, "", cfg.Cache.RedisAddr)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TOURISM_SERVER_PORT", "9090")
	t.Setenv("TOURISM_TREND_REFERENCE_YEARS", "2018,2023")
	t.Setenv("TOURISM_SOURCES_COUNTS_URL", "https://example.org/counts.csv")
	t.Setenv("TOURISM_SOURCES_SHEETS_SPREADSHEET_ID", "sheet-1")
	t.Setenv("TOURISM_CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("TOURISM_SCHEMA_COUNTS_YEAR", "yr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []int{2018, 2023}, cfg.Trend.ReferenceYears)
	assert.Equal(t, "https://example.org/counts.csv", cfg.Sources.CountsURL)
	assert.True(t, cfg.Sources.Sheets.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "yr", cfg.Schema.Counts.Year)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
sources:
  geo_url: https://example.org/geo.topojson
schema:
  geography:
    municipality_id_property: ADM3_PCODE
cache:
  size: 16
`), 0644))
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://example.org/geo.topojson", cfg.Sources.GeoURL)
	assert.Equal(t, "ADM3_PCODE", cfg.Schema.Geography.MunicipalityIDProperty)
	assert.Equal(t, "CC_1", cfg.Schema.Geography.ProvinceIDProperty, "keys absent from the file keep their defaults")
	assert.Equal(t, 16, cfg.Cache.Size)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	t.Setenv(ConfigFileEnv, path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid server port"},
		{name: "no read timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: "read timeout"},
		{name: "no origins", mutate: func(c *Config) { c.Security.AllowedOrigins = nil }, wantErr: "allowed origin"},
		{name: "no counts source", mutate: func(c *Config) { c.Sources.CountsPath = "" }, wantErr: "no counts source"},
		{name: "sheets only", mutate: func(c *Config) {
			c.Sources.CountsPath = ""
			c.Sources.Sheets.SpreadsheetID = "abc"
		}},
		{name: "no geography", mutate: func(c *Config) { c.Sources.GeoPath = "" }, wantErr: "no geography source"},
		{name: "bad format", mutate: func(c *Config) { c.Sources.CountsFormat = "ods" }, wantErr: "unsupported counts format"},
		{name: "one reference year", mutate: func(c *Config) { c.Trend.ReferenceYears = []int{2019} }, wantErr: "two reference years"},
		{name: "unordered reference years", mutate: func(c *Config) { c.Trend.ReferenceYears = []int{2023, 2019} }, wantErr: "strictly ascending"},
		{name: "repeated reference years", mutate: func(c *Config) { c.Trend.ReferenceYears = []int{2019, 2019} }, wantErr: "strictly ascending"},
		{name: "empty schema column", mutate: func(c *Config) { c.Schema.Counts.Year = "" }, wantErr: "Year"},
		{name: "zero cache", mutate: func(c *Config) { c.Cache.Size = 0 }, wantErr: "cache size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}
