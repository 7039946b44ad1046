package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"phtourism/internal/schema"
	"phtourism/internal/sources"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Trend     TrendConfig     `yaml:"trend" envconfig:"TREND"`
	Schema    schema.Mapping  `yaml:"schema" envconfig:"SCHEMA"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// SourcesConfig locates the counts table and the geography. A URL takes
// precedence over a path; a configured spreadsheet takes precedence over both
// for the counts.
type SourcesConfig struct {
	CountsPath   string               `yaml:"counts_path" envconfig:"COUNTS_PATH" default:"data/tourism_counts.csv"`
	CountsURL    string               `yaml:"counts_url" envconfig:"COUNTS_URL"`
	CountsFormat string               `yaml:"counts_format" envconfig:"COUNTS_FORMAT"`
	Sheets       sources.SheetsConfig `yaml:"sheets" envconfig:"SHEETS"`
	GeoPath      string               `yaml:"geo_path" envconfig:"GEO_PATH" default:"data/municipalities.topojson"`
	GeoURL       string               `yaml:"geo_url" envconfig:"GEO_URL"`
	HTTP         sources.RetryConfig  `yaml:"http" envconfig:"HTTP"`
	MaxIssues    int                  `yaml:"max_issues" envconfig:"MAX_ISSUES" default:"100"`
	LoadOnStart  bool                 `yaml:"load_on_start" envconfig:"LOAD_ON_START" default:"true"`
}

// TrendConfig selects the reference years of the trend table
type TrendConfig struct {
	ReferenceYears []int `yaml:"reference_years" envconfig:"REFERENCE_YEARS" default:"2019,2021,2023"`
}

// CacheConfig sizes the view payload cache. Redis is used only when an
// address is configured.
type CacheConfig struct {
	Size          int           `yaml:"size" envconfig:"SIZE" default:"256"`
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL" default:"10m"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB" default:"0"`
	RedisTTL      time.Duration `yaml:"redis_ttl" envconfig:"REDIS_TTL" default:"1h"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
	MaxMessageSize  int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
}

// Load loads configuration from .env, environment variables and config file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config

	// Defaults and environment variables
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Config file overlays only the keys it sets
	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration and normalizes logging settings
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Sources.CountsPath == "" && c.Sources.CountsURL == "" && !c.Sources.Sheets.Enabled() {
		return fmt.Errorf("no counts source configured")
	}

	if c.Sources.GeoPath == "" && c.Sources.GeoURL == "" {
		return fmt.Errorf("no geography source configured")
	}

	switch strings.ToLower(c.Sources.CountsFormat) {
	case "", "csv", "xlsx":
	default:
		return fmt.Errorf("unsupported counts format: %q", c.Sources.CountsFormat)
	}

	if len(c.Trend.ReferenceYears) < 2 {
		return fmt.Errorf("at least two reference years are required")
	}
	if !slices.IsSorted(c.Trend.ReferenceYears) || len(slices.Compact(slices.Clone(c.Trend.ReferenceYears))) != len(c.Trend.ReferenceYears) {
		return fmt.Errorf("reference years must be strictly ascending: %v", c.Trend.ReferenceYears)
	}

	if err := c.Schema.Validate(); err != nil {
		return err
	}

	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Sources: SourcesConfig{
			CountsPath: DefaultCountsPath,
			GeoPath:    DefaultGeoPath,
			Sheets:     sources.SheetsConfig{Range: "Sheet1"},
			HTTP: sources.RetryConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				Timeout:         DefaultHTTPTimeout,
			},
			MaxIssues:   100,
			LoadOnStart: true,
		},
		Trend: TrendConfig{
			ReferenceYears: []int{2019, 2021, 2023},
		},
		Schema: schema.Default(),
		Cache: CacheConfig{
			Size:     DefaultViewCacheSize,
			TTL:      DefaultViewCacheTTL,
			RedisTTL: time.Hour,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
			MaxMessageSize:  4096,
		},
	}
}
