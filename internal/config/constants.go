package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "PH Tourism Pulse"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable
	EnvPrefix = "TOURISM"

	// ConfigFileEnv overrides the YAML file location
	ConfigFileEnv = "TOURISM_CONFIG_FILE"

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Default inputs, relative to the working directory
	DefaultCountsPath = "data/tourism_counts.csv"
	DefaultGeoPath    = "data/municipalities.topojson"

	// Cache Settings
	DefaultViewCacheSize = 256
	DefaultViewCacheTTL  = 10 * time.Minute

	// Views
	DefaultRankingLimit = 10
	MaxRankingLimit     = 2000

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
