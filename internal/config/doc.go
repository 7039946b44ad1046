// Package config provides centralized configuration management for the tourism
// engine. It loads settings from .env files, environment variables and an
// optional YAML file, validates them and exposes a typed Config.
//
// # Configuration Sources
//
// Configuration is applied in the following order:
//
//	1. Default values from struct tags
//	2. .env file in the working directory, then environment variables
//	3. YAML file (config.yaml, configs/config.yaml or TOURISM_CONFIG_FILE)
//
// # Environment Variables
//
// All environment variables use the TOURISM_ prefix and follow the nesting of
// the Config struct:
//
//	TOURISM_SERVER_PORT=8080
//	TOURISM_SOURCES_COUNTS_URL=https://example.org/tourism.csv
//	TOURISM_SOURCES_GEO_PATH=data/municipalities.topojson
//	TOURISM_CACHE_REDIS_ADDR=localhost:6379
//	TOURISM_TREND_REFERENCE_YEARS=2019,2021,2023
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port)}
package config
