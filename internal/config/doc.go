// Package config provides centralized configuration management for the
// dashboard server. It loads configuration from multiple sources, validates
// it, and exposes a typed Config to the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables that are explicitly set (highest priority)
//	2. A YAML configuration file
//	3. Default values (lowest priority)
//
// The file is taken from DASH_CONFIG_FILE, or from config.yaml or
// configs/config.yaml in the working directory. A missing file is fine.
//
// # Environment Variables
//
// All environment variables follow the pattern DASH_<SECTION>_<FIELD>:
//
//	DASH_SERVER_PORT=8080
//	DASH_LOGGING_LEVEL=debug
//	DASH_DATASET_MAX_UPLOAD_MB=100
//	DASH_SECURITY_ALLOWED_ORIGINS=http://localhost:8080,http://127.0.0.1:8080
//	DASH_TELEMETRY_TRACING_ENABLED=true
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
package config
