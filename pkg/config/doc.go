// Package config provides configuration management for Mercator Saturn.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SATURN_SECTION_FIELD.
// For example:
//
//   - SATURN_POLICY_DIR overrides policy.dir
//   - SATURN_STORAGE_BACKEND overrides storage.backend
//   - SATURN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// All configuration is validated automatically during loading. Validation errors
// include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - policy.dir: directory is required when mode is "file"
//	  - constraints.max_retries: must be at least 1
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	policy:
//	  mode: "file"
//	  dir: "./policies"
//	  watch: true
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/saturn.db"
//
//	orchestrator:
//	  fallback_verdict: "deny"
//
//	server:
//	  enabled: true
//	  listen_address: "127.0.0.1:8080"
//
//	audit:
//	  enabled: true
//	  path: "data/audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
