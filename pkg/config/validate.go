package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "policy.dir").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateCompiler(&cfg.Compiler)...)
	errs = append(errs, validateEvaluator(&cfg.Evaluator)...)
	errs = append(errs, validateConstraints(&cfg.Constraints)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateOrchestrator(&cfg.Orchestrator)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "file":
		if cfg.Dir == "" {
			errs = append(errs, FieldError{
				Field:   "policy.dir",
				Message: `directory is required when mode is "file"`,
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "policy.mode",
			Message: fmt.Sprintf("unknown mode %q (valid: file, memory)", cfg.Mode),
		})
	}

	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.watch_debounce",
			Message: "debounce must be non-negative",
		})
	}

	return errs
}

func validateCompiler(cfg *CompilerConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxBytecodeSize < 1 {
		errs = append(errs, FieldError{
			Field:   "compiler.max_bytecode_size",
			Message: "must be at least 1",
		})
	}

	switch cfg.ConflictPolicy {
	case "warn", "reject":
	default:
		errs = append(errs, FieldError{
			Field:   "compiler.conflict_policy",
			Message: fmt.Sprintf("unknown policy %q (valid: warn, reject)", cfg.ConflictPolicy),
		})
	}

	return errs
}

func validateEvaluator(cfg *EvaluatorConfig) []FieldError {
	var errs []FieldError

	if cfg.EvaluationTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "evaluator.evaluation_timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxStackDepth < 2 {
		errs = append(errs, FieldError{
			Field:   "evaluator.max_stack_depth",
			Message: "must be at least 2",
		})
	}

	return errs
}

func validateConstraints(cfg *ConstraintsConfig) []FieldError {
	var errs []FieldError

	if cfg.ConsensusTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "constraints.consensus_timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxRetries < 1 {
		errs = append(errs, FieldError{
			Field:   "constraints.max_retries",
			Message: "must be at least 1",
		})
	}
	if cfg.InitialBackoff <= 0 {
		errs = append(errs, FieldError{
			Field:   "constraints.initial_backoff",
			Message: "backoff must be positive",
		})
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		errs = append(errs, FieldError{
			Field:   "constraints.max_backoff",
			Message: "must be at least initial_backoff",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.Memory.MaxEntries < 1 {
			errs = append(errs, FieldError{
				Field:   "storage.memory.max_entries",
				Message: "must be at least 1",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: `path is required when backend is "sqlite"`,
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.busy_timeout",
				Message: "timeout must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (valid: memory, sqlite)", cfg.Backend),
		})
	}

	if cfg.Pruning.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Pruning.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.pruning.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Pruning.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.pruning.retention",
			Message: "retention must be non-negative",
		})
	}

	return errs
}

func validateOrchestrator(cfg *OrchestratorConfig) []FieldError {
	var errs []FieldError

	switch cfg.FallbackVerdict {
	case "allow", "deny", "escalate":
	default:
		errs = append(errs, FieldError{
			Field:   "orchestrator.fallback_verdict",
			Message: fmt.Sprintf("unknown verdict %q (valid: allow, deny, escalate)", cfg.FallbackVerdict),
		})
	}

	if cfg.CompileTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.compile_timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.CacheTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "orchestrator.cache_ttl",
			Message: "ttl must be positive",
		})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "address is required when the server is enabled",
		})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must be at least 1024",
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.path",
			Message: "path is required when audit is enabled",
		})
	}
	if cfg.Buffer < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.buffer",
			Message: "must be at least 1",
		})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.write_timeout",
			Message: "timeout must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (valid: json, text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: `path must start with "/"`,
		})
	}

	return errs
}
