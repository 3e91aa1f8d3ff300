package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyMode    = "file"
	DefaultPolicyDir     = "./policies"
	DefaultPolicyWatch   = false
	DefaultWatchDebounce = 100 * time.Millisecond

	// Compiler defaults
	DefaultMaxBytecodeSize = 4096
	DefaultConflictPolicy  = "warn"

	// Evaluator defaults
	DefaultEvaluationTimeout = 100 * time.Millisecond
	DefaultMaxStackDepth     = 64

	// Constraint defaults
	DefaultConsensusTimeout = 2 * time.Second
	DefaultMaxRetries       = 5
	DefaultInitialBackoff   = 5 * time.Millisecond
	DefaultMaxBackoff       = 250 * time.Millisecond

	// Storage defaults
	DefaultStorageBackend    = "memory"
	DefaultSQLitePath        = "data/saturn.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultMemoryMaxEntries  = 100000
	DefaultPruningSchedule   = "0 3 * * *"
	DefaultPruningRetention  = 24 * time.Hour

	// Orchestrator defaults
	DefaultFallbackVerdict = "deny"
	DefaultCompileTimeout  = 5 * time.Second
	DefaultCacheTTL        = time.Hour

	// Server defaults
	DefaultServerListenAddress   = "127.0.0.1:8080"
	DefaultServerReadTimeout     = 30 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerIdleTimeout     = 120 * time.Second
	DefaultServerShutdownTimeout = 30 * time.Second
	DefaultServerMaxHeaderBytes  = 1 << 20

	// Audit defaults
	DefaultAuditPath         = "data/audit.db"
	DefaultAuditBuffer       = 1000
	DefaultAuditWriteTimeout = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = DefaultPolicyMode
	}
	if cfg.Policy.Dir == "" {
		cfg.Policy.Dir = DefaultPolicyDir
	}
	if cfg.Policy.WatchDebounce == 0 {
		cfg.Policy.WatchDebounce = DefaultWatchDebounce
	}

	// Compiler defaults
	if cfg.Compiler.MaxBytecodeSize == 0 {
		cfg.Compiler.MaxBytecodeSize = DefaultMaxBytecodeSize
	}
	if cfg.Compiler.ConflictPolicy == "" {
		cfg.Compiler.ConflictPolicy = DefaultConflictPolicy
	}

	// Evaluator defaults
	if cfg.Evaluator.EvaluationTimeout == 0 {
		cfg.Evaluator.EvaluationTimeout = DefaultEvaluationTimeout
	}
	if cfg.Evaluator.MaxStackDepth == 0 {
		cfg.Evaluator.MaxStackDepth = DefaultMaxStackDepth
	}

	// Constraint defaults
	if cfg.Constraints.ConsensusTimeout == 0 {
		cfg.Constraints.ConsensusTimeout = DefaultConsensusTimeout
	}
	if cfg.Constraints.MaxRetries == 0 {
		cfg.Constraints.MaxRetries = DefaultMaxRetries
	}
	if cfg.Constraints.InitialBackoff == 0 {
		cfg.Constraints.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Constraints.MaxBackoff == 0 {
		cfg.Constraints.MaxBackoff = DefaultMaxBackoff
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Memory.MaxEntries == 0 {
		cfg.Storage.Memory.MaxEntries = DefaultMemoryMaxEntries
	}
	if cfg.Storage.Pruning.Schedule == "" {
		cfg.Storage.Pruning.Schedule = DefaultPruningSchedule
	}
	if cfg.Storage.Pruning.Retention == 0 {
		cfg.Storage.Pruning.Retention = DefaultPruningRetention
	}

	// Orchestrator defaults
	if cfg.Orchestrator.FallbackVerdict == "" {
		cfg.Orchestrator.FallbackVerdict = DefaultFallbackVerdict
	}
	if cfg.Orchestrator.CompileTimeout == 0 {
		cfg.Orchestrator.CompileTimeout = DefaultCompileTimeout
	}
	if cfg.Orchestrator.CacheTTL == 0 {
		cfg.Orchestrator.CacheTTL = DefaultCacheTTL
	}

	// Server defaults. Serving is on unless the section explicitly
	// disables it; a configured section always sets the listen address
	// first, so a bare zero value means the section is absent.
	if !cfg.Server.Enabled && cfg.Server.ListenAddress == "" {
		cfg.Server.Enabled = true
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultServerIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultServerMaxHeaderBytes
	}

	// Audit defaults
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.Buffer == 0 {
		cfg.Audit.Buffer = DefaultAuditBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	// Metrics default to enabled; an explicit "enabled: false" is
	// recognizable because a configured section always sets Path first.
	if !cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
