package config

import "time"

// Config is the root configuration structure for Mercator Saturn.
// It contains all configuration sections for policy loading, compilation,
// evaluation, constraint enforcement, state storage, and telemetry.
type Config struct {
	// Policy contains configuration for the policy source including the
	// policy directory and watch mode.
	Policy PolicyConfig `yaml:"policy"`

	// Compiler contains configuration for policy compilation including
	// optimization passes and program size limits.
	Compiler CompilerConfig `yaml:"compiler"`

	// Evaluator contains configuration for the rule interpreter including
	// the per-evaluation deadline.
	Evaluator EvaluatorConfig `yaml:"evaluator"`

	// Constraints contains configuration for constraint enforcement
	// including CAS retry behavior and the failure posture.
	Constraints ConstraintsConfig `yaml:"constraints"`

	// Storage configures the rate-limit state storage backend.
	Storage StorageConfig `yaml:"storage"`

	// Orchestrator contains configuration for the decision pipeline
	// including the fallback verdict and the compiled-policy cache.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Server configures the HTTP decision endpoint.
	Server ServerConfig `yaml:"server"`

	// Audit configures persistent recording of decision events.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for observability including
	// logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig contains configuration for the policy source.
type PolicyConfig struct {
	// Mode specifies how policies are loaded.
	// Options: "file" (policy directory), "memory" (programmatic, for
	// embedding and tests).
	// Default: "file"
	Mode string `yaml:"mode"`

	// Dir is the directory containing policy documents when Mode is
	// "file". Each policy id maps to <id>.yaml within it.
	// Default: "./policies"
	Dir string `yaml:"dir"`

	// Watch enables automatic cache invalidation when policy files
	// change.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is how long to coalesce rapid file events before
	// invalidating, preventing invalidation storms during editor saves.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// CompilerConfig contains configuration for policy compilation.
type CompilerConfig struct {
	// MaxBytecodeSize is the maximum number of instructions a single
	// compiled policy may contain. Compilation fails above it.
	// Default: 4096
	MaxBytecodeSize int `yaml:"max_bytecode_size"`

	// DisableConstantFolding turns off compile-time evaluation of
	// context-independent comparisons.
	// Default: false (folding on)
	DisableConstantFolding bool `yaml:"disable_constant_folding"`

	// DisableDeadCodeElimination turns off removal of rules whose
	// conditions are provably false after folding.
	// Default: false (elimination on)
	DisableDeadCodeElimination bool `yaml:"disable_dead_code_elimination"`

	// ConflictPolicy controls whether satisfiable rule conflicts under a
	// declared resolution strategy are warnings or fatal.
	// Options: "warn", "reject"
	// Default: "warn"
	ConflictPolicy string `yaml:"conflict_policy"`
}

// EvaluatorConfig contains configuration for the rule interpreter.
type EvaluatorConfig struct {
	// EvaluationTimeout bounds one whole evaluation. Applied on top of
	// any caller deadline; the earlier one wins.
	// Default: 100ms
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`

	// MaxStackDepth bounds the interpreter operand stack. Compiled
	// programs never approach it; the bound catches corrupt programs.
	// Default: 64
	MaxStackDepth int `yaml:"max_stack_depth"`
}

// ConstraintsConfig contains configuration for constraint enforcement.
type ConstraintsConfig struct {
	// ConsensusTimeout bounds one rate-limit check including all CAS
	// retries.
	// Default: 2s
	ConsensusTimeout time.Duration `yaml:"consensus_timeout"`

	// MaxRetries is the total number of CAS attempts per check.
	// Default: 5
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the first CAS retry delay. Jitter is applied on
	// top.
	// Default: 5ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the CAS retry delay.
	// Default: 250ms
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// FailOpen admits operations whose rate-limit check could not reach
	// a consistent outcome. When false such operations are rejected.
	// Default: false
	FailOpen bool `yaml:"fail_open"`
}

// StorageConfig configures the rate-limit state storage backend.
type StorageConfig struct {
	// Backend specifies the storage backend to use.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Memory contains memory backend configuration.
	Memory MemoryConfig `yaml:"memory"`

	// Pruning contains idle-bucket pruning configuration.
	Pruning PruningConfig `yaml:"pruning"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/saturn.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MemoryConfig contains memory backend configuration.
type MemoryConfig struct {
	// MaxEntries is the maximum number of state entries to store.
	// Default: 100000
	MaxEntries int `yaml:"max_entries"`
}

// PruningConfig contains idle-bucket pruning configuration.
type PruningConfig struct {
	// Schedule is a cron expression for when to prune idle buckets.
	// Empty disables scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// Retention is how long an untouched bucket stays before pruning.
	// Default: 24h
	Retention time.Duration `yaml:"retention"`
}

// OrchestratorConfig contains configuration for the decision pipeline.
type OrchestratorConfig struct {
	// FallbackVerdict replaces the outcome when a whole-evaluation fault
	// occurs (policy unavailable, interpreter timeout or error).
	// Options: "allow", "deny", "escalate"
	// Default: "deny"
	FallbackVerdict string `yaml:"fallback_verdict"`

	// CompileTimeout bounds on-miss synchronous compilation.
	// Default: 5s
	CompileTimeout time.Duration `yaml:"compile_timeout"`

	// CacheTTL is how long compiled policies stay cached without an
	// invalidation.
	// Default: 1h
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig configures the HTTP decision endpoint.
type ServerConfig struct {
	// Enabled controls whether the decision endpoint is served. When
	// false the run command only loads policies and serves metrics.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// AuditConfig configures persistent recording of decision events.
type AuditConfig struct {
	// Enabled turns on the SQLite audit recorder. When false decision
	// events are logged but not persisted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the file path for the audit SQLite database.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Buffer is the size of the in-memory event queue. Events beyond it
	// are dropped rather than blocking the decision path.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds a single event write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether Prometheus metrics are registered.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Empty disables the endpoint (metrics stay in-process only).
	// Default: ""
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
