package config

import (
	"strings"
	"testing"
)

// validConfig returns a fully defaulted configuration that passes
// validation.
func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate() failed for defaulted config: %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "missing policy dir in file mode",
			mutate:    func(c *Config) { c.Policy.Dir = "" },
			wantField: "policy.dir",
		},
		{
			name:      "unknown policy mode",
			mutate:    func(c *Config) { c.Policy.Mode = "git" },
			wantField: "policy.mode",
		},
		{
			name:      "zero bytecode limit",
			mutate:    func(c *Config) { c.Compiler.MaxBytecodeSize = 0 },
			wantField: "compiler.max_bytecode_size",
		},
		{
			name:      "unknown conflict policy",
			mutate:    func(c *Config) { c.Compiler.ConflictPolicy = "merge" },
			wantField: "compiler.conflict_policy",
		},
		{
			name:      "negative evaluation timeout",
			mutate:    func(c *Config) { c.Evaluator.EvaluationTimeout = -1 },
			wantField: "evaluator.evaluation_timeout",
		},
		{
			name:      "zero retries",
			mutate:    func(c *Config) { c.Constraints.MaxRetries = 0 },
			wantField: "constraints.max_retries",
		},
		{
			name:      "max backoff below initial",
			mutate:    func(c *Config) { c.Constraints.MaxBackoff = c.Constraints.InitialBackoff / 2 },
			wantField: "constraints.max_backoff",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "redis" },
			wantField: "storage.backend",
		},
		{
			name: "missing sqlite path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.SQLite.Path = ""
			},
			wantField: "storage.sqlite.path",
		},
		{
			name:      "invalid prune schedule",
			mutate:    func(c *Config) { c.Storage.Pruning.Schedule = "every day at noon" },
			wantField: "storage.pruning.schedule",
		},
		{
			name:      "unknown fallback verdict",
			mutate:    func(c *Config) { c.Orchestrator.FallbackVerdict = "abstain" },
			wantField: "orchestrator.fallback_verdict",
		},
		{
			name: "server enabled without listen address",
			mutate: func(c *Config) {
				c.Server.Enabled = true
				c.Server.ListenAddress = ""
			},
			wantField: "server.listen_address",
		},
		{
			name: "tiny server header limit",
			mutate: func(c *Config) {
				c.Server.Enabled = true
				c.Server.MaxHeaderBytes = 16
			},
			wantField: "server.max_header_bytes",
		},
		{
			name: "audit enabled without path",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Path = ""
			},
			wantField: "audit.path",
		},
		{
			name:      "zero audit buffer",
			mutate:    func(c *Config) { c.Audit.Buffer = 0 },
			wantField: "audit.buffer",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "metrics path without leading slash",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Policy.Dir = ""
	cfg.Storage.Backend = "redis"
	cfg.Orchestrator.FallbackVerdict = "abstain"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded, want error")
	}

	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("collected %d errors, want 3: %v", len(verr.Errors), verr)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := validConfig()
	snapshot := *cfg

	ApplyDefaults(cfg)
	if *cfg != snapshot {
		t.Error("second ApplyDefaults() changed the configuration")
	}
}
