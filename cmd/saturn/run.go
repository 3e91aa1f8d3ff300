package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/compiler"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/constraint"
	"mercator-hq/saturn/pkg/constraint/store"
	"mercator-hq/saturn/pkg/decision"
	"mercator-hq/saturn/pkg/decision/audit"
	"mercator-hq/saturn/pkg/pdl/ast"
	"mercator-hq/saturn/pkg/pdl/validator"
	"mercator-hq/saturn/pkg/server"
	"mercator-hq/saturn/pkg/telemetry/logging"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/vm"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision service",
	Long: `Run the Saturn decision service.

The run command loads configuration, wires the compilation and
evaluation pipeline, and serves decisions until interrupted. Policy
files are loaded from the configured directory and recompiled on
change when watch mode is enabled.

Examples:
  # Run with default config file (config.yaml)
  saturn run

  # Run with a specific config file
  saturn run --config /etc/saturn/config.yaml

  # Validate configuration and policies, then exit
  saturn run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override the configured log level")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate configuration and policies, then exit")
}

func runService(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	cfg := config.MustGetConfig()

	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, nil)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	logger.Info("starting saturn",
		"version", Version,
		"config", cfgFile,
		"policy_dir", cfg.Policy.Dir,
		"storage", cfg.Storage.Backend)

	if runFlags.dryRun {
		return dryRun(cfg, logger)
	}

	ctx := cli.SetupSignalHandler()

	// Constraint state storage.
	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open constraint store: %w", err)
	}
	defer st.Close()

	var pruner *store.Pruner
	if cfg.Storage.Pruning.Schedule != "" {
		pruner = store.NewPruner(st, store.PrunerConfig{
			Schedule:  cfg.Storage.Pruning.Schedule,
			Retention: cfg.Storage.Pruning.Retention,
		}, logger)
		if err := pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start pruner: %w", err)
		}
		defer pruner.Stop()
	}

	// Metrics registry shared by all components.
	collector := metrics.NewCollector(logger)

	var decisionMetrics *decision.Metrics
	var constraintMetrics *constraint.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		decisionMetrics = decision.NewMetricsWith(collector.Registry())
		constraintMetrics = constraint.NewMetricsWith(collector.Registry())
	}

	// Pipeline components.
	comp, err := compiler.New(compilerConfig(cfg), nil, logger)
	if err != nil {
		return err
	}
	machine, err := vm.New(&vm.Config{
		EvaluationTimeout: cfg.Evaluator.EvaluationTimeout,
		MaxStackDepth:     cfg.Evaluator.MaxStackDepth,
	}, logger)
	if err != nil {
		return err
	}
	enforcer, err := constraint.New(st, &constraint.Config{
		ConsensusTimeout:           cfg.Constraints.ConsensusTimeout,
		MaxRetries:                 cfg.Constraints.MaxRetries,
		InitialBackoff:             cfg.Constraints.InitialBackoff,
		MaxBackoff:                 cfg.Constraints.MaxBackoff,
		FailOpenOnConsensusFailure: cfg.Constraints.FailOpen,
	}, constraintMetrics, logger)
	if err != nil {
		return err
	}

	source, err := buildSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open policy source: %w", err)
	}

	sink, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer closeSink()

	orchestrator, err := decision.New(decision.Options{
		Compiler: comp,
		Machine:  machine,
		Enforcer: enforcer,
		Source:   source,
		Sink:     sink,
		Metrics:  decisionMetrics,
		Config: &decision.Config{
			FallbackVerdict: ast.Verdict(cfg.Orchestrator.FallbackVerdict),
			CompileTimeout:  cfg.Orchestrator.CompileTimeout,
			CacheTTL:        cfg.Orchestrator.CacheTTL,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	errChan := make(chan error, 3)

	var srvDone chan error
	if cfg.Server.Enabled {
		srv, err := server.New(cfg.Server, orchestrator, logger)
		if err != nil {
			return err
		}
		srvDone = make(chan error, 1)
		go func() {
			err := srv.Start(ctx)
			srvDone <- err
			if err != nil {
				errChan <- fmt.Errorf("decision endpoint failed: %w", err)
			}
		}()
	}

	if cfg.Policy.Watch {
		go func() {
			if err := orchestrator.WatchSource(ctx); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("policy watcher failed: %w", err)
			}
		}()
		logger.Info("policy watch enabled", "dir", cfg.Policy.Dir)
	}

	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress != "" {
		go func() {
			addr := cfg.Telemetry.Metrics.ListenAddress
			if err := collector.Serve(ctx, addr, cfg.Telemetry.Metrics.Path); err != nil {
				errChan <- fmt.Errorf("metrics endpoint failed: %w", err)
			}
		}()
	}

	logger.Info("saturn ready")

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		if srvDone != nil {
			// Let in-flight decisions drain before the stores close.
			<-srvDone
		}
		return nil
	case err := <-errChan:
		logger.Error("fatal error", "error", err)
		return cli.NewCommandError("run", err)
	}
}

// dryRun validates the configuration and compiles every policy in the
// configured directory without starting the service.
func dryRun(cfg *config.Config, logger *slog.Logger) error {
	comp, err := compiler.New(compilerConfig(cfg), nil, logger)
	if err != nil {
		return err
	}

	files, err := collectPolicyFiles("", cfg.Policy.Dir)
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		compiled, err := comp.CompileFile(file)
		if err != nil {
			failed++
			fmt.Printf("✗ %s\n  %v\n", file, err)
			continue
		}
		fmt.Printf("✓ %s (%s@%s, %d rules)\n",
			file, compiled.PolicyID, compiled.Version, compiled.RuleCount)
	}

	fmt.Printf("\n%d policy file(s), %d failed\n", len(files), failed)
	if failed > 0 {
		return fmt.Errorf("dry run found %d invalid policy file(s)", failed)
	}
	logger.Info("dry run passed", "policies", len(files))
	return nil
}

func compilerConfig(cfg *config.Config) *compiler.Config {
	conflictPolicy := validator.ConflictPolicyWarn
	if cfg.Compiler.ConflictPolicy == "reject" {
		conflictPolicy = validator.ConflictPolicyReject
	}
	return &compiler.Config{
		MaxBytecodeSize:           cfg.Compiler.MaxBytecodeSize,
		EnableConstantFolding:     !cfg.Compiler.DisableConstantFolding,
		EnableDeadCodeElimination: !cfg.Compiler.DisableDeadCodeElimination,
		ConflictPolicy:            conflictPolicy,
	}
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStoreWithConfig(store.SQLiteStoreConfig{
			DBPath:      cfg.Storage.SQLite.Path,
			BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
		})
	default:
		return store.NewMemoryStoreWithConfig(store.MemoryStoreConfig{
			MaxEntries: cfg.Storage.Memory.MaxEntries,
		}), nil
	}
}

func buildSource(cfg *config.Config, logger *slog.Logger) (decision.Source, error) {
	if cfg.Policy.Mode == "memory" {
		return decision.NewMemorySource(), nil
	}
	return decision.NewFileSourceWithDebounce(cfg.Policy.Dir, cfg.Policy.WatchDebounce, logger)
}

// buildSink returns the decision event sink and a shutdown function that
// flushes and closes it.
func buildSink(cfg *config.Config, logger *slog.Logger) (decision.Sink, func(), error) {
	if !cfg.Audit.Enabled {
		return decision.NewLogSink(logger), func() {}, nil
	}

	auditStore, err := audit.NewSQLiteStore(audit.SQLiteConfig{
		Path:        cfg.Audit.Path,
		BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	recorder := audit.NewRecorder(auditStore, audit.RecorderConfig{
		Buffer:       cfg.Audit.Buffer,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, logger)

	return recorder, func() {
		recorder.Close()
		if err := auditStore.Close(); err != nil {
			logger.Warn("failed to close audit store", "error", err)
		}
	}, nil
}
