package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/qaorchestrator/core/internal/config"
	"github.com/qaorchestrator/core/pkg/daemon"
	"github.com/qaorchestrator/core/pkg/decision"
	"github.com/qaorchestrator/core/pkg/escalation"
	"github.com/qaorchestrator/core/pkg/eventbus"
	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/metrics"
	"github.com/qaorchestrator/core/pkg/patternindex"
	"github.com/qaorchestrator/core/pkg/taskqueue"
	"github.com/qaorchestrator/core/pkg/worker"
	"github.com/qaorchestrator/core/pkg/workerregistry"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qaorchestrator",
	Short: "QA Orchestrator - routes static-analysis findings to fixers and humans",
	Long: `QA Orchestrator polls a task queue of static-analysis violations,
scores and batches them, and routes each batch to an in-process fixer,
a spawned heavy worker, or a human via Slack escalation.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"qaorchestrator version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateConfigCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and validate the configuration file without starting the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("config OK: poll_interval_s=%.1f fast_pool_size=%d heavy_pool_size=%d\n",
			cfg.PollIntervalS, cfg.FastPoolSize, cfg.HeavyPoolSize)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		deps, cleanup, err := buildDeps(*cfg)
		if err != nil {
			return fmt.Errorf("build dependencies: %w", err)
		}
		defer cleanup()

		dcfg := daemon.Config{
			PollInterval:        cfg.PollInterval(),
			ClaimBatchSize:      cfg.ClaimBatchSize,
			LeaseDuration:       cfg.HeavyTimeout(),
			FastPoolSize:        cfg.FastPoolSize,
			HeavyPoolSize:       cfg.HeavyPoolSize,
			QueuePollTimeout:    10 * time.Second,
			EventPublishTimeout: 5 * time.Second,
			MaxRetries:          cfg.MaxRetries,
			HTTPAddr:            cfg.HTTPAddr,
		}
		if dcfg.HTTPAddr == "" {
			dcfg.HTTPAddr = ":8090"
		}

		d := daemon.NewDaemon(dcfg, deps)

		if path != "" {
			watcher, err := config.WatchThresholds(path, d.SetThresholds)
			if err != nil {
				log.WithComponent("main").Warn().Err(err).Msg("threshold hot-reload disabled")
			} else {
				defer watcher.Close()
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d.Start(ctx)
		fmt.Println("✓ QA Orchestrator daemon started")

		metrics.SetVersion(Version)
		metrics.RegisterComponent("taskqueue", true, "ready")
		metrics.RegisterComponent("worker-supervisor", true, "ready")

		srv := &http.Server{Addr: dcfg.HTTPAddr, Handler: d.NewServer()}
		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
		fmt.Printf("✓ Observability endpoint: http://%s/snapshot\n", dcfg.HTTPAddr)

		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nHTTP server error: %v\n", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SoftStopGrace()+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithComponent("main").Warn().Err(err).Msg("http server shutdown error")
		}
		if err := d.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("daemon shutdown: %w", err)
		}

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

// buildDeps wires daemon.Deps from config: a RedisQueue when a Redis
// address is set (an InMemoryQueue otherwise), an in-memory worker
// registry, a BoltStore for escalation cases, and a Slack notifier when a
// token is set (falling back to escalation.NoopNotifier otherwise).
func buildDeps(cfg config.Config) (daemon.Deps, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var queue taskqueue.TaskQueue
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanups = append(cleanups, func() { _ = client.Close() })
		queue = taskqueue.NewRedisQueue(client)
	} else {
		queue = taskqueue.NewInMemoryQueue()
	}

	bus := eventbus.NewInMemoryBroker()
	bus.Start()
	cleanups = append(cleanups, bus.Stop)

	idx, err := patternindex.Load(cfg.PatternIndexPath, "")
	if err != nil {
		cleanup()
		return daemon.Deps{}, nil, fmt.Errorf("load pattern index: %w", err)
	}

	store, err := escalation.NewBoltStore(cfg.DataDir)
	if err != nil {
		cleanup()
		return daemon.Deps{}, nil, fmt.Errorf("open escalation store: %w", err)
	}
	cleanups = append(cleanups, func() { _ = store.Close() })

	var notifier escalation.Notifier = escalation.NoopNotifier{}
	if cfg.SlackToken != "" {
		notifier = escalation.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel)
	}
	mgr := escalation.NewManager(store, bus, notifier)

	workerCfg := worker.Config{
		FastPoolSize:            cfg.FastPoolSize,
		HeavyPoolSize:           cfg.HeavyPoolSize,
		FastTimeout:             cfg.FastTimeout(),
		HeavyTimeout:            cfg.HeavyTimeout(),
		HeartbeatStale:          cfg.HeartbeatStale(),
		HealthSweepInterval:     cfg.HealthSweepInterval(),
		SoftStopGrace:           cfg.SoftStopGrace(),
		StartupScript:           cfg.HeavyWorkerStartupScript,
		HeartbeatDir:            cfg.DataDir,
		BreakerFailureThreshold: 3,
		BreakerWindow:           60 * time.Second,
		BreakerCooldown:         30 * time.Second,
	}
	sup := worker.NewSupervisor(workerCfg, daemon.LogFastExecutor{}, bus)

	deps := daemon.Deps{
		Queue:       queue,
		Registry:    workerregistry.NewInMemoryRegistry(),
		Supervisor:  sup,
		Escalations: mgr,
		Patterns:    idx,
		Bus:         bus,
		Thresholds:  decisionThresholdsFrom(cfg),
	}
	return deps, cleanup, nil
}

// decisionThresholdsFrom maps the routing_* config keys onto
// decision.Thresholds; these are the only fields config.WatchThresholds
// hot-reloads at runtime.
func decisionThresholdsFrom(cfg config.Config) decision.Thresholds {
	return decision.Thresholds{
		HighComplexity:   cfg.RoutingHighComplexityThreshold,
		SecurityKind:     cfg.RoutingSecurityKindThreshold,
		LowConfidence:    cfg.RoutingLowConfidenceThreshold,
		MediumComplexity: cfg.RoutingMediumComplexityThreshold,
	}
}
