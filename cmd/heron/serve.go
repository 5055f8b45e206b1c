package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/credit"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/scoring"
	"github.com/opensource-finance/heron/internal/service"
	"github.com/opensource-finance/heron/internal/telemetry"
	"github.com/opensource-finance/heron/internal/velocity"
	"github.com/opensource-finance/heron/internal/worker"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := domain.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *domain.Config) error {
	telemetry.InitLogger(cfg.Logging)

	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Tracing
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize Metrics
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		mp, err := telemetry.InitMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer mp.Shutdown(context.Background())
		metrics = mp.Metrics
		metricsHandler = mp.Handler
	}

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Scoring engine validates the banding tables before anything is served
	engine, err := scoring.NewEngine()
	if err != nil {
		return err
	}
	slog.Info("scoring engine initialized", "table_version", engine.Tables().Version)

	// Screening rules
	ruleEngine, err := rules.NewEngine(100)
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	velocitySvc := velocity.NewService(repo, time.Duration(cfg.Server.VelocityWindow)*time.Second)

	creditClient, err := credit.NewClient(cfg.Credit, cacheImpl, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize credit client: %w", err)
	}
	slog.Info("credit client initialized", "default_provider", cfg.Credit.DefaultProvider)

	svc, err := service.New(service.Config{
		Engine:   engine,
		Rules:    ruleEngine,
		Velocity: velocitySvc,
		Repo:     repo,
		Bus:      busImpl,
		Metrics:  metrics,
		Version:  Version,
	})
	if err != nil {
		return err
	}

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, svc)
		workerCfg := worker.Config{
			TenantIDs:   cfg.Worker.TenantIDs,
			Concurrency: cfg.Worker.Concurrency,
		}
		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "tenant_count", len(cfg.Worker.TenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Service: svc,
		Rules:   ruleEngine,
		Credit:  creditClient,
		Repo:    repo,
		Cache:   cacheImpl,
		Bus:     busImpl,
		Metrics: metricsHandler,
		Version: Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	ruleEngine.Close()

	slog.Info("heron shutdown complete")
	return serveErr
}

// loadRulesFromDatabase loads global screening rules into the engine.
// An empty database is seeded with the sample rules first.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, domain.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) == 0 {
		for _, rule := range rules.SampleRules() {
			if err := repo.SaveRuleConfig(ctx, domain.GlobalTenantID, rule); err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
			}
		}
		slog.Info("seeded sample screening rules", "count", len(rules.SampleRules()))
		dbRules = rules.SampleRules()
	}

	slog.Info("loading rules from database", "count", len(dbRules))
	return engine.LoadRules(dbRules)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                 HERON                     ║")
	fmt.Println("  ║        Loan Risk Scoring Engine           ║")
	fmt.Println("  ║     Every application, same answer.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /risk/assess          - Score an application")
	fmt.Println("    POST /risk/assess/batch    - Score many applications")
	fmt.Println("    POST /risk/submissions     - Queue an application")
	fmt.Println("    GET  /risk/tables          - Banding tables")
	fmt.Println("    GET  /assessments          - Recent assessments")
	fmt.Println("    GET  /assessments/{id}     - Get assessment by ID")
	fmt.Println("    POST /credit/query         - Query a credit bureau")
	fmt.Println("    GET  /credit/stats         - Bureau quota usage")
	fmt.Println("    GET  /rules                - List screening rules")
	fmt.Println("    POST /rules                - Create a screening rule")
	fmt.Println("    POST /rules/reload         - Hot-reload rules from database")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println("    GET  /metrics              - Prometheus metrics")
	fmt.Println()
}
