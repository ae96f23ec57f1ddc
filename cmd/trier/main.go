// Trier - deterministic, explainable transaction risk scoring.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yusdesign/trier/internal/api"
	"github.com/yusdesign/trier/internal/bus"
	"github.com/yusdesign/trier/internal/cache"
	"github.com/yusdesign/trier/internal/domain"
	"github.com/yusdesign/trier/internal/pattern"
	"github.com/yusdesign/trier/internal/repository"
	"github.com/yusdesign/trier/internal/rules"
	"github.com/yusdesign/trier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := loadConfig()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting trier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"workers", cfg.Workers,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Pattern table: built-in defaults, optionally replaced from file.
	patterns := pattern.Default()
	if cfg.PatternFile != "" {
		data, err := pattern.LoadFile(cfg.PatternFile)
		if err != nil {
			slog.Error("failed to load pattern file", "file", cfg.PatternFile, "error", err)
			os.Exit(1)
		}
		patterns.Reload(data)
		slog.Info("pattern table loaded", "file", cfg.PatternFile, "entries", patterns.Size())
	}

	// Custom rule engine
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.Count())

	// Async worker scores transactions published on the ingest topic.
	var asyncWorker *worker.Worker
	if envBool("TRIER_ASYNC_WORKER", true) {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, patterns, engine, cfg.Scoring, cfg.Matcher, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started")
		}
	}

	// HTTP server
	srv := api.NewServer(cfg, repo, cacheImpl, busImpl, patterns, engine, Version, logger)
	if err := srv.Handler().RefreshCorpus(ctx); err != nil {
		slog.Warn("failed to load fraud corpus", "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("trier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("trier shutdown complete")
}

// loadConfig builds the runtime configuration from defaults plus
// TRIER_* environment overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	cfg.Server.Host = envStr("TRIER_HOST", cfg.Server.Host)
	cfg.Server.Port = envInt("TRIER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = envInt("TRIER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = envInt("TRIER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)

	cfg.Repository.Driver = envStr("TRIER_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = envStr("TRIER_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = envStr("TRIER_POSTGRES_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = envInt("TRIER_POSTGRES_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = envStr("TRIER_POSTGRES_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = envStr("TRIER_POSTGRES_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = envStr("TRIER_POSTGRES_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = envStr("TRIER_POSTGRES_SSLMODE", cfg.Repository.PostgresSSLMode)

	cfg.Cache.Type = envStr("TRIER_CACHE_TYPE", cfg.Cache.Type)
	cfg.Cache.LocalMaxSize = envInt("TRIER_CACHE_MAX_SIZE", cfg.Cache.LocalMaxSize)
	cfg.Cache.LocalTTL = envInt("TRIER_CACHE_TTL", cfg.Cache.LocalTTL)
	cfg.Cache.RedisAddr = envStr("TRIER_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = envStr("TRIER_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = envInt("TRIER_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.EnableTwoPhase = envBool("TRIER_CACHE_TWO_PHASE", cfg.Cache.EnableTwoPhase)

	cfg.EventBus.Type = envStr("TRIER_BUS_TYPE", cfg.EventBus.Type)
	cfg.EventBus.ChannelBufferSize = envInt("TRIER_BUS_BUFFER", cfg.EventBus.ChannelBufferSize)
	cfg.EventBus.NATSUrl = envStr("TRIER_NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = envStr("TRIER_NATS_TOKEN", cfg.EventBus.NATSToken)

	cfg.PatternFile = envStr("TRIER_PATTERN_FILE", cfg.PatternFile)
	cfg.Workers = envInt("TRIER_WORKERS", cfg.Workers)
	cfg.Matcher.RequireBoth = envBool("TRIER_MATCH_REQUIRE_BOTH", cfg.Matcher.RequireBoth)

	cfg.Logging.Level = envStr("TRIER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envStr("TRIER_LOG_FORMAT", cfg.Logging.Format)

	return cfg
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRulesFromDatabase loads custom rules into the engine. Rules are
// configured via POST /rules; an empty table is a normal start.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	configs, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil
	}

	if len(configs) > 0 {
		slog.Info("loading rules from database", "count", len(configs))
		return engine.Load(configs)
	}

	slog.Info("no custom rules in database - configure via POST /rules API")
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  Trier - Transaction Risk Scoring Engine")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                     - Score a transaction")
	fmt.Println("    POST /score/batch               - Evaluate a batch")
	fmt.Println("    GET  /results/{id}              - Get result by ID")
	fmt.Println("    GET  /transactions/{id}         - Get transaction by ID")
	fmt.Println("    GET  /transactions/{id}/result  - Latest result for a transaction")
	fmt.Println("    GET  /alerts                    - List HIGH-risk results")
	fmt.Println("    GET  /patterns/rating           - Resolve a pattern rating")
	fmt.Println("    POST /patterns/reload           - Hot-reload the pattern table")
	fmt.Println("    GET  /rules                     - List custom rules")
	fmt.Println("    POST /rules                     - Create a custom rule")
	fmt.Println("    POST /rules/reload              - Hot-reload custom rules")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println("    GET  /metrics                   - Prometheus metrics")
	fmt.Println()
}
