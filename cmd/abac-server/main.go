// Package main provides the entry point for the ABAC policy server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campuserp/abac-core/internal/api"
	"github.com/campuserp/abac-core/internal/attribute"
	"github.com/campuserp/abac-core/internal/audit"
	"github.com/campuserp/abac-core/internal/cache"
	"github.com/campuserp/abac-core/internal/db"
	"github.com/campuserp/abac-core/internal/engine"
	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/internal/policy"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		httpPort        = flag.Int("http-port", 8080, "HTTP server port")
		dbURL           = flag.String("db-url", "", "PostgreSQL connection URL (empty: in-memory stores)")
		runMigrations   = flag.Bool("migrate", true, "Run database migrations on startup")
		policyDir       = flag.String("policy-dir", "", "Directory to load policy files from")
		watchPolicies   = flag.Bool("watch", false, "Reload policy files on change (requires -policy-dir)")
		cacheEnabled    = flag.Bool("cache", true, "Enable policy candidate cache")
		cacheSize       = flag.Int("cache-size", 10000, "Maximum cache entries")
		cacheTTL        = flag.Duration("cache-ttl", time.Minute, "Cache TTL")
		redisAddr       = flag.String("redis-addr", "", "Redis address for cross-instance cache invalidation")
		redisPassword   = flag.String("redis-password", "", "Redis password")
		redisDB         = flag.Int("redis-db", 0, "Redis database")
		auditEnabled    = flag.Bool("audit", true, "Enable audit logging")
		auditType       = flag.String("audit-type", "stdout", "Audit output (stdout, file, db)")
		auditFile       = flag.String("audit-file", "", "Audit log file path (for -audit-type=file)")
		jwtSecret       = flag.String("jwt-secret", "", "JWT shared secret; enables API authentication when set")
		logLevel        = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat       = flag.String("log-format", "json", "Log format (json, console)")
		showVersion     = flag.Bool("version", false, "Show version information")
		gracefulTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("abac-server %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	logger, err := initLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting ABAC policy server",
		zap.String("version", Version),
		zap.Int("http_port", *httpPort),
	)

	m := metrics.New("abac")

	// Stores: PostgreSQL when a database URL is given, in-memory otherwise.
	var (
		database    *sql.DB
		policyStore policy.Store
		userStore   attribute.UserStore
		attrStore   attribute.Store
		defStore    attribute.DefinitionStore
		auditStore  audit.Store
	)

	if *dbURL != "" {
		database, err = sql.Open("postgres", *dbURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer database.Close()

		if err := database.Ping(); err != nil {
			logger.Fatal("failed to reach database", zap.Error(err))
		}

		if *runMigrations {
			runner, err := db.NewMigrationRunner(database, logger)
			if err != nil {
				logger.Fatal("failed to create migration runner", zap.Error(err))
			}
			if err := runner.Up(); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		policyStore = policy.NewPostgresStore(database)
		attrPG := attribute.NewPostgresStore(database)
		userStore = attrPG
		attrStore = attrPG
		defStore = attrPG
		auditStore = audit.NewPostgresStore(database)
	} else {
		memPolicies := policy.NewMemoryStore()
		memAttrs := attribute.NewMemoryStore()
		policyStore = memPolicies
		userStore = memAttrs
		attrStore = memAttrs
		defStore = memAttrs
		auditStore = audit.NewMemoryStore(10000)

		if *policyDir != "" {
			loader := policy.NewLoader(logger)
			rules, err := loader.LoadFromDirectory(*policyDir)
			if err != nil {
				logger.Fatal("failed to load policies", zap.String("dir", *policyDir), zap.Error(err))
			}
			memPolicies.ReplaceAll(rules)
			logger.Info("policies loaded", zap.String("dir", *policyDir), zap.Int("count", len(rules)))

			if *watchPolicies {
				watcher, err := policy.NewFileWatcher(*policyDir, memPolicies, loader, logger)
				if err != nil {
					logger.Fatal("failed to create policy watcher", zap.Error(err))
				}
				watcher.SetMetrics(m)
				if err := watcher.Watch(context.Background()); err != nil {
					logger.Fatal("failed to start policy watcher", zap.Error(err))
				}
				defer watcher.Stop()
			}
		}
	}

	// Candidate cache with optional cross-instance invalidation.
	if *cacheEnabled {
		cached := policy.NewCachedStore(policyStore, *cacheSize, *cacheTTL)
		cached.SetMetrics(m)

		if *redisAddr != "" {
			invCfg := cache.DefaultInvalidatorConfig()
			invCfg.Addr = *redisAddr
			invCfg.Password = *redisPassword
			invCfg.DB = *redisDB

			invalidator, err := cache.NewInvalidator(invCfg, logger)
			if err != nil {
				logger.Fatal("failed to connect to redis", zap.Error(err))
			}
			defer invalidator.Close()

			cached.OnInvalidate(func(ctx context.Context) {
				if err := invalidator.Publish(ctx); err != nil {
					logger.Warn("cache invalidation publish failed", zap.Error(err))
				}
			})
			invalidator.Subscribe(cached.InvalidateLocal)
		}

		policyStore = cached
	}

	// Audit trail.
	auditCfg := audit.DefaultConfig()
	auditCfg.Enabled = *auditEnabled
	auditCfg.Type = *auditType
	auditCfg.FilePath = *auditFile
	auditCfg.DB = database
	auditCfg.Metrics = m

	auditLogger, err := audit.NewLogger(auditCfg, logger)
	if err != nil {
		logger.Fatal("failed to create audit logger", zap.Error(err))
	}
	defer auditLogger.Close()

	resolver := attribute.NewResolver(userStore, attrStore, logger)
	eng := engine.New(engine.Config{}, resolver, policyStore, auditLogger, m, logger)

	logger.Info("decision engine initialized",
		zap.Bool("cache_enabled", *cacheEnabled),
		zap.Bool("audit_enabled", *auditEnabled),
		zap.Bool("postgres", database != nil),
	)

	apiCfg := api.DefaultConfig()
	apiCfg.Port = *httpPort
	apiCfg.Version = Version
	if *jwtSecret != "" {
		apiCfg.EnableAuth = true
		apiCfg.Authenticator = api.NewAuthenticator(*jwtSecret, nil)
	}

	srv, err := api.New(apiCfg, api.Deps{
		Engine:     eng,
		Policies:   policyStore,
		Attributes: attrStore,
		Defs:       defStore,
		AuditStore: auditStore,
		Metrics:    m,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create API server", zap.Error(err))
	}

	errChan := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), *gracefulTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// initLogger initializes the zap logger.
func initLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if format == "console" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}
