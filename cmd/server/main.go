package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/campusiq/opsconsole/internal/adapter/ai"
	httpadapter "github.com/campusiq/opsconsole/internal/adapter/http"
	"github.com/campusiq/opsconsole/internal/adapter/persistence"
	"github.com/campusiq/opsconsole/internal/config"
	"github.com/campusiq/opsconsole/internal/intent"
	"github.com/campusiq/opsconsole/internal/permission"
	"github.com/campusiq/opsconsole/internal/ports"
	"github.com/campusiq/opsconsole/internal/registry"
	"github.com/campusiq/opsconsole/internal/risk"
	"github.com/campusiq/opsconsole/internal/service/approval"
	"github.com/campusiq/opsconsole/internal/service/lock"
	"github.com/campusiq/opsconsole/internal/service/logger"
	"github.com/campusiq/opsconsole/internal/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "opsconsole",
	})
	appLog.WithField("environment", cfg.Server.Environment).Info("application starting")

	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		appLog.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		appLog.WithError(err).Fatal("failed to ping database")
	}
	appLog.Info("database connection established")

	reg := registry.Campus()

	// Plan locking: Redis when configured, in-process otherwise.
	var locker ports.PlanLocker
	if cfg.Redis.Enabled {
		redisLocker, err := lock.NewRedisLocker(cfg.GetRedisURL(), appLog)
		if err != nil {
			appLog.WithError(err).Fatal("failed to connect to Redis")
		}
		locker = redisLocker
		appLog.Info("redis plan locking enabled")
	} else {
		locker = lock.NewMemoryLocker()
		appLog.Warn("using in-process plan locking; run a single instance")
	}

	// Intent extraction: inference primary unless mocked, keyword fallback
	// always present.
	fallback := intent.NewKeywordExtractor(reg)
	var primary ports.IntentExtractor
	if !cfg.AI.MockMode {
		primary = ai.NewOpenAIExtractor(ai.Config{
			APIKey:    cfg.AI.APIKey,
			BaseURL:   cfg.AI.BaseURL,
			Model:     cfg.AI.Model,
			TimeoutMs: cfg.AI.TimeoutMs,
		})
	}
	chain := intent.NewChain(primary, fallback, time.Duration(cfg.AI.TimeoutMs)*time.Millisecond, appLog)
	normalizer := intent.NewNormalizer(chain, reg, cfg.Ops.ConfidenceThreshold)

	entities := persistence.NewPostgresEntityStore(db, reg)
	plans := persistence.NewPostgresPlanRepository(db)
	executions := persistence.NewPostgresExecutionRepository(db)
	auditLog := persistence.NewPostgresAuditLog(db)
	txRunner := persistence.NewPostgresTxRunner(db, reg)
	scopes := persistence.NewPostgresScopeResolver(db)

	classifier := risk.NewClassifier(cfg.Ops.HighImpactThreshold)
	gate := permission.NewGate(permission.DefaultMatrix(reg.Names()))
	previews := usecase.NewPreviewBuilder(entities, cfg.Ops.MaxPreviewRows)
	executor := usecase.NewExecutor(txRunner, plans, locker, auditLog, appLog, cfg.Ops.LockTTL)
	rollbacker := usecase.NewRollbacker(txRunner, plans, executions, locker, auditLog, appLog, cfg.Ops.LockTTL)

	console := usecase.NewConsole(usecase.ConsoleDeps{
		Normalizer:   normalizer,
		Registry:     reg,
		Gate:         gate,
		Scopes:       scopes,
		Classifier:   classifier,
		Previews:     previews,
		Executor:     executor,
		Rollbacker:   rollbacker,
		Plans:        plans,
		Entities:     entities,
		Audit:        auditLog,
		SecondFactor: approval.NewBcryptVerifier(cfg.Ops.ApprovalCodeHash),
		SeniorRoles:  cfg.Ops.SeniorRoles,
		Log:          appLog,
	})

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JWTSecret:    cfg.Security.JWTSecret,
	}, console, appLog)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutdown signal received")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("graceful shutdown failed")
	}
	appLog.Info("application stopped")
}
