package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/cascade"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/config"
	amqpdelivery "github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/delivery/amqp"
	handler "github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/delivery/http"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/impact"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/integrity"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/metrics"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/notify"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/pool"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/memory"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/postgres"
	redisrepo "github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/repository/redis"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/scheduler"
	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/usecase"
)

type stores struct {
	students  repository.StudentRepository
	relations repository.RelationRepository
	audits    repository.AuditRepository
	jobs      repository.JobRepository
	stats     usecase.StoreStats
	checks    map[string]handler.HealthCheck
	close     func()
}

func newLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func openMemory(cfg *config.Config, logger *zap.Logger) *stores {
	store := memory.NewStore()
	if cfg.Store.SeedDemo {
		store.SeedDemo()
		logger.Info("Seeded demo data")
	}
	return &stores{
		students:  store,
		relations: store,
		audits:    memory.NewAuditRepository(),
		jobs:      memory.NewJobRepository(),
		stats: func() map[string]any {
			return map[string]any{"driver": config.DriverMemory}
		},
		checks: map[string]handler.HealthCheck{},
		close:  func() {},
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, err
		}
		logger.Info("Schema migrated")
	}

	return &stores{
		students:  postgres.NewPostgresStudentRepository(dbPool),
		relations: postgres.NewPostgresRelationRepository(dbPool),
		audits:    postgres.NewPostgresAuditRepository(dbPool),
		jobs:      postgres.NewPostgresJobRepository(dbPool),
		stats: func() map[string]any {
			st := dbPool.Stat()
			return map[string]any{
				"driver":          config.DriverPostgres,
				"totalConns":      st.TotalConns(),
				"idleConns":       st.IdleConns(),
				"acquiredConns":   st.AcquiredConns(),
				"acquireCount":    st.AcquireCount(),
				"acquireDuration": st.AcquireDuration().String(),
			}
		},
		checks: map[string]handler.HealthCheck{"postgres": dbPool.Ping},
		close:  dbPool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting cascade service", zap.String("store", cfg.Store.Driver))

	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var st *stores
	if cfg.Store.Driver == config.DriverMemory {
		st = openMemory(cfg, logger)
	} else {
		st, err = openPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("Failed to open store", zap.Error(err))
		}
	}
	defer st.close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Notifications
	sink := notify.NewSink(cfg.Notify.BufferSize, m, logger)

	// Entity locks: Redis when configured so several instances share them.
	var locks repository.EntityLockStore = memory.NewLockStore()
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		rdb = redis.NewClient(redisOpts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		logger.Info("Connected to Redis")

		locks = redisrepo.NewRedisLockStore(rdb, cfg.Redis.LockTTL)
		sink.AddTransport(notify.NewRedisTransport(rdb, notify.DefaultRedisChannel))
		st.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Core
	sched := scheduler.New(scheduler.Config{
		Workers:    cfg.Worker.PoolSize,
		BatchLimit: cfg.Cascade.BatchLimit,
		Timeout:    cfg.Worker.JobTimeout,
		Retention:  cfg.Worker.Retention,
	}, st.jobs, locks, sink, m, logger)

	engine := cascade.NewEngine(st.students, st.relations, st.audits, locks, sink, m, cfg.Cascade.BatchLimit, logger)
	auditor := integrity.NewAuditor(st.students, st.relations, m, logger)
	analyzer := impact.NewAnalyzer(st.relations, domain.Thresholds{
		Moderate: cfg.Cascade.ModerateThreshold,
		High:     cfg.Cascade.HighThreshold,
	}, logger)

	sched.Register(domain.JobCascadeDeletion, cascade.DeletionHandler(engine))
	sched.Register(domain.JobBatchCascadeDeletion, cascade.BatchDeletionHandler(engine))
	sched.Register(domain.JobOrphanedReferenceCleanup, integrity.CleanupHandler(auditor))
	sched.Register(domain.JobIntegrityValidation, integrity.ValidationHandler(auditor))

	recovered, err := sched.Recover(ctx)
	if err != nil {
		logger.Error("Failed to recover unfinished jobs", zap.Error(err))
	} else if recovered > 0 {
		logger.Warn("Marked unfinished jobs as interrupted", zap.Int("count", recovered))
	}

	// Use cases
	deleteUC := usecase.NewQueueDeletionUsecase(sched, analyzer, st.students, sink, logger)
	batchUC := usecase.NewQueueBatchUsecase(sched, analyzer, sink, logger)
	getJobUC := usecase.NewGetJobUsecase(sched, logger)
	cancelUC := usecase.NewCancelJobUsecase(sched)
	auditUC := usecase.NewAuditHistoryUsecase(st.audits)
	restoreUC := usecase.NewRestoreUsecase(engine, logger)
	maintenanceUC := usecase.NewMaintenanceUsecase(sched, logger)
	statusUC := usecase.NewSystemStatusUsecase(sched, sink, st.stats)

	hub := notify.NewHub(func() any { return statusUC.Status() }, logger)
	sink.AddTransport(hub)

	// RabbitMQ: event fan-out and maintenance triggers.
	if cfg.RabbitMQ.URL != "" {
		transport, err := notify.NewRabbitMQTransport(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ transport", zap.Error(err))
		}
		defer transport.Close()
		sink.AddTransport(transport)

		consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, maintenanceUC, logger)
		if err != nil {
			logger.Fatal("Failed to initialize maintenance consumer", zap.Error(err))
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("Maintenance consumer stopped", zap.Error(err))
			}
		}()
		logger.Info("Connected to RabbitMQ")
	}

	go sink.Run(ctx)

	workers := pool.NewWorkerPool(cfg.Worker.PoolSize, sched, m, logger)
	workers.Start(ctx)

	// Redis locks expire; keep the ones held by live jobs until workers drain.
	lockCtx, stopKeepAlive := context.WithCancel(context.Background())
	if rdb != nil {
		go sched.KeepLocks(lockCtx, lockRefreshInterval(cfg.Redis.LockTTL))
	}

	router := handler.NewRouter(ctx, &handler.RouterDeps{
		DeleteUC:        deleteUC,
		BatchUC:         batchUC,
		GetJobUC:        getJobUC,
		CancelUC:        cancelUC,
		AuditUC:         auditUC,
		RestoreUC:       restoreUC,
		MaintenanceUC:   maintenanceUC,
		StatusUC:        statusUC,
		Hub:             hub,
		HealthChecks:    st.checks,
		Gatherer:        registry,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		BodyLimit:       cfg.Server.BodyLimit,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down cascade service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Workers finish their current job; nothing new is dequeued.
	cancel()
	workers.Stop()
	stopKeepAlive()

	logger.Info("Cascade service stopped")
}

// lockRefreshInterval renews a lock three times per TTL.
func lockRefreshInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return ttl / 3
}
