package main

import (
	"context"
	"log"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/portal/api/handler"
	"github.com/fastygo/portal/api/shell"
	"github.com/fastygo/portal/internal/config"
	"github.com/fastygo/portal/internal/infrastructure/backend"
	"github.com/fastygo/portal/internal/infrastructure/buffer"
	"github.com/fastygo/portal/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/portal/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/portal/internal/infrastructure/redis"
	"github.com/fastygo/portal/internal/metrics"
	"github.com/fastygo/portal/internal/middleware"
	"github.com/fastygo/portal/internal/router"
	"github.com/fastygo/portal/internal/services"
	"github.com/fastygo/portal/internal/services/lifecycle"
	"github.com/fastygo/portal/pkg/httpcontext"
	"github.com/fastygo/portal/pkg/logger"
	"github.com/fastygo/portal/repository"
	boltRepo "github.com/fastygo/portal/repository/boltdb"
	"github.com/fastygo/portal/repository/postgres"
	redisRepo "github.com/fastygo/portal/repository/redis"
	authUC "github.com/fastygo/portal/usecase/auth"
	"github.com/fastygo/portal/usecase/navigation"
	"github.com/fastygo/portal/usecase/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Error("migrations failed, session events will be buffered", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres configuration invalid", zap.Error(err))
	}
	sqlDB := pgInfra.OpenDB(pool)
	manager.Register("postgres", func(ctx context.Context) error {
		err := sqlDB.Close()
		pool.Close()
		return err
	})

	var (
		sessionRepo repository.SessionRepository
		redisClient goRedis.UniversalClient
	)
	switch cfg.Session.Backend {
	case config.SessionBackendBolt:
		repo, err := boltRepo.Open(cfg.Session.BoltPath)
		if err != nil {
			zapLogger.Fatal("failed to open session store", zap.Error(err))
		}
		manager.Register("sessions", func(ctx context.Context) error {
			return repo.Close()
		})
		sessionRepo = repo
	default:
		client, err := redisInfra.NewClient(cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return client.Close()
		})
		redisClient = client
		sessionRepo = redisRepo.NewSessionRepository(client, cfg.Session.TTL)
	}
	zapLogger.Info("session store ready", zap.String("backend", cfg.Session.Backend))

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "session_events")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(pool, redisClient, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	auditProcessor := services.NewAuditProcessor(
		bufferStore,
		mon,
		postgres.NewAuditRepository(sqlDB),
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  cfg.Buffer.Retention,
		},
	)
	auditProcessor.Start()
	manager.Register("audit_processor", func(ctx context.Context) error {
		auditProcessor.Stop(ctx)
		return nil
	})
	audit := services.NewAuditRecorder(auditProcessor, zapLogger)

	m := metrics.New()
	sessions := session.NewManager(sessionRepo, zapLogger)
	watchdog := navigation.NewWatchdog(cfg.Session.NotFoundLogout, nil, zapLogger)
	manager.Register("watchdog", func(ctx context.Context) error {
		watchdog.Stop()
		return nil
	})

	exchanger := backend.New(cfg.Backend, nil, zapLogger)
	authUseCase := authUC.New(exchanger, sessions, audit, m, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, sessions, ctxAdapter, zapLogger),
		Session: apiHandler.NewSessionHandler(ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	for _, sh := range shell.Shells() {
		handlers.Shells = append(handlers.Shells, apiHandler.NewShellHandler(sh, authUseCase, watchdog, ctxAdapter, zapLogger))
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = m.Handler()
	}

	r := router.New(handlers, router.Middlewares{
		Identity: middleware.NewClientIdentity(cfg.Cookie, zapLogger),
		Gate:     middleware.NewGate(sessions, watchdog, audit, m, ctxAdapter, zapLogger),
		Limiter:  middleware.NewRateLimiter(cfg.Login.RatePerSecond, cfg.Login.Burst, cfg.HTTP.TrustForwardedFor, zapLogger),
	})

	server := &fasthttp.Server{
		Handler:      m.Instrument(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
