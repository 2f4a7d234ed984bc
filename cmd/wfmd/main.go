package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/api"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/audit"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/auth"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/config"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/middleware"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/observability"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/rbac"
	"github.com/pradumya004/Getmax-wfm-sub009/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := storage.NewRedisClient(cfg.Redis)
	if err != nil {
		// The evaluator runs registry-direct without a cache store; refuse
		// startup only for the database.
		logger.WithError(err).Warn("cache store unavailable, starting in degraded mode")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NopMetrics()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	registry := rbac.NewRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return err
	}

	cache, err := rbac.NewCache(registry, redisClient, cfg.Cache.TTL, cfg.Cache.L1Size, metrics, logger)
	if err != nil {
		return err
	}
	registry.OnRoleChanged = cache.Invalidate

	quota := rbac.NewQuotaCounter(redisClient, metrics, logger)
	evaluator := rbac.NewEvaluator(cache, quota, metrics)

	auditStore, err := audit.NewStore(db)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(auditStore, audit.RecorderConfig{
		QueueSize:      cfg.Audit.QueueSize,
		MaxRetries:     cfg.Audit.MaxRetries,
		RetryBackoff:   cfg.Audit.RetryBackoff,
		EnqueueTimeout: cfg.Audit.EnqueueTimeout,
	}, metrics, logger, nil)
	defer recorder.Close()

	sessions, err := auth.NewSessionManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	guard := rbac.NewGuard(evaluator, recorder, logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.NewAuthMiddleware(sessions, false).Handler)

	api.NewRoleHandlers(registry, recorder, logger).RegisterRoutes(router, guard)
	api.NewAuditHandlers(auditStore, logger).RegisterRoutes(router, guard)

	appServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(promRegistry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", appServer.Addr).Info("starting app server")
		if err := appServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := appServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("app server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return group.Wait()
}
