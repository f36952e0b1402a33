package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"finsite/internal/core/ports"
	"finsite/internal/core/services"
	httphandlers "finsite/internal/handlers/http"
	"finsite/internal/infrastructure/alerting"
	backupjobs "finsite/internal/infrastructure/backup"
	"finsite/internal/infrastructure/distributed"
	"finsite/internal/infrastructure/middleware"
	"finsite/internal/infrastructure/monitoring"
	"finsite/internal/infrastructure/reliability"
	"finsite/internal/infrastructure/repositories"
	"finsite/pkg/backup"
	"finsite/pkg/circuitbreaker"
	"finsite/pkg/config"
	distlock "finsite/pkg/distributed"
	"finsite/pkg/logger"
	"finsite/pkg/retry"
	"finsite/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	retentionInterval = time.Hour
	pageCacheTTL      = 5 * time.Minute
	readyTimeout      = 2 * time.Second
	retentionLockKey  = "finsite:lock:retention"
	retentionLockTTL  = 5 * time.Minute
	backupVersion     = "1"
)

type app struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	router    *gin.Engine
	repos     *repositories.RepositoryFactory
	storage   *reliability.StorageWrapper
	hub       *alerting.Hub
	bus       *distributed.AlertBus
	backups   *backupjobs.Scheduler
	metrics   *monitoring.PrometheusCollector
	health    *monitoring.HealthChecker
	startedAt time.Time
}

func newApp(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *app {
	log := zapLogger.Sugar()
	a := &app{
		cfg:       cfg,
		log:       log,
		metrics:   monitoring.NewPrometheusCollector(prometheus.NewRegistry()),
		health:    monitoring.NewHealthChecker(),
		startedAt: time.Now(),
	}

	// Storage
	a.repos = repositories.NewRepositoryFactory(ctx, cfg, zapLogger)
	repos := a.repos.Create()
	a.storage = reliability.NewStorageWrapper(reliability.StorageDeps{
		Records: repos.Records,
		Alerts:  repos.Alerts,
		Leads:   repos.Leads,
		Health:  repos.Health,
		Backend: a.repos.Backend(),
		Metrics: a.metrics,
		Logger:  zapLogger,
	}, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
	}, circuitbreaker.Config{
		FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
		Timeout:             cfg.CircuitBreaker.Timeout,
		MaxRequestsHalfOpen: 1,
	})
	a.health.AddStorageCheck("storage", a.storage, readyTimeout)

	if cfg.Backup.Enabled {
		a.setupBackups(ctx)
	}

	// Live alerts
	a.hub = alerting.NewHub(alerting.Config{
		PingInterval:   cfg.Alerts.PingInterval,
		PongTimeout:    cfg.Alerts.PongTimeout,
		MaxClients:     cfg.Alerts.MaxClients,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log)
	a.hub.OnClientsChanged(a.metrics.SetAlertStreamClients)
	a.bus = distributed.NewAlertBus(a.repos.RedisClient(), utils.GenerateID("site"), a.hub, log)

	// Services
	ingestion := services.NewIngestionService(services.IngestionDeps{
		Records:         a.storage,
		Alerts:          a.storage,
		Publisher:       a.bus,
		Metrics:         a.metrics,
		Logger:          zapLogger,
		MaxBatchRecords: cfg.RUM.MaxBatchRecords,
	})
	analytics := services.NewAnalyticsService(a.storage, a.storage, cfg.RUM.SummaryCacheTTL, zapLogger)
	leads := services.NewLeadService(a.storage, a.metrics, zapLogger)
	auth := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	a.router = a.buildRouter(ingestion, analytics, leads, auth, zapLogger)
	return a
}

// setupBackups creates the snapshot scheduler and reloads the newest lead
// snapshot, which matters on the memory backend where leads die with the process.
func (a *app) setupBackups(ctx context.Context) {
	storage, err := backup.NewFileStorage(a.cfg.Backup.Dir)
	if err != nil {
		a.log.Warnw("backups disabled", "dir", a.cfg.Backup.Dir, "error", err)
		return
	}
	svc := backup.NewService(storage, backupVersion)
	a.backups = backupjobs.NewScheduler(svc, a.storage, a.storage, a.storage, backupjobs.Config{
		Interval: a.cfg.Backup.Interval,
		Keep:     a.cfg.Backup.Keep,
	}, a.log)

	res, err := backupjobs.NewRestoreService(svc, a.storage, a.log).RestoreLeads(ctx, "")
	if err != nil {
		a.log.Warnw("failed to restore leads from snapshot", "error", err)
		return
	}
	if res.BackupName != "" {
		a.log.Infow("leads restored from snapshot", "backup_name", res.BackupName, "restored", res.Restored)
	}
}

func (a *app) buildRouter(
	ingestion ports.IngestionService,
	analytics ports.AnalyticsService,
	leads ports.LeadService,
	auth services.AuthService,
	zapLogger *zap.Logger,
) *gin.Engine {
	cfg := a.cfg
	if !a.log.Desugar().Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// X-Forwarded-For is only honoured from configured proxies; c.ClientIP
	// keys rate limits and leads.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		a.log.Warnw("invalid trusted proxies, trusting none", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		middleware.RecoveryMiddleware(a.log),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger), a.metrics),
		middleware.NewSecurityHeadersMiddleware(cfg, a.log,
			middleware.WithFallbackRecorder(a.metrics.RecordHeaderFallback),
		),
		middleware.ErrorHandlerMiddleware(a.log),
	)

	// Static assets and pages
	router.Static(cfg.Site.StaticPrefix, cfg.Site.StaticDir)
	router.StaticFile("/favicon.ico", filepath.Join(cfg.Site.StaticDir, "favicon.ico"))

	cacheTTL := time.Duration(0)
	if cfg.IsProduction() {
		cacheTTL = pageCacheTTL
	}
	httphandlers.NewPageHandler(cfg.Site.PagesDir, cacheTTL, a.log).SetupRoutes(router)

	// API
	limiter := middleware.NewHTTPRateLimitMiddleware(cfg, a.metrics.RecordRateLimited)
	adminOnly := middleware.RequireScope(auth, cfg.Auth.Enabled, services.ScopeAnalyticsRead)

	api := router.Group("/api")
	httphandlers.NewRUMHandler(ingestion, analytics, httphandlers.RUMHandlerConfig{
		StaticExport: cfg.Site.StaticExport,
		MaxBodyBytes: cfg.RUM.MaxBodyBytes,
	}, a.log).SetupRoutes(api, []gin.HandlerFunc{limiter}, []gin.HandlerFunc{adminOnly})
	httphandlers.NewLeadHandler(leads).SetupRoutes(api, limiter)

	api.GET("/rum/alerts/stream",
		middleware.NewConnectionRateLimiter(cfg, a.metrics.RecordRateLimited),
		adminOnly,
		gin.WrapF(a.hub.HandleWebSocket),
	)

	// Operations
	router.GET("/health", a.handleHealth)
	router.GET("/ready", a.handleReady)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(a.metrics.Handler()))
		a.log.Infow("Prometheus metrics enabled", "path", cfg.Monitoring.MetricsPath)
	}

	return router
}

func (a *app) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    monitoring.StatusHealthy,
		"timestamp": time.Now(),
		"uptime":    time.Since(a.startedAt).String(),
	})
}

func (a *app) handleReady(c *gin.Context) {
	status := a.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status.Status,
		"timestamp": status.Timestamp,
		"checks":    status.Checks,
		"storage":   a.repos.Backend(),
		"breaker":   a.storage.State().String(),
	})
}

// runRetention prunes records and alerts older than the retention window
// until ctx is done.
func (a *app) runRetention(ctx context.Context) error {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		a.prune(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// prune runs under a Redis lock when instances share storage so only one
// of them sweeps per interval.
func (a *app) prune(ctx context.Context) {
	client := a.repos.RedisClient()
	if client == nil {
		a.pruneOnce(ctx)
		return
	}

	lock := distlock.NewLock(client, retentionLockKey, retentionLockTTL)
	ran, err := distlock.WithLock(ctx, lock, func(ctx context.Context) error {
		a.pruneOnce(ctx)
		return nil
	})
	if err != nil {
		a.log.Warnw("retention lock failed", "key", lock.Key(), "error", err)
		return
	}
	if !ran {
		a.log.Debugw("retention prune held by another instance", "key", lock.Key())
	}
}

func (a *app) pruneOnce(ctx context.Context) {
	cutoff := time.Now().Add(-a.cfg.RUM.Retention)

	if a.backups != nil && a.cfg.Backup.ArchiveExpired {
		if _, err := a.backups.ArchiveExpired(ctx, cutoff); err != nil {
			a.log.Warnw("skipping retention prune, archive failed", "error", err)
			return
		}
	}

	records, err := a.storage.Prune(ctx, cutoff)
	if err != nil {
		a.log.Warnw("failed to prune RUM records", "error", err)
	}
	alerts, err := a.storage.PruneAlerts(ctx, cutoff)
	if err != nil {
		a.log.Warnw("failed to prune alerts", "error", err)
	}
	if records > 0 || alerts > 0 {
		a.log.Infow("retention prune", "records", records, "alerts", alerts, "cutoff", cutoff)
	}
}

func (a *app) close(ctx context.Context) {
	a.hub.Close()
	if err := a.repos.Close(ctx); err != nil {
		a.log.Errorw("error closing repositories", "error", err)
	}
}
