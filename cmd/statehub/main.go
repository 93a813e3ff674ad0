// Command statehub runs the real-time multi-source state synchronization
// hub: the single-executor broadcast engine, its WebSocket transport, and
// the HTTP surface (health, metrics, admin REST, map-tile proxy) in front
// of it.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/streamspace/statehub/internal/audit"
	"github.com/streamspace/statehub/internal/config"
	"github.com/streamspace/statehub/internal/engine"
	"github.com/streamspace/statehub/internal/httpapi"
	"github.com/streamspace/statehub/internal/hub"
	"github.com/streamspace/statehub/internal/ingest"
	"github.com/streamspace/statehub/internal/logger"
	"github.com/streamspace/statehub/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()
	log.Info().Msg("starting statehub")

	now := func() float64 { return float64(time.Now().UnixNano()) / 1e9 }

	eng := engine.New(engine.Config{
		PlayerTimeoutSec:             cfg.PlayerTimeoutSec,
		EntityTimeoutSec:             cfg.EntityTimeoutSec,
		WaypointTimeoutSec:           cfg.WaypointTimeoutSec,
		StickinessThresholdSec:       cfg.SourceSwitchThresholdSec,
		DigestIntervalSec:            cfg.DigestIntervalSec,
		RefreshReqCooldownSec:        cfg.RefreshReqCooldownSec,
		RefreshReqLeadSec:            cfg.RefreshReqLeadSec,
		TabReportTimeoutSec:          cfg.TabReportTimeoutSec,
		EnableSameServerFilter:       cfg.EnableSameServerFilter,
		OnlineOwnerTimeoutMultiplier: cfg.OnlineOwnerTimeoutMultiplier,
		ClampWaypointTTL:             config.WaypointTTLRange,
		ClampQuickMarkCap:            config.QuickMarkCapRange,
	}, nil, now) // sender attached below, once the hub exists

	decoder := ingest.New(ingest.Config{
		ClampWaypointTTL:  config.WaypointTTLRange,
		ClampQuickMarkCap: config.QuickMarkCapRange,
	}, now)

	h := hub.New(eng, decoder)
	eng.SetSender(h)

	stop := make(chan struct{})
	go eng.Run(stop)

	heartbeat := cron.New(cron.WithSeconds())
	if _, err := heartbeat.AddFunc("@every 250ms", func() {
		eng.Submit(engine.TickCmd{})
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule broadcast heartbeat")
	}
	if _, err := heartbeat.AddFunc("@every 30s", func() {
		log.Info().Msg("housekeeping tick")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule housekeeping cron")
	}
	heartbeat.Start()
	defer heartbeat.Stop()

	var auditLog *audit.Log
	auditLog, err = audit.Open(audit.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		Enabled:  cfg.AuditLogEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("audit log unavailable, continuing without it")
		auditLog, _ = audit.Open(audit.Config{Enabled: false})
	}
	defer auditLog.Close()

	limiter, err := ratelimit.New(ratelimit.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		Enabled:  cfg.RedisEnabled,
	}, 60, time.Minute)
	if err != nil {
		log.Warn().Err(err).Msg("admin rate limiter unavailable, continuing without it")
		limiter, _ = ratelimit.New(ratelimit.Config{Enabled: false}, 60, time.Minute)
	}
	defer limiter.Close()

	var adminAuth *httpapi.AdminAuth
	if cfg.AdminBearerToken != "" {
		jwtSecret := cfg.AdminJWTSecret
		if jwtSecret == "" {
			log.Warn().Msg("ADMIN_JWT_SECRET not set, deriving one from ADMIN_BEARER_TOKEN")
			jwtSecret = cfg.AdminBearerToken + ":jwt"
		}
		adminAuth, err = httpapi.NewAdminAuth(cfg.AdminBearerToken, jwtSecret, time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize admin auth")
		}
	} else {
		log.Warn().Msg("ADMIN_BEARER_TOKEN not set, admin surface is unauthenticated")
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Engine:      eng,
		Hub:         h,
		Auth:        adminAuth,
		AuditLog:    auditLog,
		RateLimiter: limiter,
		MapTileURL:  cfg.MapTileUpstream,
		StartedAt:   time.Now(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server forced to shutdown")
	}
}
