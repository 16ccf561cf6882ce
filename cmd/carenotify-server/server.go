package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/config"
	"github.com/ehr/carenotify/internal/domain/notification"
	"github.com/ehr/carenotify/internal/domain/reminder"
	"github.com/ehr/carenotify/internal/platform/auth"
	"github.com/ehr/carenotify/internal/platform/db"
	"github.com/ehr/carenotify/internal/platform/middleware"
	"github.com/ehr/carenotify/internal/platform/reminderjob"
	"github.com/ehr/carenotify/internal/platform/telemetry"
	"github.com/ehr/carenotify/internal/platform/websocket"
)

const version = "0.1.0"

type services struct {
	metrics       *telemetry.Metrics
	registry      *websocket.Registry
	notifications *notification.Service
	reminders     *reminder.Service
	job           *reminderjob.Job
}

// newServices builds the domain services. A nil metrics records nothing.
func newServices(cfg *config.Config, d *deps, metrics *telemetry.Metrics, logger zerolog.Logger) *services {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}

	registry := websocket.NewRegistry(logger, metrics)
	notifySvc := notification.NewService(d.notifications, registry, d.directory, logger, metrics)
	job := reminderjob.NewJob(d.schedules, notifySvc, d.directory, d.mailer, logger,
		reminderjob.WithLedger(d.ledger),
		reminderjob.WithMetrics(metrics),
		reminderjob.WithLocation(loc),
	)
	return &services{
		metrics:       metrics,
		registry:      registry,
		notifications: notifySvc,
		reminders:     reminder.NewService(d.schedules, d.directory, loc),
		job:           job,
	}
}

func newEcho(cfg *config.Config, d *deps, svc *services, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(svc.metrics.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevUserHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":        "ok",
			"version":       version,
			"live_channels": svc.registry.Count(),
		})
	})
	e.GET("/health/db", db.HealthHandler(d.driver, d.health))
	e.GET("/metrics", svc.metrics.Handler())

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: cfg.SigningKey(),
	}

	// The socket authenticates inside the protocol, not with a header.
	var verifier websocket.TokenVerifier
	if !cfg.IsDev() {
		verifier = jwtCfg
	}
	websocket.NewHandler(svc.registry, verifier, logger).RegisterRoutes(e.Group(""))

	apiV1 := e.Group("/api/v1", middleware.BodyLimit(cfg.BodyLimit))
	if cfg.IsDev() {
		logger.Warn().Msg("development mode: DevAuthMiddleware grants admin to every request")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}

	notification.NewHandler(svc.notifications, logger).RegisterRoutes(apiV1)
	reminder.NewHandler(svc.reminders, d.directory).RegisterRoutes(apiV1)
	reminderjob.NewHandler(svc.job).RegisterRoutes(apiV1)

	return e
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	d, err := openDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open dependencies")
		return err
	}
	defer d.Close()

	svc := newServices(cfg, d, telemetry.New(), logger)
	e := newEcho(cfg, d, svc, logger)

	var scheduler *reminderjob.Scheduler
	if cfg.SweepEnabled {
		scheduler, err = reminderjob.NewScheduler(svc.job, cfg.SweepSchedule, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
	} else {
		logger.Info().Msg("reminder sweep disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", d.driver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
