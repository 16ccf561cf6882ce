package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/carenotify/internal/config"
	"github.com/ehr/carenotify/internal/domain/directory"
	"github.com/ehr/carenotify/internal/domain/notification"
	"github.com/ehr/carenotify/internal/domain/reminder"
	"github.com/ehr/carenotify/internal/platform/db"
	"github.com/ehr/carenotify/internal/platform/email"
	"github.com/ehr/carenotify/internal/platform/reminderjob"
	"github.com/ehr/carenotify/internal/platform/sqlite"
)

// deps are the external resources chosen by configuration.
type deps struct {
	driver        string
	notifications notification.Repository
	schedules     reminder.Repository
	directory     directory.Directory
	health        db.Pinger
	ledger        reminderjob.Ledger
	mailer        email.Provider

	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	d := &deps{driver: cfg.StoreDriver}

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, sqlite.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { store.Close() })
		d.notifications = store.Notifications()
		d.schedules = store.Schedules()
		d.directory = store.Directory()
		d.health = store
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.notifications = notification.NewRepoPG(pool)
		d.schedules = reminder.NewRepoPG(pool)
		d.directory = directory.NewDirectoryPG(pool)
		d.health = pool
		logger.Info().Msg("connected to database")
	}

	ledger, err := newLedger(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.ledger = ledger
	if rl, ok := ledger.(*reminderjob.RedisLedger); ok {
		d.closers = append(d.closers, func() { rl.Close() })
	}

	d.mailer = newMailer(cfg, logger)
	return d, nil
}

// newLedger shares dispatch claims through Redis when REDIS_URL is set, so
// several replicas sweeping the same database do not duplicate reminders.
func newLedger(cfg *config.Config, logger zerolog.Logger) (reminderjob.Ledger, error) {
	if cfg.RedisURL == "" {
		return reminderjob.NewMemoryLedger(reminderjob.DefaultClaimTTL), nil
	}
	l, err := reminderjob.NewRedisLedger(cfg.RedisURL, reminderjob.DefaultClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("reminder ledger: %w", err)
	}
	logger.Info().Msg("using redis reminder ledger")
	return l, nil
}

func newMailer(cfg *config.Config, logger zerolog.Logger) email.Provider {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("SMTP_HOST not set; reminder e-mails are disabled")
		return email.Disabled()
	}
	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return email.NewSMTPProvider(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		Timeout:  timeout,
	})
}
