// Package app assembles the loan desk services from a configuration and
// runs them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"loan-desk-backend/config"
	"loan-desk-backend/internal/api"
	"loan-desk-backend/internal/db"
	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/notification"
	"loan-desk-backend/internal/presence"
	"loan-desk-backend/internal/roster"
	"loan-desk-backend/internal/scheduler"
	"loan-desk-backend/internal/store"
	"loan-desk-backend/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// Backend is a document store that can also probe its location.
type Backend interface {
	store.Store
	store.Pinger
}

// App holds the wired services.
type App struct {
	cfg *config.Config

	Store         Backend
	Recorder      *metrics.PrometheusRecorder
	Broker        *events.Broker
	Monitor       *scheduler.NetworkMonitor
	Loans         *loan.Service
	Notifications *notification.Engine
	Subscriptions *notification.Subscriptions
	Pool          *notification.WorkerPool
	Presence      *presence.Tracker
	Roster        *roster.Syncer
	// Scheduler is set by Start.
	Scheduler *scheduler.Scheduler

	closers []func()
	closed  bool
}

// New builds every service from cfg. Nothing is started.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, Recorder: metrics.NewPrometheusRecorder(nil), Broker: events.NewBroker()}

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.Monitor = scheduler.NewNetworkMonitor(st, a.Broker, cfg.Scheduler.RestoreCooldown, a.Recorder)

	a.Loans = loan.NewService(st, loan.Options{
		Defaults: model.LoanSettings{
			MaxLoanDays:       cfg.Loans.MaxLoanDays,
			MaxExtensions:     cfg.Loans.MaxExtensions,
			ReminderDays:      cfg.Loans.ReminderDays,
			OverdueDays:       cfg.Loans.OverdueDays,
			AutoNotifications: !cfg.Loans.AutoNotifyOff,
		},
		HistoryMaxSize: cfg.Loans.HistoryMaxSize,
	})
	a.Subscriptions = notification.NewSubscriptions(st)

	opts := notification.Options{MaxStored: cfg.Notifications.MaxStored, Recorder: a.Recorder}
	if wp := a.webpushOptions(); wp != nil {
		a.Pool = notification.NewWorkerPool(cfg.WorkerPool.Size, a.Subscriptions, wp)
		opts.Dispatcher = a.Pool
	} else {
		slog.Info("VAPID keys are not configured, push notifications disabled")
	}
	a.Notifications = notification.NewEngine(st, a.Loans, opts)
	a.Loans.SetNotifier(a.Notifications)

	a.Presence = presence.NewTracker(st, cfg.Presence.TTL, a.Recorder)
	if cfg.Roster.Path != "" {
		a.Roster = roster.NewSyncer(cfg.Roster.Path, cfg.Roster.Sheet, st)
	}

	return a, nil
}

func (a *App) openStore() (Backend, error) {
	switch a.cfg.Storage.Backend {
	case "database":
		gormDB, err := db.Init(&a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			a.closers = append(a.closers, func() { sqlDB.Close() })
		}
		slog.Info("Document database initialized", slog.String("driver", a.cfg.Database.Driver))
		return store.NewGormStore(gormDB, a.Recorder), nil
	default:
		s, err := store.NewSharedStore(store.Options{
			SharedDir: a.cfg.Storage.SharedDir,
			CacheDir:  a.cfg.Storage.CacheDir,
			Timeout:   a.cfg.Storage.Timeout,
			Recorder:  a.Recorder,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Shared store initialized", logfields.Path(a.cfg.Storage.SharedDir),
			slog.String("cache_dir", a.cfg.Storage.CacheDir))
		return s, nil
	}
}

func (a *App) webpushOptions() *webpush.Options {
	p := a.cfg.Push
	if p.PublicKey == "" || p.PrivateKey == "" {
		return nil
	}
	return &webpush.Options{
		VAPIDPublicKey:  p.PublicKey,
		VAPIDPrivateKey: p.PrivateKey,
		Subscriber:      p.Subject,
		TTL:             p.TTL,
	}
}

func (a *App) jobs() scheduler.Jobs {
	j := scheduler.Jobs{
		Monitor:       a.Monitor,
		Loans:         a.Loans,
		Notifications: a.Notifications,
		Presence:      a.Presence,
		Notifier:      a.Broker,
		Technician:    model.Technician{ID: a.cfg.Presence.TechnicianID, Name: a.cfg.Presence.TechnicianName},
		Retention:     a.cfg.Notifications.Retention,
	}
	if a.Roster != nil {
		j.Roster = a.Roster
	}
	return j
}

// Deps returns the services exposed over HTTP.
func (a *App) Deps() api.Deps {
	deps := api.Deps{
		Store:         a.Store,
		Loans:         a.Loans,
		Notifications: a.Notifications,
		Subscriptions: a.Subscriptions,
		Presence:      a.Presence,
		Network:       a.Monitor,
		Broker:        a.Broker,
	}
	deps.WebPush = a.webpushOptions()
	return deps
}

// Handler builds the HTTP router. Its response cache follows ctx.
func (a *App) Handler(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, a.Deps(), api.RouterOptions{
		RateLimitPerSec: a.cfg.Server.RateLimitPerSec,
		CacheTTL:        time.Duration(a.cfg.Server.CacheTTLSeconds) * time.Second,
		Metrics:         a.Recorder.Handler(),
	})
}

// Prepare repairs missing shared resources. An unreachable shared location
// only marks the monitor offline.
func (a *App) Prepare(ctx context.Context) {
	shared, ok := a.Store.(*store.SharedStore)
	if !ok {
		return
	}
	repaired, err := shared.EnsureDefaults(ctx, store.DefaultDocuments())
	if err != nil {
		slog.Warn("Shared location not ready, starting from the local mirror", logfields.Error(err))
		a.Monitor.Observe(ctx, false, err)
		return
	}
	if len(repaired) > 0 {
		slog.Info("Recreated shared resources", slog.Any("resources", repaired))
	}
}

// Start launches the background services: scheduler, push workers, change
// watcher and the optional NATS forwarder. They stop when ctx is done, the
// scheduler on Close.
func (a *App) Start(ctx context.Context) error {
	sched, err := scheduler.New(a.Recorder)
	if err != nil {
		return err
	}
	if err := scheduler.Register(sched, a.cfg.Scheduler, a.jobs()); err != nil {
		sched.Stop()
		return err
	}

	if a.Pool != nil {
		a.Pool.Start(ctx)
	}
	if shared, ok := a.Store.(*store.SharedStore); ok {
		cn, err := watcher.New(shared.SharedDir(), store.Resources(), a.Broker)
		if err != nil {
			slog.Warn("Change watcher disabled", logfields.Error(err))
		} else {
			go cn.Run(ctx)
		}
	}
	if url := a.cfg.Events.NATSURL; url != "" {
		fwd, err := events.DialNATS(url, a.cfg.Events.SubjectPrefix)
		if err != nil {
			slog.Warn("NATS forwarding disabled", logfields.Error(err))
		} else {
			go fwd.Run(ctx, a.Broker)
		}
	}
	a.Scheduler = sched
	a.Scheduler.Start(ctx)
	return nil
}

// Serve runs the HTTP server until ctx is done, then shuts everything down.
func (a *App) Serve(ctx context.Context) error {
	a.Prepare(ctx)
	if err := a.Start(ctx); err != nil {
		a.Close()
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping services...")
	case serveErr = <-errCh:
		slog.Error("HTTP server failed", logfields.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// SSE streams only end with their request context.
	server.RegisterOnShutdown(a.Broker.Close)
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown", logfields.Error(err))
	}
	a.Close()
	slog.Info("Server gracefully stopped")
	return serveErr
}

// ScanOnce runs one loan scan, for operators and cron-driven setups.
func (a *App) ScanOnce(ctx context.Context) ([]*model.Notification, error) {
	if _, err := a.Loans.RecomputeStatuses(ctx); err != nil {
		return nil, err
	}
	return a.Notifications.Check(ctx, time.Now())
}

// Close stops the scheduler, marks this workstation's technician offline and
// releases the store.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			slog.Debug("Scheduler stop", logfields.Error(err))
		}
	}
	if id := a.cfg.Presence.TechnicianID; id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.Presence.Logout(ctx, id); err != nil {
			slog.Warn("Failed to log out technician on shutdown", logfields.Technician(id), logfields.Error(err))
		}
		cancel()
	}
	a.Broker.Close()
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
