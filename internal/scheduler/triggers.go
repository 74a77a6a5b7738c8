package scheduler

import (
	"context"
	"log/slog"
	"time"

	"loan-desk-backend/config"
	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/presence"
	"loan-desk-backend/internal/store"
)

// Task names.
const (
	TaskNetworkProbe      = "network-probe"
	TaskLoanScan          = "loan-scan"
	TaskNotificationPrune = "notification-prune"
	TaskRosterResync      = "roster-resync"
	TaskPresenceHeartbeat = "presence-heartbeat"
)

// LoanRecomputer refreshes clock-driven loan statuses.
type LoanRecomputer interface {
	RecomputeStatuses(ctx context.Context) (int, error)
}

// NotificationScanner scans loans and prunes the feed.
type NotificationScanner interface {
	Check(ctx context.Context, now time.Time) ([]*model.Notification, error)
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// Heartbeater refreshes the presence record of the local technician.
type Heartbeater interface {
	Heartbeat(ctx context.Context, id string, snap presence.Snapshot) (*model.TechnicianPresence, error)
}

// Resyncer mirrors an external source into the store.
type Resyncer interface {
	Sync(ctx context.Context) (int, error)
}

// Jobs groups the collaborators of the periodic triggers. Nil collaborators
// disable their trigger.
type Jobs struct {
	Monitor       *NetworkMonitor
	Loans         LoanRecomputer
	Notifications NotificationScanner
	Presence      Heartbeater
	Roster        Resyncer
	Notifier      Notifier

	Technician model.Technician
	Retention  time.Duration
	Now        func() time.Time
}

// Scan recomputes loan statuses then creates due notifications.
func (j Jobs) Scan(ctx context.Context) error {
	if !j.online() {
		slog.Debug("Offline, loan scan skipped")
		return nil
	}
	changed, err := j.Loans.RecomputeStatuses(ctx)
	if err != nil {
		return err
	}
	if changed > 0 {
		slog.Info("Loan statuses updated", logfields.Count(changed))
		j.notify(ctx, store.KeyLoans)
	}
	created, err := j.Notifications.Check(ctx, j.now())
	if len(created) > 0 {
		j.notify(ctx, store.KeyNotifications)
	}
	return err
}

// Prune drops notifications older than the retention.
func (j Jobs) Prune(ctx context.Context) error {
	if !j.online() {
		return nil
	}
	removed, err := j.Notifications.Prune(ctx, j.Retention)
	if removed > 0 {
		j.notify(ctx, store.KeyNotifications)
	}
	return err
}

// Resync mirrors the external roster.
func (j Jobs) Resync(ctx context.Context) error {
	if !j.online() {
		slog.Debug("Offline, roster resync skipped")
		return nil
	}
	n, err := j.Roster.Sync(ctx)
	if err != nil {
		return err
	}
	slog.Debug("Roster resync finished", logfields.Count(n))
	j.notify(ctx, store.KeyUsers)
	return nil
}

// Heartbeat refreshes this workstation's presence record. It runs offline
// too so the mirror stays current.
func (j Jobs) Heartbeat(ctx context.Context) error {
	_, err := j.Presence.Heartbeat(ctx, j.Technician.ID, presence.Snapshot{Name: j.Technician.Name})
	return err
}

// Register installs every enabled trigger on s.
func Register(s *Scheduler, cfg config.SchedulerConfig, j Jobs) error {
	type trigger struct {
		enabled  bool
		name     string
		interval time.Duration
		fn       Task
	}
	triggers := []trigger{
		{j.Monitor != nil, TaskNetworkProbe, cfg.NetworkProbe, func(ctx context.Context) error { return j.Monitor.Probe(ctx) }},
		{j.Loans != nil && j.Notifications != nil, TaskLoanScan, cfg.Scan, j.Scan},
		{j.Notifications != nil, TaskNotificationPrune, cfg.Prune, j.Prune},
		{j.Roster != nil, TaskRosterResync, cfg.Resync, j.Resync},
		{j.Presence != nil && j.Technician.ID != "", TaskPresenceHeartbeat, cfg.Heartbeat, j.Heartbeat},
	}
	for _, t := range triggers {
		if !t.enabled {
			slog.Debug("Trigger disabled", logfields.Task(t.name))
			continue
		}
		if err := s.Every(t.interval, t.name, t.fn); err != nil {
			return err
		}
	}
	return nil
}

func (j Jobs) online() bool {
	return j.Monitor == nil || j.Monitor.Online()
}

func (j Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j Jobs) notify(ctx context.Context, resource string) {
	if j.Notifier != nil {
		j.Notifier.Notify(ctx, events.DataUpdated{Resource: resource, Timestamp: j.now()})
	}
}
