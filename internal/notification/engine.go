// Package notification scans loans for due-date reminders and overdue
// alerts, keeps the shared notification feed and pushes new entries to
// subscribed browsers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// DefaultMaxStored bounds the notification feed.
const DefaultMaxStored = 500

// ErrNotFound is returned when a notification id is unknown.
var ErrNotFound = errors.New("notification not found")

// LoanSource is the view of the loan service the engine needs.
type LoanSource interface {
	List(ctx context.Context) ([]*model.Loan, store.Meta)
	Settings(ctx context.Context) model.LoanSettings
	RecordNotifications(ctx context.Context, keys map[string][]string) error
}

// Dispatcher receives every notification after it is stored.
type Dispatcher interface {
	Dispatch(n *model.Notification)
}

type Options struct {
	MaxStored  int
	Recorder   metrics.Recorder
	Dispatcher Dispatcher
}

// Engine owns the loan_notifications resource.
type Engine struct {
	store     store.Store
	loans     LoanSource
	push      Dispatcher
	recorder  metrics.Recorder
	maxStored int

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewEngine(st store.Store, loans LoanSource, opts Options) *Engine {
	if opts.MaxStored <= 0 {
		opts.MaxStored = DefaultMaxStored
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Engine{
		store:     st,
		loans:     loans,
		push:      opts.Dispatcher,
		recorder:  opts.Recorder,
		maxStored: opts.MaxStored,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// DedupKey identifies the notification of a loan for one day offset.
func DedupKey(loanID string, daysUntilReturn int) string {
	return fmt.Sprintf("%s:%d", loanID, daysUntilReturn)
}

// Classify decides which scheduled notification, if any, the loan is due at
// now. It returns false for terminal loans and for keys already sent.
func Classify(l *model.Loan, now time.Time, settings model.LoanSettings) (model.NotificationType, string, bool) {
	if l.Status.Terminal() {
		return "", "", false
	}
	until := loan.DaysUntil(l.ExpectedReturnDate, now)
	key := DedupKey(l.ID, until)
	if l.HasNotification(key) {
		return "", "", false
	}
	overdue := -until
	switch {
	case until > 0 && slices.Contains(settings.ReminderDays, until):
		return model.NotifyReminderBefore, key, true
	case overdue >= loan.CriticalAfterDays && slices.Contains(settings.OverdueDays, overdue):
		return model.NotifyCritical, key, true
	case overdue > 0 && slices.Contains(settings.OverdueDays, overdue):
		return model.NotifyOverdue, key, true
	}
	return "", "", false
}

// Check runs one scan over the open loans. Notifications are stored in one
// write, then the dedup keys are recorded on the loans. A second pass with
// the same loans and the same now creates nothing.
func (e *Engine) Check(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	settings := e.loans.Settings(ctx)
	if !settings.AutoNotifications {
		slog.Debug("Automatic notifications disabled, skipping scan")
		return nil, nil
	}

	loans, _ := e.loans.List(ctx)
	var created []*model.Notification
	keys := map[string][]string{}
	for _, l := range loans {
		typ, key, ok := Classify(l, now, settings)
		if !ok {
			continue
		}
		until := loan.DaysUntil(l.ExpectedReturnDate, now)
		created = append(created, e.build(l, typ, now, map[string]any{
			"daysUntilReturn": until,
			"daysOverdue":     max(0, -until),
		}))
		keys[l.ID] = append(keys[l.ID], key)
	}
	if len(created) == 0 {
		return nil, nil
	}

	err := e.prepend(ctx, created...)
	err = errors.Join(err, e.loans.RecordNotifications(ctx, keys))
	e.publish(created)
	slog.Info("Loan scan created notifications", logfields.Count(len(created)))
	return created, err
}

// Emit stores an event notification such as returned or extended. These
// carry no dedup key.
func (e *Engine) Emit(ctx context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error {
	n := e.build(l, typ, e.now(), details)
	err := e.prepend(ctx, n)
	e.publish([]*model.Notification{n})
	return err
}

func (e *Engine) build(l *model.Loan, typ model.NotificationType, at time.Time, details map[string]any) *model.Notification {
	d := make(map[string]any, len(details)+2)
	for k, v := range details {
		d[k] = v
	}
	d["expectedReturnDate"] = l.ExpectedReturnDate
	d["loanDate"] = l.LoanDate
	return &model.Notification{
		ID:              e.newID(),
		LoanID:          l.ID,
		ComputerID:      l.ComputerID,
		ComputerName:    l.ComputerName,
		UserName:        l.UserName,
		UserDisplayName: l.UserDisplayName,
		Type:            typ,
		Date:            at,
		Details:         d,
	}
}

// prepend puts ns at the head of the feed, newest first, and truncates it.
func (e *Engine) prepend(ctx context.Context, ns ...*model.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := e.load(ctx)
	head := make([]*model.Notification, 0, len(ns)+len(doc.Notifications))
	for i := len(ns) - 1; i >= 0; i-- {
		head = append(head, ns[i])
	}
	doc.Notifications = append(head, doc.Notifications...)
	if len(doc.Notifications) > e.maxStored {
		doc.Notifications = doc.Notifications[:e.maxStored]
	}
	return e.save(ctx, doc)
}

func (e *Engine) publish(ns []*model.Notification) {
	for _, n := range ns {
		e.recorder.IncNotifications(string(n.Type), 1)
		if e.push != nil {
			e.push.Dispatch(n)
		}
	}
}

// List returns the feed, newest first.
func (e *Engine) List(ctx context.Context) ([]*model.Notification, store.Meta) {
	doc, meta := store.Load(ctx, e.store, store.KeyNotifications, model.NotificationsDocument{})
	if doc.Notifications == nil {
		doc.Notifications = []*model.Notification{}
	}
	return doc.Notifications, meta
}

// Unread returns the notifications not marked read.
func (e *Engine) Unread(ctx context.Context) []*model.Notification {
	all, _ := e.List(ctx)
	out := []*model.Notification{}
	for _, n := range all {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// MarkRead marks one notification read.
func (e *Engine) MarkRead(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := e.load(ctx)
	for _, n := range doc.Notifications {
		if n.ID != id {
			continue
		}
		if n.Read {
			return nil
		}
		now := e.now()
		n.Read = true
		n.ReadAt = &now
		return e.save(ctx, doc)
	}
	return ErrNotFound
}

// MarkAllRead marks every notification read and returns how many changed.
func (e *Engine) MarkAllRead(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := e.load(ctx)
	now := e.now()
	changed := 0
	for _, n := range doc.Notifications {
		if !n.Read {
			n.Read = true
			n.ReadAt = &now
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, e.save(ctx, doc)
}

// Prune drops notifications older than maxAge and returns how many were
// removed.
func (e *Engine) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc := e.load(ctx)
	cutoff := e.now().Add(-maxAge)
	kept := doc.Notifications[:0]
	for _, n := range doc.Notifications {
		if !n.Date.Before(cutoff) {
			kept = append(kept, n)
		}
	}
	removed := len(doc.Notifications) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	doc.Notifications = kept
	slog.Info("Pruned old notifications", logfields.Count(removed))
	return removed, e.save(ctx, doc)
}

func (e *Engine) load(ctx context.Context) *model.NotificationsDocument {
	doc, _ := store.Load(ctx, e.store, store.KeyNotifications, model.NotificationsDocument{})
	return &doc
}

func (e *Engine) save(ctx context.Context, doc *model.NotificationsDocument) error {
	if err := store.Save(ctx, e.store, store.KeyNotifications, doc); err != nil {
		return fmt.Errorf("save notifications: %w", err)
	}
	return nil
}
