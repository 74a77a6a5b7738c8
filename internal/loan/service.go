// Package loan implements the loan lifecycle: creation, activation,
// extension, return and cancellation of computer loans, plus the clock
// driven overdue and critical statuses.
package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// Notifier receives the returned and extended notifications.
type Notifier interface {
	Emit(ctx context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error
}

// Options configures a Service.
type Options struct {
	// Defaults apply until settings are saved in the loans resource.
	Defaults       model.LoanSettings
	HistoryMaxSize int
}

// Service owns the loans, computers and loan_history resources. Every
// read-modify-write cycle runs under one mutex; other processes writing the
// same resources still overwrite each other.
type Service struct {
	store      store.Store
	defaults   model.LoanSettings
	historyMax int
	notifier   Notifier

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// DefaultSettings mirrors the policy applied when nothing is configured.
func DefaultSettings() model.LoanSettings {
	return model.LoanSettings{
		MaxLoanDays:       90,
		MaxExtensions:     3,
		ReminderDays:      []int{7, 3, 1},
		OverdueDays:       []int{1, 3, 7, 14},
		AutoNotifications: true,
	}
}

func NewService(st store.Store, opts Options) *Service {
	if opts.Defaults.MaxLoanDays <= 0 {
		opts.Defaults = DefaultSettings()
	}
	if opts.HistoryMaxSize <= 0 {
		opts.HistoryMaxSize = 5000
	}
	return &Service{
		store:      st,
		defaults:   opts.Defaults,
		historyMax: opts.HistoryMaxSize,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// SetNotifier registers the receiver of returned and extended events.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// NewLoan is the caller input of Create.
type NewLoan struct {
	ComputerID         string    `json:"computerId"`
	UserName           string    `json:"userName"`
	UserDisplayName    string    `json:"userDisplayName"`
	AssignedStaffID    string    `json:"assignedStaffId"`
	LoanDate           time.Time `json:"loanDate"`
	ExpectedReturnDate time.Time `json:"expectedReturnDate"`
	Accessories        []string  `json:"accessories"`
	Notes              string    `json:"notes"`
	// Reserve creates the loan in the reserved state.
	Reserve bool `json:"reserve"`
}

// ReturnInput is the caller input of Return.
type ReturnInput struct {
	Notes               string   `json:"notes"`
	ReturnedAccessories []string `json:"returnedAccessories"`
}

// Create validates and persists a new loan and marks its computer as lent.
func (s *Service) Create(ctx context.Context, actor model.Technician, in NewLoan) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if in.ComputerID == "" {
		return nil, invalid("computer is required")
	}
	if strings.TrimSpace(in.UserName) == "" {
		return nil, invalid("user is required")
	}
	if in.LoanDate.IsZero() {
		in.LoanDate = now
	}
	if !in.ExpectedReturnDate.After(in.LoanDate) {
		return nil, invalid("expected return date must be after the loan date")
	}

	doc := s.loadLoans(ctx)
	settings := s.merge(doc.Settings)
	if durationDays(in.LoanDate, in.ExpectedReturnDate) > settings.MaxLoanDays {
		return nil, invalid(fmt.Sprintf("loan duration exceeds %d days", settings.MaxLoanDays))
	}

	computers := s.loadComputers(ctx)
	c := computers.Find(in.ComputerID)
	if c == nil {
		return nil, invalid("computer not found")
	}
	if c.Status != model.ComputerAvailable {
		return nil, invalid(fmt.Sprintf("computer %s is %s", c.Name, c.Status))
	}

	display := in.UserDisplayName
	if display == "" {
		display = in.UserName
	}
	l := &model.Loan{
		ID:                 s.newID(),
		ComputerID:         c.ID,
		ComputerName:       c.Name,
		UserName:           in.UserName,
		UserDisplayName:    display,
		AssignedStaffID:    in.AssignedStaffID,
		LoanDate:           in.LoanDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
		Status:             model.LoanActive,
		Accessories:        uniqueStrings(in.Accessories),
		History:            []model.HistoryEntry{},
		NotificationsSent:  []string{},
		Notes:              in.Notes,
		CreatedAt:          now,
		CreatedBy:          actor.Name,
	}
	c.Status = model.ComputerLoaned
	if in.Reserve {
		l.Status = model.LoanReserved
		c.Status = model.ComputerReserved
	} else {
		l.Status = StatusAt(l, now)
	}
	c.CurrentLoanID = l.ID
	touch(c, actor, now)

	entry := historyEntry(actor, model.EventCreated, now, map[string]any{
		"loanDate":           l.LoanDate,
		"expectedReturnDate": l.ExpectedReturnDate,
		"accessories":        l.Accessories,
	})
	l.History = append(l.History, entry)
	doc.Loans = append(doc.Loans, l)

	slog.Info("Loan created", logfields.LoanID(l.ID), logfields.Technician(actor.ID),
		slog.String("computer", c.Name), slog.String("status", string(l.Status)))
	return l, s.persist(ctx, doc, computers, l, entry)
}

// Activate turns a reserved loan into an active one.
func (s *Service) Activate(ctx context.Context, actor model.Technician, id string) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadLoans(ctx)
	l := doc.Find(id)
	if l == nil {
		return nil, ErrNotFound
	}
	if l.Status != model.LoanReserved {
		return nil, invalid(fmt.Sprintf("loan is %s, only reserved loans can be activated", l.Status))
	}
	l.Status = clockStatus(l.ExpectedReturnDate, now)
	entry := historyEntry(actor, model.EventActivated, now, nil)
	l.History = append(l.History, entry)

	computers := s.loadComputers(ctx)
	if c := computers.Find(l.ComputerID); c != nil && c.CurrentLoanID == l.ID {
		c.Status = model.ComputerLoaned
		touch(c, actor, now)
	} else {
		computers = nil
	}

	slog.Info("Loan activated", logfields.LoanID(l.ID), logfields.Technician(actor.ID))
	return l, s.persist(ctx, doc, computers, l, entry)
}

// Extend moves the expected return date of a loan forward.
func (s *Service) Extend(ctx context.Context, actor model.Technician, id string, newReturn time.Time, reason string) (*model.Loan, error) {
	l, details, err := s.extend(ctx, actor, id, newReturn, reason)
	if l == nil {
		return nil, err
	}
	return l, errors.Join(err, s.emit(ctx, l, model.NotifyExtended, details))
}

func (s *Service) extend(ctx context.Context, actor model.Technician, id string, newReturn time.Time, reason string) (*model.Loan, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadLoans(ctx)
	l := doc.Find(id)
	if l == nil {
		return nil, nil, ErrNotFound
	}
	if l.Status.Terminal() {
		return nil, nil, invalid(fmt.Sprintf("loan is %s", l.Status))
	}
	settings := s.merge(doc.Settings)
	switch {
	case !newReturn.After(l.ExpectedReturnDate):
		return nil, nil, invalid("new return date must be after the current one")
	case l.ExtensionCount >= settings.MaxExtensions:
		return nil, nil, invalid("max extensions reached")
	case durationDays(l.LoanDate, newReturn) > settings.MaxLoanDays:
		return nil, nil, invalid(fmt.Sprintf("loan duration exceeds %d days", settings.MaxLoanDays))
	}

	old := l.ExpectedReturnDate
	l.ExpectedReturnDate = newReturn
	l.ExtensionCount++
	l.Status = StatusAt(l, now)
	details := map[string]any{
		"oldReturnDate":  old,
		"newReturnDate":  newReturn,
		"reason":         reason,
		"extensionCount": l.ExtensionCount,
	}
	entry := historyEntry(actor, model.EventExtended, now, details)
	l.History = append(l.History, entry)

	slog.Info("Loan extended", logfields.LoanID(l.ID), logfields.Technician(actor.ID),
		slog.Int("extension_count", l.ExtensionCount))
	return l, details, s.persist(ctx, doc, nil, l, entry)
}

// Return closes a loan. Missing accessories are recorded in ReturnData and
// never block the return.
func (s *Service) Return(ctx context.Context, actor model.Technician, id string, in ReturnInput) (*model.Loan, error) {
	l, details, err := s.doReturn(ctx, actor, id, in)
	if l == nil {
		return nil, err
	}
	return l, errors.Join(err, s.emit(ctx, l, model.NotifyReturned, details))
}

func (s *Service) doReturn(ctx context.Context, actor model.Technician, id string, in ReturnInput) (*model.Loan, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadLoans(ctx)
	l := doc.Find(id)
	if l == nil {
		return nil, nil, ErrNotFound
	}
	if l.Status.Terminal() {
		return nil, nil, invalid(fmt.Sprintf("loan is already %s", l.Status))
	}

	returned := uniqueStrings(in.ReturnedAccessories)
	l.Status = model.LoanReturned
	l.ActualReturnDate = &now
	l.ReturnData = &model.ReturnData{
		LoanedAccessories:   append([]string{}, l.Accessories...),
		ReturnedAccessories: returned,
		Missing:             difference(l.Accessories, returned),
	}
	if in.Notes != "" {
		l.Notes = in.Notes
	}
	daysLate := max(0, DaysOverdue(l.ExpectedReturnDate, now))
	details := map[string]any{
		"notes":            in.Notes,
		"daysLate":         daysLate,
		"actualReturnDate": now,
		"missing":          l.ReturnData.Missing,
	}
	entry := historyEntry(actor, model.EventReturned, now, details)
	l.History = append(l.History, entry)

	computers := s.loadComputers(ctx)
	if c := computers.Find(l.ComputerID); c != nil && c.CurrentLoanID == l.ID {
		c.Status = model.ComputerAvailable
		c.CurrentLoanID = ""
		c.TotalLoans++
		c.TotalDaysLoaned += max(0, durationDays(l.LoanDate, now))
		touch(c, actor, now)
	} else {
		computers = nil
	}

	if len(l.ReturnData.Missing) > 0 {
		slog.Warn("Loan returned with missing accessories", logfields.LoanID(l.ID),
			slog.Any("missing", l.ReturnData.Missing))
	}
	slog.Info("Loan returned", logfields.LoanID(l.ID), logfields.Technician(actor.ID), slog.Int("days_late", daysLate))
	return l, details, s.persist(ctx, doc, computers, l, entry)
}

// Cancel abandons a reserved or active loan and releases its computer.
func (s *Service) Cancel(ctx context.Context, actor model.Technician, id, reason string) (*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadLoans(ctx)
	l := doc.Find(id)
	if l == nil {
		return nil, ErrNotFound
	}
	if st := StatusAt(l, now); st != model.LoanReserved && st != model.LoanActive {
		return nil, invalid(fmt.Sprintf("loan is %s, only reserved or active loans can be cancelled", st))
	}
	l.Status = model.LoanCancelled
	entry := historyEntry(actor, model.EventCancelled, now, map[string]any{"reason": reason})
	l.History = append(l.History, entry)

	computers := s.loadComputers(ctx)
	if c := computers.Find(l.ComputerID); c != nil && c.CurrentLoanID == l.ID {
		c.Status = model.ComputerAvailable
		c.CurrentLoanID = ""
		touch(c, actor, now)
	} else {
		computers = nil
	}

	slog.Info("Loan cancelled", logfields.LoanID(l.ID), logfields.Technician(actor.ID))
	return l, s.persist(ctx, doc, computers, l, entry)
}

// RecomputeStatuses applies the clock to every open loan and persists the
// loans resource when at least one status changed.
func (s *Service) RecomputeStatuses(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadLoans(ctx)
	changed := 0
	for _, l := range doc.Loans {
		if st := StatusAt(l, now); st != l.Status {
			slog.Debug("Loan status changed", logfields.LoanID(l.ID),
				slog.String("from", string(l.Status)), slog.String("to", string(st)))
			l.Status = st
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := store.Save(ctx, s.store, store.KeyLoans, doc); err != nil {
		return changed, fmt.Errorf("save recomputed statuses: %w", err)
	}
	return changed, nil
}

// List returns every loan with its status evaluated at the current time.
func (s *Service) List(ctx context.Context) ([]*model.Loan, store.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc, meta := store.Load(ctx, s.store, store.KeyLoans, model.LoansDocument{})
	for _, l := range doc.Loans {
		l.Status = StatusAt(l, now)
	}
	if doc.Loans == nil {
		doc.Loans = []*model.Loan{}
	}
	return doc.Loans, meta
}

// Get returns one loan with its current status.
func (s *Service) Get(ctx context.Context, id string) (*model.Loan, error) {
	loans, _ := s.List(ctx)
	for _, l := range loans {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrNotFound
}

// RecordNotifications adds dedup keys to notificationsSent, per loan id.
func (s *Service) RecordNotifications(ctx context.Context, keys map[string][]string) error {
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadLoans(ctx)
	for id, ks := range keys {
		l := doc.Find(id)
		if l == nil {
			continue
		}
		for _, k := range ks {
			if !l.HasNotification(k) {
				l.NotificationsSent = append(l.NotificationsSent, k)
			}
		}
	}
	if err := store.Save(ctx, s.store, store.KeyLoans, doc); err != nil {
		return fmt.Errorf("save notification keys: %w", err)
	}
	return nil
}

// Settings returns the effective loan settings.
func (s *Service) Settings(ctx context.Context) model.LoanSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merge(s.loadLoans(ctx).Settings)
}

// UpdateSettings merges the fields present in patch into the stored
// settings. The merged result is validated before anything is written.
func (s *Service) UpdateSettings(ctx context.Context, actor model.Technician, patch model.SettingsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.loadLoans(ctx)
	var saved model.SettingsPatch
	if doc.Settings != nil {
		saved = *doc.Settings
	}
	merged := saved.Merge(patch)
	if err := validateSettings(merged.Apply(s.defaults)); err != nil {
		return err
	}
	doc.Settings = &merged
	slog.Info("Loan settings updated", logfields.Technician(actor.ID))
	if err := store.Save(ctx, s.store, store.KeyLoans, doc); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func validateSettings(in model.LoanSettings) error {
	if in.MaxLoanDays <= 0 {
		return invalid("max loan days must be positive")
	}
	if in.MaxExtensions < 0 {
		return invalid("max extensions cannot be negative")
	}
	for _, d := range append(append([]int{}, in.ReminderDays...), in.OverdueDays...) {
		if d <= 0 {
			return invalid("reminder offsets must be positive")
		}
	}
	return nil
}

func (s *Service) merge(saved *model.SettingsPatch) model.LoanSettings {
	if saved == nil {
		return s.defaults
	}
	return saved.Apply(s.defaults)
}

func (s *Service) loadLoans(ctx context.Context) *model.LoansDocument {
	doc, _ := store.Load(ctx, s.store, store.KeyLoans, model.LoansDocument{})
	return &doc
}

func (s *Service) loadComputers(ctx context.Context) *model.ComputersDocument {
	doc, _ := store.Load(ctx, s.store, store.KeyComputers, model.ComputersDocument{})
	return &doc
}

// persist writes the loans, the computers when non-nil, and the history log.
// All three writes are attempted; their errors are joined.
func (s *Service) persist(ctx context.Context, loans *model.LoansDocument, computers *model.ComputersDocument, l *model.Loan, entry model.HistoryEntry) error {
	var errs []error
	if err := store.Save(ctx, s.store, store.KeyLoans, loans); err != nil {
		errs = append(errs, fmt.Errorf("save loans: %w", err))
	}
	if computers != nil {
		if err := store.Save(ctx, s.store, store.KeyComputers, computers); err != nil {
			errs = append(errs, fmt.Errorf("save computers: %w", err))
		}
	}
	if err := s.appendHistory(ctx, l, entry); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("Loan change not fully persisted", logfields.LoanID(l.ID), logfields.Error(err))
	}
	return err
}

func (s *Service) emit(ctx context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n == nil {
		return nil
	}
	if err := n.Emit(ctx, l, typ, details); err != nil {
		return fmt.Errorf("emit %s notification: %w", typ, err)
	}
	return nil
}

func historyEntry(actor model.Technician, ev model.LoanEvent, at time.Time, details map[string]any) model.HistoryEntry {
	return model.HistoryEntry{
		EventType: ev,
		Date:      at,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Details:   details,
	}
}

func touch(c *model.Computer, actor model.Technician, now time.Time) {
	c.LastModified = &now
	c.ModifiedBy = actor.Name
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// difference returns the items of a missing from b, in the order of a.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, v := range b {
		in[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := in[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
