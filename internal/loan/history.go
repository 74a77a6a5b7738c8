package loan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// HistoryFilter narrows History results. Zero fields match everything.
type HistoryFilter struct {
	UserName   string
	ComputerID string
	EventType  model.LoanEvent
	Since      time.Time
	Until      time.Time
	Limit      int
}

func (f HistoryFilter) match(r model.LoanHistoryRecord) bool {
	if f.UserName != "" {
		q := strings.ToLower(f.UserName)
		if !strings.Contains(strings.ToLower(r.UserName), q) &&
			!strings.Contains(strings.ToLower(r.UserDisplayName), q) {
			return false
		}
	}
	if f.ComputerID != "" && r.ComputerID != f.ComputerID {
		return false
	}
	if f.EventType != "" && r.EventType != f.EventType {
		return false
	}
	if !f.Since.IsZero() && r.Date.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Date.After(f.Until) {
		return false
	}
	return true
}

// History returns the global loan history log, newest first.
func (s *Service) History(ctx context.Context, f HistoryFilter) []model.LoanHistoryRecord {
	doc, _ := store.Load(ctx, s.store, store.KeyLoanHistory, model.LoanHistoryDocument{})
	out := []model.LoanHistoryRecord{}
	for _, r := range doc.Events {
		if !f.match(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (s *Service) appendHistory(ctx context.Context, l *model.Loan, entry model.HistoryEntry) error {
	doc, _ := store.Load(ctx, s.store, store.KeyLoanHistory, model.LoanHistoryDocument{})
	rec := model.LoanHistoryRecord{
		ID:              s.newID(),
		LoanID:          l.ID,
		EventType:       entry.EventType,
		Date:            entry.Date,
		ComputerID:      l.ComputerID,
		ComputerName:    l.ComputerName,
		UserName:        l.UserName,
		UserDisplayName: l.UserDisplayName,
		ActorID:         entry.ActorID,
		ActorName:       entry.ActorName,
		Details:         entry.Details,
	}
	doc.Events = append([]model.LoanHistoryRecord{rec}, doc.Events...)
	if len(doc.Events) > s.historyMax {
		doc.Events = doc.Events[:s.historyMax]
	}
	if err := store.Save(ctx, s.store, store.KeyLoanHistory, doc); err != nil {
		return fmt.Errorf("save loan history: %w", err)
	}
	return nil
}
