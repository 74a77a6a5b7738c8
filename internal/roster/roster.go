// Package roster mirrors the user roster spreadsheet into the users resource
// so that every workstation sees the same list without opening the workbook.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/parse"
	"loan-desk-backend/internal/store"
)

// Syncer reads the roster workbook and writes it to the store.
type Syncer struct {
	path  string
	sheet string
	store store.Store
	now   func() time.Time
}

// NewSyncer returns a Syncer for the workbook at path. An empty sheet name
// selects the first sheet.
func NewSyncer(path, sheet string, st store.Store) *Syncer {
	return &Syncer{path: path, sheet: sheet, store: st, now: time.Now}
}

// Sync reads the workbook and replaces the users resource. It returns the
// number of users written. The previous document is left untouched when the
// workbook cannot be read.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	if s.path == "" {
		return 0, fmt.Errorf("roster path is not configured")
	}
	rows, err := s.readRows()
	if err != nil {
		return 0, err
	}
	users, skipped, err := parse.ParseRoster(rows)
	if err != nil {
		return 0, fmt.Errorf("parse roster %s: %w", s.path, err)
	}
	for _, rowErr := range skipped {
		slog.Debug("Skipped roster row", slog.Int("row", rowErr.Row), slog.String("reason", rowErr.Reason))
	}

	doc := model.RosterDocument{Users: users, SyncedAt: s.now().UTC(), Source: s.path}
	if err := store.Save(ctx, s.store, store.KeyUsers, doc); err != nil {
		return len(users), fmt.Errorf("save roster: %w", err)
	}
	slog.Info("Roster synchronised", logfields.Resource(store.KeyUsers),
		slog.Int("users", len(users)), slog.Int("skipped", len(skipped)))
	return len(users), nil
}

func (s *Syncer) readRows() ([][]string, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", s.path, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// Users returns the last synchronised roster.
func Users(ctx context.Context, st store.Store) (model.RosterDocument, store.Meta) {
	return store.Load(ctx, st, store.KeyUsers, model.RosterDocument{Users: []model.RosterUser{}})
}
