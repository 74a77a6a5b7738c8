// Package presence tracks which technicians are connected through periodic
// heartbeats written to the shared technician_presence resource.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// DefaultTTL is how long a heartbeat keeps a technician online.
const DefaultTTL = 10 * time.Minute

// Snapshot carries the client-supplied fields of a heartbeat. Empty fields
// leave the stored value untouched.
type Snapshot struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
}

// Merge copies the non-empty snapshot fields onto p.
func (s Snapshot) Merge(p *model.TechnicianPresence) {
	if s.Name != "" {
		p.Name = s.Name
	}
	if s.Hostname != "" {
		p.Hostname = s.Hostname
	}
}

type Tracker struct {
	store    store.Store
	ttl      time.Duration
	hostname string
	recorder metrics.Recorder

	mu  sync.Mutex
	now func() time.Time
}

func NewTracker(st store.Store, ttl time.Duration, rec metrics.Recorder) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Tracker{store: st, ttl: ttl, hostname: host, recorder: rec, now: time.Now}
}

// Heartbeat marks id online. The login time survives consecutive heartbeats
// and is reset only when the stored record is not online.
func (t *Tracker) Heartbeat(ctx context.Context, id string, snap Snapshot) (*model.TechnicianPresence, error) {
	if id == "" {
		return nil, errors.New("technician id is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	doc := t.load(ctx)
	p, ok := doc[id]
	if !ok {
		p = &model.TechnicianPresence{ID: id, Hostname: t.hostname}
		doc[id] = p
	}
	if p.Status != model.PresenceOnline || p.LoginTime.IsZero() {
		p.LoginTime = now
	}
	p.Status = model.PresenceOnline
	p.LastActivity = now
	snap.Merge(p)

	t.recorder.SetOnlineTechnicians(len(t.online(doc, now)))
	if err := store.Save(ctx, t.store, store.KeyPresence, doc); err != nil {
		return p, fmt.Errorf("save presence: %w", err)
	}
	return p, nil
}

// Logout marks id offline and keeps its login time. Unknown ids are ignored.
func (t *Tracker) Logout(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	doc := t.load(ctx)
	p, ok := doc[id]
	if !ok {
		return nil
	}
	p.Status = model.PresenceOffline
	p.LastSeen = &now
	slog.Info("Technician logged out", logfields.Technician(id))

	t.recorder.SetOnlineTechnicians(len(t.online(doc, now)))
	if err := store.Save(ctx, t.store, store.KeyPresence, doc); err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	return nil
}

// ListOnline returns the technicians whose last heartbeat is within the TTL.
// A crashed client stays listed until its TTL lapses.
func (t *Tracker) ListOnline(ctx context.Context) []*model.TechnicianPresence {
	return t.online(t.load(ctx), t.now())
}

// All returns every presence record, online or not.
func (t *Tracker) All(ctx context.Context) []*model.TechnicianPresence {
	doc := t.load(ctx)
	out := make([]*model.TechnicianPresence, 0, len(doc))
	for _, p := range doc {
		out = append(out, p)
	}
	sortByName(out)
	return out
}

func (t *Tracker) online(doc model.PresenceDocument, now time.Time) []*model.TechnicianPresence {
	out := []*model.TechnicianPresence{}
	for _, p := range doc {
		if p.Status == model.PresenceOnline && now.Sub(p.LastActivity) < t.ttl {
			out = append(out, p)
		}
	}
	sortByName(out)
	return out
}

func (t *Tracker) load(ctx context.Context) model.PresenceDocument {
	doc, _ := store.Load(ctx, t.store, store.KeyPresence, model.PresenceDocument{})
	if doc == nil {
		doc = model.PresenceDocument{}
	}
	for id, p := range doc {
		if p == nil {
			delete(doc, id)
		} else if p.ID == "" {
			p.ID = id
		}
	}
	return doc
}

func sortByName(ps []*model.TechnicianPresence) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}
