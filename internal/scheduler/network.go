package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
)

// DefaultRestoreCooldown is the minimum time between two restored events.
const DefaultRestoreCooldown = 30 * time.Second

// Prober checks that the shared location is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Notifier publishes events without failing the caller.
type Notifier interface {
	Notify(ctx context.Context, evt events.Event)
}

// NetworkMonitor keeps an online flag and announces transitions only.
// A restored transition within the cooldown of the previous announced one
// updates the flag silently.
type NetworkMonitor struct {
	prober   Prober
	notifier Notifier
	cooldown time.Duration
	recorder metrics.Recorder

	mu          sync.Mutex
	online      bool
	lastRestore time.Time
	now         func() time.Time
}

// NewNetworkMonitor starts in the online state.
func NewNetworkMonitor(p Prober, n Notifier, cooldown time.Duration, rec metrics.Recorder) *NetworkMonitor {
	if cooldown <= 0 {
		cooldown = DefaultRestoreCooldown
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	rec.SetNetworkOnline(true)
	return &NetworkMonitor{
		prober:   p,
		notifier: n,
		cooldown: cooldown,
		recorder: rec,
		online:   true,
		now:      time.Now,
	}
}

// Online reports the last observed state.
func (m *NetworkMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Probe pings the shared location and records the result. It never fails:
// unreachability is a state, not an error.
func (m *NetworkMonitor) Probe(ctx context.Context) error {
	err := m.prober.Ping(ctx)
	m.Observe(ctx, err == nil, err)
	return nil
}

// Observe applies one availability sample.
func (m *NetworkMonitor) Observe(ctx context.Context, reachable bool, cause error) {
	m.mu.Lock()
	was := m.online
	m.online = reachable
	now := m.now()
	announce := false
	switch {
	case was && !reachable:
		announce = true
	case !was && reachable:
		if m.lastRestore.IsZero() || now.Sub(m.lastRestore) >= m.cooldown {
			announce = true
			m.lastRestore = now
		}
	}
	m.mu.Unlock()

	if was == reachable {
		return
	}
	m.recorder.SetNetworkOnline(reachable)
	if reachable {
		slog.Info("Shared location reachable again", slog.Bool("announced", announce))
	} else {
		slog.Warn("Shared location unreachable", logfields.Error(cause))
	}
	if announce && m.notifier != nil {
		m.notifier.Notify(ctx, events.NetworkStatusChanged{Online: reachable, Timestamp: now})
	}
}
