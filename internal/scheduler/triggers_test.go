package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/presence"
	"loan-desk-backend/internal/store"
)

type mockLoans struct {
	RecomputeFunc func(ctx context.Context) (int, error)
}

func (m *mockLoans) RecomputeStatuses(ctx context.Context) (int, error) { return m.RecomputeFunc(ctx) }

type mockNotifications struct {
	CheckFunc func(ctx context.Context, now time.Time) ([]*model.Notification, error)
	PruneFunc func(ctx context.Context, maxAge time.Duration) (int, error)
}

func (m *mockNotifications) Check(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	return m.CheckFunc(ctx, now)
}

func (m *mockNotifications) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	return m.PruneFunc(ctx, maxAge)
}

type mockHeartbeater struct {
	HeartbeatFunc func(ctx context.Context, id string, snap presence.Snapshot) (*model.TechnicianPresence, error)
}

func (m *mockHeartbeater) Heartbeat(ctx context.Context, id string, snap presence.Snapshot) (*model.TechnicianPresence, error) {
	return m.HeartbeatFunc(ctx, id, snap)
}

func offlineMonitor() *NetworkMonitor {
	m := NewNetworkMonitor(&mockProber{PingFunc: func(context.Context) error { return nil }}, nil, 0, nil)
	m.Observe(context.Background(), false, errors.New("down"))
	return m
}

func TestJobs_ScanRecomputesThenChecks(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	var order []string
	notifier := &recordingNotifier{}
	j := Jobs{
		Loans: &mockLoans{RecomputeFunc: func(context.Context) (int, error) {
			order = append(order, "recompute")
			return 2, nil
		}},
		Notifications: &mockNotifications{CheckFunc: func(_ context.Context, at time.Time) ([]*model.Notification, error) {
			order = append(order, "check")
			assert.True(t, at.Equal(now))
			return []*model.Notification{{ID: "n1"}}, nil
		}},
		Notifier: notifier,
		Now:      func() time.Time { return now },
	}

	require.NoError(t, j.Scan(context.Background()))
	assert.Equal(t, []string{"recompute", "check"}, order)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, events.DataUpdated{Resource: store.KeyLoans, Timestamp: now}, notifier.events[0])
	assert.Equal(t, events.DataUpdated{Resource: store.KeyNotifications, Timestamp: now}, notifier.events[1])
}

func TestJobs_SkippedWhileOffline(t *testing.T) {
	called := false
	j := Jobs{
		Monitor: offlineMonitor(),
		Loans: &mockLoans{RecomputeFunc: func(context.Context) (int, error) {
			called = true
			return 0, nil
		}},
		Notifications: &mockNotifications{
			CheckFunc: func(context.Context, time.Time) ([]*model.Notification, error) {
				called = true
				return nil, nil
			},
			PruneFunc: func(context.Context, time.Duration) (int, error) {
				called = true
				return 0, nil
			},
		},
	}

	require.NoError(t, j.Scan(context.Background()))
	require.NoError(t, j.Prune(context.Background()))
	assert.False(t, called)
}

func TestJobs_HeartbeatRunsOffline(t *testing.T) {
	var gotID string
	var gotSnap presence.Snapshot
	j := Jobs{
		Monitor:    offlineMonitor(),
		Technician: model.Technician{ID: "tech-7", Name: "Nadia"},
		Presence: &mockHeartbeater{HeartbeatFunc: func(_ context.Context, id string, snap presence.Snapshot) (*model.TechnicianPresence, error) {
			gotID, gotSnap = id, snap
			return &model.TechnicianPresence{ID: id}, nil
		}},
	}

	require.NoError(t, j.Heartbeat(context.Background()))
	assert.Equal(t, "tech-7", gotID)
	assert.Equal(t, "Nadia", gotSnap.Name)
}

func TestJobs_ScanPropagatesErrors(t *testing.T) {
	j := Jobs{
		Loans: &mockLoans{RecomputeFunc: func(context.Context) (int, error) {
			return 0, store.ErrNetworkUnavailable
		}},
		Notifications: &mockNotifications{},
	}
	assert.ErrorIs(t, j.Scan(context.Background()), store.ErrNetworkUnavailable)
}
