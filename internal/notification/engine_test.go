package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-desk-backend/internal/loan"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
	"loan-desk-backend/internal/store/storetest"
)

const day = 24 * time.Hour

var now = time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)

// mockLoans keeps loans in memory and records dedup keys on them.
type mockLoans struct {
	mu       sync.Mutex
	loans    []*model.Loan
	settings model.LoanSettings
}

func (m *mockLoans) List(context.Context) ([]*model.Loan, store.Meta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loans, store.Meta{Source: store.SourceNetwork}
}

func (m *mockLoans) Settings(context.Context) model.LoanSettings { return m.settings }

func (m *mockLoans) RecordNotifications(_ context.Context, keys map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.loans {
		l.NotificationsSent = append(l.NotificationsSent, keys[l.ID]...)
	}
	return nil
}

type mockDispatcher struct {
	DispatchFunc func(n *model.Notification)
}

func (m *mockDispatcher) Dispatch(n *model.Notification) { m.DispatchFunc(n) }

func loanDue(id string, in time.Duration) *model.Loan {
	return &model.Loan{
		ID:                 id,
		ComputerID:         "pc-" + id,
		ComputerName:       "PORT-" + id,
		UserName:           "user" + id,
		UserDisplayName:    "User " + id,
		LoanDate:           now.Add(-30 * day),
		ExpectedReturnDate: now.Add(in),
		Status:             model.LoanActive,
	}
}

func newTestEngine(loans ...*model.Loan) (*Engine, *mockLoans, *storetest.Memory) {
	mem := storetest.NewMemory()
	src := &mockLoans{loans: loans, settings: loan.DefaultSettings()}
	e := NewEngine(mem, src, Options{})
	e.now = func() time.Time { return now }
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("n-%d", n)
	}
	return e, src, mem
}

func TestClassify(t *testing.T) {
	settings := loan.DefaultSettings()

	testCases := []struct {
		name   string
		due    time.Duration
		status model.LoanStatus
		sent   []string
		want   model.NotificationType
		key    string
	}{
		{name: "reminder seven days before", due: 7 * day, want: model.NotifyReminderBefore, key: "l:7"},
		{name: "reminder one day before", due: day, want: model.NotifyReminderBefore, key: "l:1"},
		{name: "no reminder two days before", due: 2 * day},
		{name: "due today", due: 0},
		{name: "overdue one day", due: -day, want: model.NotifyOverdue, key: "l:-1"},
		{name: "overdue three days", due: -3 * day, want: model.NotifyOverdue, key: "l:-3"},
		{name: "seven days late is critical", due: -7 * day, want: model.NotifyCritical, key: "l:-7"},
		{name: "fourteen days late is critical", due: -14 * day, want: model.NotifyCritical, key: "l:-14"},
		{name: "eight days late is not an offset", due: -8 * day},
		{name: "reserved loans are scanned", due: 3 * day, status: model.LoanReserved, want: model.NotifyReminderBefore, key: "l:3"},
		{name: "returned loans are skipped", due: -3 * day, status: model.LoanReturned},
		{name: "cancelled loans are skipped", due: 7 * day, status: model.LoanCancelled},
		{name: "already sent", due: -3 * day, sent: []string{"l:-3"}},
		{name: "other key does not block", due: -3 * day, sent: []string{"l:-1"}, want: model.NotifyOverdue, key: "l:-3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := loanDue("l", tc.due)
			if tc.status != "" {
				l.Status = tc.status
			}
			l.NotificationsSent = tc.sent

			typ, key, ok := Classify(l, now, settings)
			assert.Equal(t, tc.want != "", ok)
			assert.Equal(t, tc.want, typ)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestEngine_CheckIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, src, mem := newTestEngine(loanDue("a", 3*day), loanDue("b", -3*day), loanDue("c", 2*day))

	created, err := e.Check(ctx, now)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, []string{"a:3"}, src.loans[0].NotificationsSent)
	assert.Equal(t, []string{"b:-3"}, src.loans[1].NotificationsSent)
	assert.Empty(t, src.loans[2].NotificationsSent)
	assert.Equal(t, 1, mem.Writes(store.KeyNotifications))

	created, err = e.Check(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, 1, mem.Writes(store.KeyNotifications))

	feed, _ := e.List(ctx)
	require.Len(t, feed, 2)
	types := []model.NotificationType{feed[0].Type, feed[1].Type}
	assert.ElementsMatch(t, []model.NotificationType{model.NotifyReminderBefore, model.NotifyOverdue}, types)
}

func TestEngine_CheckNextDayEmitsAgain(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(loanDue("a", 3*day))

	created, err := e.Check(ctx, now)
	require.NoError(t, err)
	require.Len(t, created, 1)

	created, err = e.Check(ctx, now.Add(2*day))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.NotifyReminderBefore, created[0].Type)
	assert.Equal(t, 1, created[0].Details["daysUntilReturn"])
}

func TestEngine_CheckDisabled(t *testing.T) {
	e, src, mem := newTestEngine(loanDue("a", 3*day))
	src.settings.AutoNotifications = false

	created, err := e.Check(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Equal(t, 0, mem.Writes(store.KeyNotifications))
}

func TestEngine_FeedIsBounded(t *testing.T) {
	ctx := context.Background()
	e, _, mem := newTestEngine(loanDue("a", day), loanDue("b", -day))

	old := model.NotificationsDocument{}
	for i := 0; i < DefaultMaxStored; i++ {
		old.Notifications = append(old.Notifications, &model.Notification{
			ID:   fmt.Sprintf("old-%d", i),
			Type: model.NotifyOverdue,
			Date: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	require.NoError(t, store.Save(ctx, mem, store.KeyNotifications, old))

	created, err := e.Check(ctx, now)
	require.NoError(t, err)
	require.Len(t, created, 2)

	feed, _ := e.List(ctx)
	require.Len(t, feed, DefaultMaxStored)
	assert.Equal(t, "a", feed[1].LoanID)
	assert.Equal(t, "b", feed[0].LoanID)
	assert.Equal(t, "old-0", feed[2].ID)
	assert.Equal(t, fmt.Sprintf("old-%d", DefaultMaxStored-3), feed[len(feed)-1].ID)
}

func TestEngine_EmitDispatches(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine()
	var got []*model.Notification
	e.push = &mockDispatcher{DispatchFunc: func(n *model.Notification) { got = append(got, n) }}

	l := loanDue("a", 5*day)
	err := e.Emit(ctx, l, model.NotifyExtended, map[string]any{"newReturnDate": l.ExpectedReturnDate})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, model.NotifyExtended, got[0].Type)
	assert.Equal(t, "Extended: PORT-a lent to User a now due on 2026-05-16", Message(got[0]))

	feed, _ := e.List(ctx)
	require.Len(t, feed, 1)
	assert.Equal(t, "a", feed[0].LoanID)
	assert.False(t, feed[0].Read)
}

func TestEngine_ReadStateAndPrune(t *testing.T) {
	ctx := context.Background()
	e, _, mem := newTestEngine()
	require.NoError(t, store.Save(ctx, mem, store.KeyNotifications, model.NotificationsDocument{
		Notifications: []*model.Notification{
			{ID: "n1", Type: model.NotifyOverdue, Date: now.Add(-time.Hour)},
			{ID: "n2", Type: model.NotifyReturned, Date: now.Add(-10 * day)},
			{ID: "n3", Type: model.NotifyCritical, Date: now.Add(-100 * day)},
		},
	}))

	require.NoError(t, e.MarkRead(ctx, "n1"))
	assert.ErrorIs(t, e.MarkRead(ctx, "missing"), ErrNotFound)

	unread := e.Unread(ctx)
	require.Len(t, unread, 2)
	assert.Equal(t, "n2", unread[0].ID)

	changed, err := e.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.Empty(t, e.Unread(ctx))

	feed, _ := e.List(ctx)
	require.NotNil(t, feed[0].ReadAt)
	assert.True(t, feed[0].ReadAt.Equal(now))

	removed, err := e.Prune(ctx, 90*day)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	feed, _ = e.List(ctx)
	assert.Len(t, feed, 2)

	removed, err = e.Prune(ctx, 90*day)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
