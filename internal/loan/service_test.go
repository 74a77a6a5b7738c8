package loan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
	"loan-desk-backend/internal/store/storetest"
)

type mockNotifier struct {
	EmitFunc func(ctx context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error
}

func (m *mockNotifier) Emit(ctx context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error {
	return m.EmitFunc(ctx, l, typ, details)
}

var (
	dayZero = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tech    = model.Technician{ID: "tech-1", Name: "Alice Martin"}
)

// newTestService returns a service over an in-memory store holding two
// available computers. The returned clock pointer drives Service.now.
func newTestService(t *testing.T) (*Service, *storetest.Memory, *time.Time) {
	t.Helper()
	mem := storetest.NewMemory()
	err := store.Save(context.Background(), mem, store.KeyComputers, model.ComputersDocument{
		Computers: []*model.Computer{
			{ID: "pc-1", Name: "PORT-01", SerialNumber: "SN1", Status: model.ComputerAvailable},
			{ID: "pc-2", Name: "PORT-02", SerialNumber: "SN2", Status: model.ComputerAvailable},
		},
	})
	require.NoError(t, err)

	clock := dayZero
	svc := NewService(mem, Options{})
	svc.now = func() time.Time { return clock }
	n := 0
	svc.newID = func() string {
		n++
		return "id-" + string(rune('a'+n-1))
	}
	return svc, mem, &clock
}

func createLoan(t *testing.T, svc *Service, accessories ...string) *model.Loan {
	t.Helper()
	l, err := svc.Create(context.Background(), tech, NewLoan{
		ComputerID:         "pc-1",
		UserName:           "jdupont",
		UserDisplayName:    "Jean Dupont",
		LoanDate:           dayZero,
		ExpectedReturnDate: dayZero.Add(7 * day),
		Accessories:        accessories,
	})
	require.NoError(t, err)
	return l
}

func computer(t *testing.T, svc *Service, id string) *model.Computer {
	t.Helper()
	cs, _ := svc.Computers(context.Background())
	for _, c := range cs {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("computer %s not found", id)
	return nil
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("persists an active loan and marks the computer loaned", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		l := createLoan(t, svc, "charger", "charger", "mouse")

		assert.Equal(t, model.LoanActive, l.Status)
		assert.Equal(t, "PORT-01", l.ComputerName)
		assert.Equal(t, []string{"charger", "mouse"}, l.Accessories)
		require.Len(t, l.History, 1)
		assert.Equal(t, model.EventCreated, l.History[0].EventType)
		assert.Equal(t, tech.ID, l.History[0].ActorID)

		got, err := svc.Get(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "jdupont", got.UserName)

		c := computer(t, svc, "pc-1")
		assert.Equal(t, model.ComputerLoaned, c.Status)
		assert.Equal(t, l.ID, c.CurrentLoanID)

		hist := svc.History(ctx, HistoryFilter{})
		require.Len(t, hist, 1)
		assert.Equal(t, l.ID, hist[0].LoanID)
	})

	t.Run("reserved intent", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		l, err := svc.Create(ctx, tech, NewLoan{
			ComputerID:         "pc-2",
			UserName:           "mlaurent",
			LoanDate:           dayZero.Add(2 * day),
			ExpectedReturnDate: dayZero.Add(5 * day),
			Reserve:            true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.LoanReserved, l.Status)
		assert.Equal(t, "mlaurent", l.UserDisplayName)
		assert.Equal(t, model.ComputerReserved, computer(t, svc, "pc-2").Status)
	})

	testCases := []struct {
		name   string
		in     NewLoan
		reason string
	}{
		{
			name:   "unknown computer",
			in:     NewLoan{ComputerID: "pc-9", UserName: "u", ExpectedReturnDate: dayZero.Add(day)},
			reason: "computer not found",
		},
		{
			name:   "return date before loan date",
			in:     NewLoan{ComputerID: "pc-1", UserName: "u", LoanDate: dayZero, ExpectedReturnDate: dayZero},
			reason: "expected return date must be after the loan date",
		},
		{
			name:   "duration above maximum",
			in:     NewLoan{ComputerID: "pc-1", UserName: "u", LoanDate: dayZero, ExpectedReturnDate: dayZero.Add(91 * day)},
			reason: "loan duration exceeds 90 days",
		},
		{
			name:   "missing user",
			in:     NewLoan{ComputerID: "pc-1", ExpectedReturnDate: dayZero.Add(day)},
			reason: "user is required",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mem, _ := newTestService(t)
			_, err := svc.Create(ctx, tech, tc.in)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.reason, ve.Reason)
			assert.Equal(t, 0, mem.Writes(store.KeyLoans))
		})
	}

	t.Run("computer already loaned", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createLoan(t, svc)
		_, err := svc.Create(ctx, tech, NewLoan{ComputerID: "pc-1", UserName: "u", ExpectedReturnDate: dayZero.Add(day)})

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Reason, "is loaned")
	})
}

func TestService_StatusFollowsClock(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	l := createLoan(t, svc)

	*clock = dayZero.Add(10 * day)
	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanOverdue, got.Status)

	*clock = dayZero.Add(15 * day)
	got, err = svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanCritical, got.Status)
}

func TestService_RecomputeStatuses(t *testing.T) {
	ctx := context.Background()
	svc, mem, clock := newTestService(t)
	createLoan(t, svc)
	writes := mem.Writes(store.KeyLoans)

	changed, err := svc.RecomputeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Equal(t, writes, mem.Writes(store.KeyLoans))

	*clock = dayZero.Add(10 * day)
	changed, err = svc.RecomputeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, writes+1, mem.Writes(store.KeyLoans))

	changed, err = svc.RecomputeStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestService_Extend(t *testing.T) {
	ctx := context.Background()

	t.Run("extends and emits a notification", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		var emitted []model.NotificationType
		svc.SetNotifier(&mockNotifier{
			EmitFunc: func(_ context.Context, l *model.Loan, typ model.NotificationType, details map[string]any) error {
				emitted = append(emitted, typ)
				assert.Equal(t, "holiday", details["reason"])
				return nil
			},
		})
		l := createLoan(t, svc)

		got, err := svc.Extend(ctx, tech, l.ID, dayZero.Add(14*day), "holiday")
		require.NoError(t, err)
		assert.Equal(t, 1, got.ExtensionCount)
		assert.True(t, got.ExpectedReturnDate.Equal(dayZero.Add(14*day)))
		assert.Equal(t, model.EventExtended, got.History[len(got.History)-1].EventType)
		assert.Equal(t, []model.NotificationType{model.NotifyExtended}, emitted)
	})

	t.Run("max extensions reached leaves the loan unchanged", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		l := createLoan(t, svc)
		for i := 1; i <= 3; i++ {
			_, err := svc.Extend(ctx, tech, l.ID, dayZero.Add(time.Duration(7+i)*day), "")
			require.NoError(t, err)
		}
		before, err := svc.Get(ctx, l.ID)
		require.NoError(t, err)

		_, err = svc.Extend(ctx, tech, l.ID, dayZero.Add(20*day), "again")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "max extensions reached", ve.Reason)

		after, err := svc.Get(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, before.ExtensionCount, after.ExtensionCount)
		assert.True(t, before.ExpectedReturnDate.Equal(after.ExpectedReturnDate))
		assert.Len(t, after.History, len(before.History))
	})

	testCases := []struct {
		name      string
		newReturn time.Time
		reason    string
	}{
		{"same date", dayZero.Add(7 * day), "new return date must be after the current one"},
		{"earlier date", dayZero.Add(5 * day), "new return date must be after the current one"},
		{"beyond maximum duration", dayZero.Add(91 * day), "loan duration exceeds 90 days"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)
			l := createLoan(t, svc)
			_, err := svc.Extend(ctx, tech, l.ID, tc.newReturn, "")

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.reason, ve.Reason)
		})
	}

	t.Run("unknown loan", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Extend(ctx, tech, "nope", dayZero.Add(9*day), "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Return(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	var emitted []model.NotificationType
	svc.SetNotifier(&mockNotifier{
		EmitFunc: func(_ context.Context, _ *model.Loan, typ model.NotificationType, _ map[string]any) error {
			emitted = append(emitted, typ)
			return nil
		},
	})
	l := createLoan(t, svc, "charger", "mouse")

	*clock = dayZero.Add(9 * day)
	got, err := svc.Return(ctx, tech, l.ID, ReturnInput{Notes: "scratch on lid", ReturnedAccessories: []string{"charger"}})
	require.NoError(t, err)

	assert.Equal(t, model.LoanReturned, got.Status)
	require.NotNil(t, got.ActualReturnDate)
	assert.True(t, got.ActualReturnDate.Equal(*clock))
	require.NotNil(t, got.ReturnData)
	assert.Equal(t, []string{"mouse"}, got.ReturnData.Missing)
	assert.Equal(t, []string{"charger", "mouse"}, got.ReturnData.LoanedAccessories)
	last := got.History[len(got.History)-1]
	assert.Equal(t, model.EventReturned, last.EventType)
	assert.Equal(t, 2, last.Details["daysLate"])
	assert.Equal(t, []model.NotificationType{model.NotifyReturned}, emitted)

	c := computer(t, svc, "pc-1")
	assert.Equal(t, model.ComputerAvailable, c.Status)
	assert.Empty(t, c.CurrentLoanID)
	assert.Equal(t, 1, c.TotalLoans)
	assert.Equal(t, 9, c.TotalDaysLoaned)

	*clock = dayZero.Add(30 * day)
	stored, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, stored.Status)

	_, err = svc.Return(ctx, tech, l.ID, ReturnInput{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, emitted, 1)
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("active loan releases the computer", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		l := createLoan(t, svc)

		got, err := svc.Cancel(ctx, tech, l.ID, "wrong user")
		require.NoError(t, err)
		assert.Equal(t, model.LoanCancelled, got.Status)
		assert.Equal(t, model.ComputerAvailable, computer(t, svc, "pc-1").Status)
	})

	t.Run("overdue loan cannot be cancelled", func(t *testing.T) {
		svc, _, clock := newTestService(t)
		l := createLoan(t, svc)
		*clock = dayZero.Add(9 * day)

		_, err := svc.Cancel(ctx, tech, l.ID, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("cancelled loan stays cancelled", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		l := createLoan(t, svc)
		_, err := svc.Cancel(ctx, tech, l.ID, "")
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, tech, l.ID, "")
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})
}

func TestService_Activate(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	l, err := svc.Create(ctx, tech, NewLoan{
		ComputerID:         "pc-2",
		UserName:           "u",
		LoanDate:           dayZero.Add(day),
		ExpectedReturnDate: dayZero.Add(5 * day),
		Reserve:            true,
	})
	require.NoError(t, err)

	*clock = dayZero.Add(day)
	got, err := svc.Activate(ctx, tech, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanActive, got.Status)
	assert.Equal(t, model.ComputerLoaned, computer(t, svc, "pc-2").Status)

	_, err = svc.Activate(ctx, tech, l.ID)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestService_OfflineWriteKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService(t)
	mem.SetOffline(true)

	l, err := svc.Create(ctx, tech, NewLoan{ComputerID: "pc-1", UserName: "u", ExpectedReturnDate: dayZero.Add(day)})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNetworkUnavailable)
	require.NotNil(t, l)

	loans, meta := svc.List(ctx)
	assert.True(t, meta.Stale)
	require.Len(t, loans, 1)
	assert.Equal(t, l.ID, loans[0].ID)

	res := ResultOf(err)
	assert.False(t, res.Success)
	assert.True(t, res.SavedLocally)
}

func TestService_Settings(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	assert.Equal(t, DefaultSettings(), svc.Settings(ctx))

	maxDays, maxExt := 30, 1
	err := svc.UpdateSettings(ctx, tech, model.SettingsPatch{MaxLoanDays: &maxDays, MaxExtensions: &maxExt, ReminderDays: &[]int{2}})
	require.NoError(t, err)
	got := svc.Settings(ctx)
	assert.Equal(t, 30, got.MaxLoanDays)
	assert.Equal(t, 1, got.MaxExtensions)
	assert.Equal(t, []int{2}, got.ReminderDays)
	assert.Equal(t, []int{1, 3, 7, 14}, got.OverdueDays)
	assert.True(t, got.AutoNotifications)

	off, zero := false, 0
	require.NoError(t, svc.UpdateSettings(ctx, tech, model.SettingsPatch{AutoNotifications: &off, MaxExtensions: &zero}))
	got = svc.Settings(ctx)
	assert.Equal(t, 30, got.MaxLoanDays, "earlier update is kept")
	assert.Equal(t, 0, got.MaxExtensions)
	assert.False(t, got.AutoNotifications)

	err = svc.UpdateSettings(ctx, tech, model.SettingsPatch{MaxLoanDays: &zero})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 30, svc.Settings(ctx).MaxLoanDays, "rejected update is not stored")
}

func TestService_SettingsFromStoredDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want func(model.LoanSettings) model.LoanSettings
	}{
		{
			name: "empty settings object",
			doc:  `{"loans":[],"settings":{}}`,
			want: func(s model.LoanSettings) model.LoanSettings { return s },
		},
		{
			name: "no settings key",
			doc:  `{"loans":[]}`,
			want: func(s model.LoanSettings) model.LoanSettings { return s },
		},
		{
			name: "partial settings",
			doc:  `{"settings":{"maxLoanDays":60}}`,
			want: func(s model.LoanSettings) model.LoanSettings {
				s.MaxLoanDays = 60
				return s
			},
		},
		{
			name: "explicit zero extensions and notifications off",
			doc:  `{"settings":{"maxExtensions":0,"autoNotifications":false}}`,
			want: func(s model.LoanSettings) model.LoanSettings {
				s.MaxExtensions = 0
				s.AutoNotifications = false
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := storetest.NewMemory()
			mem.Put(store.KeyLoans, []byte(tt.doc))
			svc := NewService(mem, Options{})

			assert.Equal(t, tt.want(DefaultSettings()), svc.Settings(context.Background()))
		})
	}
}

func TestService_ExtendAllowedWithEmptyStoredSettings(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newTestService(t)
	l := createLoan(t, svc)

	doc, _ := store.Load(ctx, mem, store.KeyLoans, model.LoansDocument{})
	doc.Settings = &model.SettingsPatch{}
	require.NoError(t, store.Save(ctx, mem, store.KeyLoans, doc))

	_, err := svc.Extend(ctx, tech, l.ID, dayZero.Add(14*day), "")
	require.NoError(t, err)
}

func TestService_Statistics(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	l := createLoan(t, svc)
	*clock = dayZero.Add(4 * day)
	_, err := svc.Return(ctx, tech, l.ID, ReturnInput{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, tech, NewLoan{ComputerID: "pc-2", UserName: "jdupont", ExpectedReturnDate: dayZero.Add(10 * day)})
	require.NoError(t, err)

	st := svc.Statistics(ctx)
	assert.Equal(t, 2, st.TotalComputers)
	assert.Equal(t, 1, st.Computers[model.ComputerLoaned])
	assert.Equal(t, 1, st.Loans[model.LoanReturned])
	assert.Equal(t, 1, st.Loans[model.LoanActive])
	assert.Equal(t, 4, st.AverageLoanDays)
	require.NotEmpty(t, st.TopUsers)
	assert.Equal(t, Count{Name: "jdupont", Count: 2}, st.TopUsers[0])
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, Result{Success: true}, ResultOf(nil))
	assert.Equal(t, Result{Reason: "max extensions reached"}, ResultOf(invalid("max extensions reached")))
	assert.Equal(t, Result{Reason: "loan not found"}, ResultOf(ErrNotFound))
	assert.Equal(t, Result{Reason: "operation failed"}, ResultOf(errors.New("disk on fire")))
}
