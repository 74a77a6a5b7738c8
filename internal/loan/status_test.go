package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"loan-desk-backend/internal/model"
)

func TestStatusAt(t *testing.T) {
	d := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	expected := d.Add(7 * day)

	testCases := []struct {
		name   string
		status model.LoanStatus
		now    time.Time
		want   model.LoanStatus
	}{
		{"before due date", model.LoanActive, d.Add(3 * day), model.LoanActive},
		{"exactly at due date", model.LoanActive, expected, model.LoanActive},
		{"one minute late rounds up to a day", model.LoanActive, expected.Add(time.Minute), model.LoanOverdue},
		{"three days late", model.LoanActive, d.Add(10 * day), model.LoanOverdue},
		{"seven days late is still overdue", model.LoanOverdue, expected.Add(7 * day), model.LoanOverdue},
		{"eight days late", model.LoanOverdue, d.Add(15 * day), model.LoanCritical},
		{"critical goes back to active after extension", model.LoanCritical, d.Add(3 * day), model.LoanActive},
		{"reserved ignores the clock", model.LoanReserved, d.Add(30 * day), model.LoanReserved},
		{"returned is terminal", model.LoanReturned, d.Add(30 * day), model.LoanReturned},
		{"cancelled is terminal", model.LoanCancelled, d.Add(30 * day), model.LoanCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := &model.Loan{LoanDate: d, ExpectedReturnDate: expected, Status: tc.status}
			assert.Equal(t, tc.want, StatusAt(l, tc.now))
		})
	}
}

func TestDayCounters(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysUntil(now.Add(3*day+time.Hour), now))
	assert.Equal(t, 0, DaysUntil(now.Add(time.Hour), now))
	assert.Equal(t, -1, DaysUntil(now.Add(-time.Hour), now))
	assert.Equal(t, 1, DaysOverdue(now.Add(-time.Hour), now))
	assert.Equal(t, 0, DaysOverdue(now, now))
	assert.Equal(t, -2, DaysOverdue(now.Add(2*day+time.Hour), now))
}
