package loan

import (
	"math"
	"time"

	"loan-desk-backend/internal/model"
)

const day = 24 * time.Hour

// CriticalAfterDays is the number of late days after which a loan is critical.
const CriticalAfterDays = 7

// DaysOverdue returns ceil((now - expected) / 1 day).
func DaysOverdue(expected, now time.Time) int {
	return int(math.Ceil(float64(now.Sub(expected)) / float64(day)))
}

// DaysUntil returns floor((expected - now) / 1 day).
func DaysUntil(expected, now time.Time) int {
	return int(math.Floor(float64(expected.Sub(now)) / float64(day)))
}

// StatusAt returns the status the loan has at now. Terminal and reserved
// loans keep their stored status.
func StatusAt(l *model.Loan, now time.Time) model.LoanStatus {
	if l.Status.Terminal() || l.Status == model.LoanReserved {
		return l.Status
	}
	return clockStatus(l.ExpectedReturnDate, now)
}

func clockStatus(expected, now time.Time) model.LoanStatus {
	switch d := DaysOverdue(expected, now); {
	case d > CriticalAfterDays:
		return model.LoanCritical
	case d > 0:
		return model.LoanOverdue
	default:
		return model.LoanActive
	}
}

// durationDays counts started days between from and to.
func durationDays(from, to time.Time) int {
	return int(math.Ceil(float64(to.Sub(from)) / float64(day)))
}
