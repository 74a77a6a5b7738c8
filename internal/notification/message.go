package notification

import (
	"fmt"
	"time"

	"loan-desk-backend/internal/model"
)

// Message renders the human-readable text of a notification.
func Message(n *model.Notification) string {
	switch n.Type {
	case model.NotifyReminderBefore:
		return fmt.Sprintf("Reminder: %s lent to %s is due on %s", n.ComputerName, n.UserDisplayName, detailDate(n, "expectedReturnDate"))
	case model.NotifyOverdue:
		return fmt.Sprintf("Overdue: %s lent to %s was due on %s", n.ComputerName, n.UserDisplayName, detailDate(n, "expectedReturnDate"))
	case model.NotifyCritical:
		return fmt.Sprintf("Critical: %s lent to %s is more than 7 days late", n.ComputerName, n.UserDisplayName)
	case model.NotifyReturned:
		return fmt.Sprintf("Returned: %s was returned by %s", n.ComputerName, n.UserDisplayName)
	case model.NotifyExtended:
		return fmt.Sprintf("Extended: %s lent to %s now due on %s", n.ComputerName, n.UserDisplayName, detailDate(n, "newReturnDate"))
	default:
		return fmt.Sprintf("Loan notification for %s", n.ComputerName)
	}
}

// detailDate formats a date from the details map. Values read back from
// JSON are strings, values built in process are time.Time.
func detailDate(n *model.Notification, key string) string {
	switch v := n.Details[key].(type) {
	case time.Time:
		return v.Format(time.DateOnly)
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.Format(time.DateOnly)
		}
		return v
	}
	return "?"
}
