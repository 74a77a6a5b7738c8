package model

import "time"

// NotificationType classifies a loan notification.
type NotificationType string

const (
	NotifyReminderBefore NotificationType = "reminder_before"
	NotifyOverdue        NotificationType = "overdue"
	NotifyCritical       NotificationType = "critical"
	NotifyReturned       NotificationType = "returned"
	NotifyExtended       NotificationType = "extended"
)

// Notification is a persisted loan notification.
type Notification struct {
	ID              string           `json:"id"`
	LoanID          string           `json:"loanId"`
	ComputerID      string           `json:"computerId"`
	ComputerName    string           `json:"computerName"`
	UserName        string           `json:"userName"`
	UserDisplayName string           `json:"userDisplayName"`
	Type            NotificationType `json:"type"`
	Date            time.Time        `json:"date"`
	Read            bool             `json:"read"`
	ReadAt          *time.Time       `json:"readAt,omitempty"`
	Details         map[string]any   `json:"details"`
}

// NotificationsDocument is the persisted shape of the loan_notifications resource.
// Notifications are ordered newest first.
type NotificationsDocument struct {
	Notifications []*Notification `json:"notifications"`
}
