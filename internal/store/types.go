package store

import "loan-desk-backend/internal/model"

// Resource keys of the shared documents.
const (
	KeyComputers     = "computers"
	KeyLoans         = "loans"
	KeyNotifications = "loan_notifications"
	KeyPresence      = "technician_presence"
	KeyLoanHistory   = "loan_history"
	KeySubscriptions = "push_subscriptions"
	KeyUsers         = "users"
	KeyAccessories   = "accessories_config"
)

// Resources lists every known resource key.
func Resources() []string {
	return []string{KeyComputers, KeyLoans, KeyNotifications, KeyPresence,
		KeyLoanHistory, KeySubscriptions, KeyUsers, KeyAccessories}
}

// FileName maps a resource key to its file name in the shared directory.
func FileName(key string) string {
	return key + ".json"
}

// DefaultDocuments returns the empty shape of each resource that must exist
// for other clients to read it.
func DefaultDocuments() map[string]any {
	return map[string]any{
		KeyComputers:     model.ComputersDocument{Computers: []*model.Computer{}},
		KeyLoans:         model.LoansDocument{Loans: []*model.Loan{}},
		KeyNotifications: model.NotificationsDocument{Notifications: []*model.Notification{}},
		KeyPresence:      model.PresenceDocument{},
	}
}
