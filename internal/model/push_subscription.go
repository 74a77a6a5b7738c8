package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint     string    `json:"endpoint"`
	P256DH       string    `json:"p256dh"`
	Auth         string    `json:"auth"`
	TechnicianID string    `json:"technicianId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubscriptionsDocument is the persisted shape of the push_subscriptions resource.
type SubscriptionsDocument struct {
	Subscriptions []PushSubscription `json:"subscriptions"`
}
