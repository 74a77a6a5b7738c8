// Package events carries change hints from the core to the presentation
// layer: network status transitions and shared data updates.
package events

import "time"

// Event names as seen by clients.
const (
	NameNetworkStatusChanged = "network-status-changed"
	NameDataUpdated          = "data-updated"
)

// Event is anything published on the Broker.
type Event interface {
	EventName() string
}

// NetworkStatusChanged is published on online/offline transitions only.
type NetworkStatusChanged struct {
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

func (NetworkStatusChanged) EventName() string { return NameNetworkStatusChanged }

// DataUpdated hints that a shared resource changed and should be re-read.
// Delivery is at least once and unordered.
type DataUpdated struct {
	Resource  string    `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
}

func (DataUpdated) EventName() string { return NameDataUpdated }
