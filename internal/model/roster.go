package model

import "time"

// RosterUser is one row of the external user roster.
type RosterUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Department  string `json:"department,omitempty"`
	Email       string `json:"email,omitempty"`
	Server      string `json:"server,omitempty"`
}

// RosterDocument is the persisted shape of the users resource.
type RosterDocument struct {
	Users    []RosterUser `json:"users"`
	SyncedAt time.Time    `json:"syncedAt"`
	Source   string       `json:"source,omitempty"`
}
