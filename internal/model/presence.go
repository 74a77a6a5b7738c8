package model

import "time"

// PresenceStatus is the stored session state of a technician.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// TechnicianPresence is one technician's heartbeat record.
type TechnicianPresence struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Hostname     string         `json:"hostname"`
	Status       PresenceStatus `json:"status"`
	LoginTime    time.Time      `json:"loginTime"`
	LastActivity time.Time      `json:"lastActivity"`
	LastSeen     *time.Time     `json:"lastSeen,omitempty"`
}

// PresenceDocument is the persisted shape of the technician_presence resource, keyed by id.
type PresenceDocument map[string]*TechnicianPresence

// Technician is the identity supplied by the external session component.
type Technician struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}
