package model

import "time"

// Accessory is an item that can be handed out with a computer. Loans
// reference accessories by ID.
type Accessory struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Icon       string     `json:"icon,omitempty"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"createdAt"`
	CreatedBy  string     `json:"createdBy,omitempty"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	ModifiedBy string     `json:"modifiedBy,omitempty"`
}

// AccessoriesDocument is the persisted shape of the accessory catalog.
type AccessoriesDocument struct {
	Accessories    []*Accessory `json:"accessories"`
	LastModified   *time.Time   `json:"lastModified,omitempty"`
	LastModifiedBy string       `json:"lastModifiedBy,omitempty"`
}

// Find returns the accessory with the given id, or nil.
func (d *AccessoriesDocument) Find(id string) *Accessory {
	for _, a := range d.Accessories {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// DefaultAccessories is the catalog written the first time it is read.
func DefaultAccessories(now time.Time) AccessoriesDocument {
	mk := func(id, name, icon string) *Accessory {
		return &Accessory{ID: id, Name: name, Icon: icon, Active: true, CreatedAt: now}
	}
	return AccessoriesDocument{
		Accessories: []*Accessory{
			mk("charger", "Chargeur", "power"),
			mk("mouse", "Souris", "mouse"),
			mk("bag", "Sacoche", "work"),
			mk("docking_station", "Station d'accueil", "dock"),
			mk("usb_cable", "Câble USB", "usb"),
			mk("hdmi_cable", "Câble HDMI", "cable"),
		},
		LastModified: &now,
	}
}
