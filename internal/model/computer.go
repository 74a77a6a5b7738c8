package model

import "time"

// ComputerStatus is the inventory state of a computer.
type ComputerStatus string

const (
	ComputerAvailable   ComputerStatus = "available"
	ComputerLoaned      ComputerStatus = "loaned"
	ComputerReserved    ComputerStatus = "reserved"
	ComputerMaintenance ComputerStatus = "maintenance"
)

// Computer is a loanable machine from the shared inventory.
type Computer struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	SerialNumber    string         `json:"serialNumber"`
	Status          ComputerStatus `json:"status"`
	Specifications  map[string]any `json:"specifications,omitempty"`
	CurrentLoanID   string         `json:"currentLoanId,omitempty"`
	TotalLoans      int            `json:"totalLoans"`
	TotalDaysLoaned int            `json:"totalDaysLoaned"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastModified    *time.Time     `json:"lastModified,omitempty"`
	ModifiedBy      string         `json:"modifiedBy,omitempty"`

	MaintenanceHistory  []MaintenanceRecord `json:"maintenanceHistory,omitempty"`
	LastMaintenanceDate *time.Time          `json:"lastMaintenanceDate,omitempty"`
	NextMaintenanceDate *time.Time          `json:"nextMaintenanceDate,omitempty"`
}

// MaintenanceRecord is one intervention logged on a computer.
type MaintenanceRecord struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performedBy"`
	Date        time.Time `json:"date"`
}

// ComputersDocument is the persisted shape of the computers resource.
type ComputersDocument struct {
	Computers []*Computer `json:"computers"`
}

// Find returns the computer with the given id, or nil.
func (d *ComputersDocument) Find(id string) *Computer {
	for _, c := range d.Computers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Remove drops the computer with the given id and reports whether it existed.
func (d *ComputersDocument) Remove(id string) bool {
	for i, c := range d.Computers {
		if c.ID == id {
			d.Computers = append(d.Computers[:i], d.Computers[i+1:]...)
			return true
		}
	}
	return false
}
