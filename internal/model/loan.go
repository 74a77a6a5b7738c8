package model

import "time"

// LoanStatus is a state of the loan lifecycle.
type LoanStatus string

const (
	LoanReserved  LoanStatus = "reserved"
	LoanActive    LoanStatus = "active"
	LoanOverdue   LoanStatus = "overdue"
	LoanCritical  LoanStatus = "critical"
	LoanReturned  LoanStatus = "returned"
	LoanCancelled LoanStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s LoanStatus) Terminal() bool {
	return s == LoanReturned || s == LoanCancelled
}

// LoanEvent names a history record kind.
type LoanEvent string

const (
	EventCreated   LoanEvent = "created"
	EventActivated LoanEvent = "activated"
	EventExtended  LoanEvent = "extended"
	EventReturned  LoanEvent = "returned"
	EventCancelled LoanEvent = "cancelled"
)

// HistoryEntry is one immutable record of a loan's history.
type HistoryEntry struct {
	EventType LoanEvent      `json:"eventType"`
	Date      time.Time      `json:"date"`
	ActorID   string         `json:"actorId,omitempty"`
	ActorName string         `json:"actorName,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ReturnData audits the accessories handed back with a loan.
type ReturnData struct {
	LoanedAccessories   []string `json:"loanedAccessories"`
	ReturnedAccessories []string `json:"returnedAccessories"`
	Missing             []string `json:"missing"`
}

// Loan is a computer lent to a user.
type Loan struct {
	ID                 string         `json:"id"`
	ComputerID         string         `json:"computerId"`
	ComputerName       string         `json:"computerName"`
	UserName           string         `json:"userName"`
	UserDisplayName    string         `json:"userDisplayName"`
	AssignedStaffID    string         `json:"assignedStaffId,omitempty"`
	LoanDate           time.Time      `json:"loanDate"`
	ExpectedReturnDate time.Time      `json:"expectedReturnDate"`
	ActualReturnDate   *time.Time     `json:"actualReturnDate,omitempty"`
	Status             LoanStatus     `json:"status"`
	Accessories        []string       `json:"accessories"`
	ExtensionCount     int            `json:"extensionCount"`
	History            []HistoryEntry `json:"history"`
	NotificationsSent  []string       `json:"notificationsSent"`
	ReturnData         *ReturnData    `json:"returnData,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	CreatedBy          string         `json:"createdBy,omitempty"`
}

// HasNotification reports whether the dedup key was already recorded.
func (l *Loan) HasNotification(key string) bool {
	for _, k := range l.NotificationsSent {
		if k == key {
			return true
		}
	}
	return false
}

// LoanSettings are the tunables persisted next to the loans.
type LoanSettings struct {
	MaxLoanDays       int   `json:"maxLoanDays"`
	MaxExtensions     int   `json:"maxExtensions"`
	ReminderDays      []int `json:"reminderDaysBefore"`
	OverdueDays       []int `json:"overdueReminderDays"`
	AutoNotifications bool  `json:"autoNotifications"`
}

// SettingsPatch is the persisted form of LoanSettings. Absent fields keep
// the value they are applied over.
type SettingsPatch struct {
	MaxLoanDays       *int   `json:"maxLoanDays,omitempty"`
	MaxExtensions     *int   `json:"maxExtensions,omitempty"`
	ReminderDays      *[]int `json:"reminderDaysBefore,omitempty"`
	OverdueDays       *[]int `json:"overdueReminderDays,omitempty"`
	AutoNotifications *bool  `json:"autoNotifications,omitempty"`
}

// Apply returns base with every field present in p overriding it.
func (p SettingsPatch) Apply(base LoanSettings) LoanSettings {
	out := base
	if p.MaxLoanDays != nil {
		out.MaxLoanDays = *p.MaxLoanDays
	}
	if p.MaxExtensions != nil {
		out.MaxExtensions = *p.MaxExtensions
	}
	if p.ReminderDays != nil {
		out.ReminderDays = append([]int{}, (*p.ReminderDays)...)
	}
	if p.OverdueDays != nil {
		out.OverdueDays = append([]int{}, (*p.OverdueDays)...)
	}
	if p.AutoNotifications != nil {
		out.AutoNotifications = *p.AutoNotifications
	}
	return out
}

// Merge returns p with the fields present in next overriding it.
func (p SettingsPatch) Merge(next SettingsPatch) SettingsPatch {
	if next.MaxLoanDays != nil {
		p.MaxLoanDays = next.MaxLoanDays
	}
	if next.MaxExtensions != nil {
		p.MaxExtensions = next.MaxExtensions
	}
	if next.ReminderDays != nil {
		p.ReminderDays = next.ReminderDays
	}
	if next.OverdueDays != nil {
		p.OverdueDays = next.OverdueDays
	}
	if next.AutoNotifications != nil {
		p.AutoNotifications = next.AutoNotifications
	}
	return p
}

// LoansDocument is the persisted shape of the loans resource.
type LoansDocument struct {
	Loans    []*Loan        `json:"loans"`
	Settings *SettingsPatch `json:"settings,omitempty"`
}

// Find returns the loan with the given id, or nil.
func (d *LoansDocument) Find(id string) *Loan {
	for _, l := range d.Loans {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// LoanHistoryRecord is one entry of the global loan history log.
type LoanHistoryRecord struct {
	ID              string         `json:"id"`
	LoanID          string         `json:"loanId"`
	EventType       LoanEvent      `json:"eventType"`
	Date            time.Time      `json:"date"`
	ComputerID      string         `json:"computerId"`
	ComputerName    string         `json:"computerName"`
	UserName        string         `json:"userName"`
	UserDisplayName string         `json:"userDisplayName"`
	ActorID         string         `json:"actorId,omitempty"`
	ActorName       string         `json:"actorName,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

// LoanHistoryDocument is the persisted shape of the loan_history resource.
type LoanHistoryDocument struct {
	Events []LoanHistoryRecord `json:"events"`
}
