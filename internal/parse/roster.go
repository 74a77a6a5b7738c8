package parse

import (
	"fmt"
	"strings"

	"loan-desk-backend/internal/model"
)

// DefaultServer is assigned to roster users whose server cell is empty.
const DefaultServer = "SRV-RDS-1"

// Roster column headers. Password and office columns are never read.
const (
	ColUsername    = "Identifiant"
	ColDisplayName = "Nom complet"
	ColDepartment  = "Service"
	ColEmail       = "Email"
	ColServer      = "Serveur"
)

// RowError reports a roster row that was skipped.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

type columns struct {
	username, displayName, department, email, server int
}

func headerIndex(header []string) (columns, error) {
	c := columns{-1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(NormalizeName(h)) {
		case strings.ToLower(ColUsername):
			c.username = i
		case strings.ToLower(ColDisplayName):
			c.displayName = i
		case strings.ToLower(ColDepartment):
			c.department = i
		case strings.ToLower(ColEmail):
			c.email = i
		case strings.ToLower(ColServer):
			c.server = i
		}
	}
	if c.username < 0 {
		return c, fmt.Errorf("missing %q column", ColUsername)
	}
	return c, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return NormalizeName(row[i])
}

// ParseRoster maps spreadsheet rows to roster users. The first row must be
// the header. Rows without a username and repeated usernames are skipped
// and reported; the first occurrence of a username wins.
func ParseRoster(rows [][]string) ([]model.RosterUser, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("roster is empty")
	}
	cols, err := headerIndex(rows[0])
	if err != nil {
		return nil, nil, err
	}

	users := make([]model.RosterUser, 0, len(rows)-1)
	var skipped []RowError
	seen := make(map[string]bool)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		username := NormalizeUsername(cell(row, cols.username))
		if username == "" {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "missing username"})
			continue
		}
		if seen[username] {
			skipped = append(skipped, RowError{Row: rowNum, Reason: "duplicate username " + username})
			continue
		}
		seen[username] = true

		u := model.RosterUser{
			Username:    username,
			DisplayName: cell(row, cols.displayName),
			Department:  cell(row, cols.department),
			Email:       strings.ToLower(cell(row, cols.email)),
			Server:      cell(row, cols.server),
		}
		if u.DisplayName == "" {
			u.DisplayName = username
		}
		if u.Server == "" {
			u.Server = DefaultServer
		}
		users = append(users, u)
	}
	return users, skipped, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
