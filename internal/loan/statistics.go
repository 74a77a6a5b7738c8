package loan

import (
	"context"
	"sort"
	"time"

	"loan-desk-backend/internal/model"
)

// Count is a name with its number of loans.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Statistics summarises the inventory and the loans.
type Statistics struct {
	Computers       map[model.ComputerStatus]int `json:"computers"`
	TotalComputers  int                          `json:"totalComputers"`
	Loans           map[model.LoanStatus]int     `json:"loans"`
	CreatedLast30   int                          `json:"createdLast30Days"`
	AverageLoanDays int                          `json:"averageLoanDays"`
	TopUsers        []Count                      `json:"topUsers"`
	TopComputers    []Count                      `json:"topComputers"`
}

const topN = 5

// Statistics computes counts per status, the average duration of returned
// loans and the most frequent borrowers and computers.
func (s *Service) Statistics(ctx context.Context) Statistics {
	loans, _ := s.List(ctx)
	computers, _ := s.Computers(ctx)
	now := s.now()

	st := Statistics{
		Computers:      map[model.ComputerStatus]int{},
		TotalComputers: len(computers),
		Loans:          map[model.LoanStatus]int{},
	}
	for _, c := range computers {
		st.Computers[c.Status]++
	}

	users := map[string]int{}
	machines := map[string]int{}
	var returned, returnedDays int
	for _, l := range loans {
		st.Loans[l.Status]++
		users[l.UserName]++
		machines[l.ComputerName]++
		if l.CreatedAt.After(now.Add(-30 * 24 * time.Hour)) {
			st.CreatedLast30++
		}
		if l.Status == model.LoanReturned && l.ActualReturnDate != nil {
			returned++
			returnedDays += max(0, durationDays(l.LoanDate, *l.ActualReturnDate))
		}
	}
	if returned > 0 {
		st.AverageLoanDays = (returnedDays + returned/2) / returned
	}
	st.TopUsers = top(users)
	st.TopComputers = top(machines)
	return st
}

func top(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
