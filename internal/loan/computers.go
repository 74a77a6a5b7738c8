package loan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// Computers returns the shared inventory.
func (s *Service) Computers(ctx context.Context) ([]*model.Computer, store.Meta) {
	doc, meta := store.Load(ctx, s.store, store.KeyComputers, model.ComputersDocument{})
	if doc.Computers == nil {
		doc.Computers = []*model.Computer{}
	}
	return doc.Computers, meta
}

// SaveComputer inserts or updates an inventory entry. The loan pointer and
// usage counters are owned by the loan operations and cannot be set here;
// the status of a computer on loan is left unchanged.
func (s *Service) SaveComputer(ctx context.Context, actor model.Technician, in model.Computer) (*model.Computer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("computer name is required")
	}
	switch in.Status {
	case "":
		in.Status = model.ComputerAvailable
	case model.ComputerAvailable, model.ComputerMaintenance:
	default:
		return nil, invalid(fmt.Sprintf("status %s is set by loan operations", in.Status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadComputers(ctx)
	for _, c := range doc.Computers {
		if c.ID != in.ID && in.SerialNumber != "" && strings.EqualFold(c.SerialNumber, in.SerialNumber) {
			return nil, invalid(fmt.Sprintf("serial number %s already used by %s", in.SerialNumber, c.Name))
		}
	}

	c := doc.Find(in.ID)
	if c == nil {
		c = &model.Computer{ID: in.ID, CreatedAt: now}
		if c.ID == "" {
			c.ID = s.newID()
		}
		doc.Computers = append(doc.Computers, c)
	}
	c.Name = in.Name
	c.SerialNumber = in.SerialNumber
	if c.CurrentLoanID == "" {
		c.Status = in.Status
	}
	c.Specifications = in.Specifications
	touch(c, actor, now)

	if err := store.Save(ctx, s.store, store.KeyComputers, doc); err != nil {
		return c, fmt.Errorf("save computers: %w", err)
	}
	return c, nil
}

// DeleteComputer removes a computer from the inventory. A computer with a
// loan in progress cannot be removed.
func (s *Service) DeleteComputer(ctx context.Context, actor model.Technician, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.loadComputers(ctx)
	c := doc.Find(id)
	if c == nil {
		return ErrComputerNotFound
	}
	if c.CurrentLoanID != "" {
		return invalid(fmt.Sprintf("computer %s is on loan", c.Name))
	}
	doc.Remove(id)
	slog.Info("Computer deleted", slog.String("computer_id", id), logfields.Technician(actor.ID))
	if err := store.Save(ctx, s.store, store.KeyComputers, doc); err != nil {
		return fmt.Errorf("save computers: %w", err)
	}
	return nil
}

// Maintenance describes an intervention to log on a computer.
type Maintenance struct {
	Type                string     `json:"type"`
	Description         string     `json:"description"`
	NextMaintenanceDate *time.Time `json:"nextMaintenanceDate"`
}

// AddMaintenance appends a maintenance record and moves the computer's last
// and next maintenance dates.
func (s *Service) AddMaintenance(ctx context.Context, actor model.Technician, id string, in Maintenance) (*model.Computer, error) {
	if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.Type) == "" {
		return nil, invalid("maintenance type or description is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc := s.loadComputers(ctx)
	c := doc.Find(id)
	if c == nil {
		return nil, ErrComputerNotFound
	}
	if in.NextMaintenanceDate != nil && !in.NextMaintenanceDate.After(now) {
		return nil, invalid("next maintenance date must be in the future")
	}
	performedBy := actor.Name
	if performedBy == "" {
		performedBy = actor.ID
	}
	c.MaintenanceHistory = append(c.MaintenanceHistory, model.MaintenanceRecord{
		ID:          s.newID(),
		Type:        in.Type,
		Description: in.Description,
		PerformedBy: performedBy,
		Date:        now,
	})
	c.LastMaintenanceDate = &now
	c.NextMaintenanceDate = in.NextMaintenanceDate
	touch(c, actor, now)

	if err := store.Save(ctx, s.store, store.KeyComputers, doc); err != nil {
		return c, fmt.Errorf("save computers: %w", err)
	}
	return c, nil
}
