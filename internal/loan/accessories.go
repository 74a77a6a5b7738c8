package loan

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// AccessoryUsage counts how an accessory has been used across loans.
type AccessoryUsage struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Icon            string `json:"icon,omitempty"`
	Active          bool   `json:"active"`
	TotalLoans      int    `json:"totalLoans"`
	CurrentlyLoaned int    `json:"currentlyLoaned"`
	Missing         int    `json:"missing"`
}

// Accessories returns the accessory catalog. A catalog that was never
// written is seeded with the default accessories.
func (s *Service) Accessories(ctx context.Context) ([]*model.Accessory, store.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, meta := s.loadAccessories(ctx)
	return doc.Accessories, meta
}

// SaveAccessory creates an accessory when in.ID is empty and updates the
// name and icon of an existing one otherwise. New accessories are active.
func (s *Service) SaveAccessory(ctx context.Context, actor model.Technician, in model.Accessory) (*model.Accessory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("accessory name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc, _ := s.loadAccessories(ctx)
	for _, a := range doc.Accessories {
		if a.ID != in.ID && strings.EqualFold(a.Name, name) {
			return nil, invalid(fmt.Sprintf("accessory %q already exists", a.Name))
		}
	}

	var a *model.Accessory
	if in.ID == "" {
		a = &model.Accessory{ID: s.newID(), Active: true, CreatedAt: now, CreatedBy: actor.Name}
		doc.Accessories = append(doc.Accessories, a)
	} else {
		if a = doc.Find(in.ID); a == nil {
			return nil, ErrAccessoryNotFound
		}
		a.ModifiedAt = &now
		a.ModifiedBy = actor.Name
	}
	a.Name = name
	a.Icon = in.Icon

	return a, s.saveAccessories(ctx, actor, &doc)
}

// SetAccessoryActive enables or disables an accessory.
func (s *Service) SetAccessoryActive(ctx context.Context, actor model.Technician, id string, active bool) (*model.Accessory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	doc, _ := s.loadAccessories(ctx)
	a := doc.Find(id)
	if a == nil {
		return nil, ErrAccessoryNotFound
	}
	a.Active = active
	a.ModifiedAt = &now
	a.ModifiedBy = actor.Name
	return a, s.saveAccessories(ctx, actor, &doc)
}

// DeleteAccessory removes an accessory from the catalog. Loans keep the
// identifiers they already reference.
func (s *Service) DeleteAccessory(ctx context.Context, actor model.Technician, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := s.loadAccessories(ctx)
	kept := doc.Accessories[:0]
	for _, a := range doc.Accessories {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(doc.Accessories) {
		return ErrAccessoryNotFound
	}
	doc.Accessories = kept
	return s.saveAccessories(ctx, actor, &doc)
}

// AccessoryStatistics reports, for each catalog entry, how many loans
// included it, how many of those are still open and how many returns
// reported it missing.
func (s *Service) AccessoryStatistics(ctx context.Context) []AccessoryUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	catalog, _ := s.loadAccessories(ctx)
	loans := s.loadLoans(ctx).Loans

	out := make([]AccessoryUsage, 0, len(catalog.Accessories))
	for _, a := range catalog.Accessories {
		u := AccessoryUsage{ID: a.ID, Name: a.Name, Icon: a.Icon, Active: a.Active}
		for _, l := range loans {
			if !slices.Contains(l.Accessories, a.ID) {
				continue
			}
			u.TotalLoans++
			if !StatusAt(l, now).Terminal() {
				u.CurrentlyLoaned++
			}
			if l.ReturnData != nil && slices.Contains(l.ReturnData.Missing, a.ID) {
				u.Missing++
			}
		}
		out = append(out, u)
	}
	return out
}

func (s *Service) loadAccessories(ctx context.Context) (model.AccessoriesDocument, store.Meta) {
	doc, meta := store.Load(ctx, s.store, store.KeyAccessories, model.AccessoriesDocument{})
	if doc.Accessories != nil {
		return doc, meta
	}
	doc = model.DefaultAccessories(s.now())
	if !meta.Stale && !meta.Corrupt {
		if err := store.Save(ctx, s.store, store.KeyAccessories, doc); err != nil {
			slog.Warn("Failed to seed accessory catalog", logfields.Error(err))
		}
	}
	return doc, meta
}

func (s *Service) saveAccessories(ctx context.Context, actor model.Technician, doc *model.AccessoriesDocument) error {
	now := s.now()
	doc.LastModified = &now
	doc.LastModifiedBy = actor.Name
	slog.Info("Accessory catalog updated", logfields.Technician(actor.ID), logfields.Count(len(doc.Accessories)))
	if err := store.Save(ctx, s.store, store.KeyAccessories, doc); err != nil {
		return fmt.Errorf("save accessories: %w", err)
	}
	return nil
}
