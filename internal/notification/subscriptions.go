package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-desk-backend/internal/model"
	"loan-desk-backend/internal/store"
)

// Subscriptions manages the push_subscriptions resource.
type Subscriptions struct {
	store store.Store
	mu    sync.Mutex
	now   func() time.Time
}

func NewSubscriptions(st store.Store) *Subscriptions {
	return &Subscriptions{store: st, now: time.Now}
}

// List returns every registered subscription.
func (s *Subscriptions) List(ctx context.Context) []model.PushSubscription {
	doc, _ := store.Load(ctx, s.store, store.KeySubscriptions, model.SubscriptionsDocument{})
	return doc.Subscriptions
}

// Find returns the subscription registered for endpoint.
func (s *Subscriptions) Find(ctx context.Context, endpoint string) (model.PushSubscription, bool) {
	for _, sub := range s.List(ctx) {
		if sub.Endpoint == endpoint {
			return sub, true
		}
	}
	return model.PushSubscription{}, false
}

// Upsert registers or refreshes a subscription keyed by its endpoint.
func (s *Subscriptions) Upsert(ctx context.Context, sub model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := store.Load(ctx, s.store, store.KeySubscriptions, model.SubscriptionsDocument{})
	replaced := false
	for i := range doc.Subscriptions {
		if doc.Subscriptions[i].Endpoint == sub.Endpoint {
			sub.CreatedAt = doc.Subscriptions[i].CreatedAt
			doc.Subscriptions[i] = sub
			replaced = true
			break
		}
	}
	if !replaced {
		sub.CreatedAt = s.now()
		doc.Subscriptions = append(doc.Subscriptions, sub)
	}
	if err := store.Save(ctx, s.store, store.KeySubscriptions, doc); err != nil {
		return fmt.Errorf("save subscriptions: %w", err)
	}
	return nil
}

// Remove deletes the subscription for endpoint. It reports whether one existed.
func (s *Subscriptions) Remove(ctx context.Context, endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _ := store.Load(ctx, s.store, store.KeySubscriptions, model.SubscriptionsDocument{})
	kept := doc.Subscriptions[:0]
	for _, sub := range doc.Subscriptions {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	if len(kept) == len(doc.Subscriptions) {
		return false, nil
	}
	doc.Subscriptions = kept
	if err := store.Save(ctx, s.store, store.KeySubscriptions, doc); err != nil {
		return true, fmt.Errorf("save subscriptions: %w", err)
	}
	return true, nil
}
