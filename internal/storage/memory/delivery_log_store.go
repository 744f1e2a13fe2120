package memory

import (
	"context"
	"sync"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// DeliveryLogStore is an in-memory implementation of storage.DeliveryLogStore.
type DeliveryLogStore struct {
	mu     sync.RWMutex
	events []*domain.DeliveryEvent
}

// NewDeliveryLogStore creates a new in-memory delivery log store.
func NewDeliveryLogStore() *DeliveryLogStore {
	return &DeliveryLogStore{}
}

// Compile-time interface check.
var _ storage.DeliveryLogStore = (*DeliveryLogStore)(nil)

// InsertBulk appends delivery events.
func (s *DeliveryLogStore) InsertBulk(_ context.Context, events []*domain.DeliveryEvent) error {
	for _, e := range events {
		if e == nil || e.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		eventCopy := *e
		s.events = append(s.events, &eventCopy)
	}
	return nil
}

// Events returns a copy of all recorded events, in insertion order.
func (s *DeliveryLogStore) Events() []*domain.DeliveryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DeliveryEvent, len(s.events))
	for i, e := range s.events {
		eventCopy := *e
		result[i] = &eventCopy
	}
	return result
}
