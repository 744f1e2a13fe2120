package memory

import (
	"context"
	"sort"
	"sync"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// WatchlistStore is an in-memory implementation of storage.WatchlistStore.
// Used by tests and the --use-memory server mode.
type WatchlistStore struct {
	mu     sync.RWMutex
	byUser map[string]*domain.Watchlist
}

// NewWatchlistStore creates a new in-memory watchlist store.
func NewWatchlistStore() *WatchlistStore {
	return &WatchlistStore{byUser: make(map[string]*domain.Watchlist)}
}

// Compile-time interface check.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)

// Put stores or replaces a user's watchlist. Not part of the
// storage.WatchlistStore contract; the pipeline itself is read-only.
func (s *WatchlistStore) Put(w *domain.Watchlist) error {
	if w == nil || w.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wlCopy := copyWatchlist(w)
	s.byUser[w.UserID] = wlCopy
	return nil
}

// GetAllWatchlists retrieves every user's watchlist.
func (s *WatchlistStore) GetAllWatchlists(_ context.Context) ([]*domain.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Watchlist, 0, len(s.byUser))
	for _, w := range s.byUser {
		result = append(result, copyWatchlist(w))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// GetWatchlistByUserID retrieves one user's watchlist. Returns ErrNotFound
// if the user has no watchlist.
func (s *WatchlistStore) GetWatchlistByUserID(_ context.Context, userID string) (*domain.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.byUser[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyWatchlist(w), nil
}

// GetWatchedAddressesGlobally retrieves the deduplicated set of addresses
// watched by any user, sorted for deterministic output.
func (s *WatchlistStore) GetWatchedAddressesGlobally(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, w := range s.byUser {
		for _, item := range w.Items {
			seen[item.Address] = struct{}{}
		}
	}

	addresses := make([]string, 0, len(seen))
	for addr := range seen {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses, nil
}

func copyWatchlist(w *domain.Watchlist) *domain.Watchlist {
	wlCopy := &domain.Watchlist{UserID: w.UserID}
	if len(w.Items) > 0 {
		wlCopy.Items = make([]domain.WatchlistItem, len(w.Items))
		for i, item := range w.Items {
			itemCopy := item
			if len(item.WatchedNetworks) > 0 {
				itemCopy.WatchedNetworks = append([]domain.Network(nil), item.WatchedNetworks...)
			}
			wlCopy.Items[i] = itemCopy
		}
	}
	return wlCopy
}
