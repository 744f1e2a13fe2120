package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// WatchlistStore implements storage.WatchlistStore using PostgreSQL.
// Items are stored as a JSONB document per user, matching the document
// shape the main application writes.
type WatchlistStore struct {
	pool *Pool
}

// NewWatchlistStore creates a new WatchlistStore.
func NewWatchlistStore(pool *Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)

// GetAllWatchlists retrieves every user's watchlist.
func (s *WatchlistStore) GetAllWatchlists(ctx context.Context) ([]*domain.Watchlist, error) {
	query := `
		SELECT user_id, items
		FROM watchlists
		ORDER BY user_id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query watchlists: %w", err)
	}
	defer rows.Close()

	var result []*domain.Watchlist
	for rows.Next() {
		var userID string
		var itemsJSON []byte
		if err := rows.Scan(&userID, &itemsJSON); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}

		w, err := decodeWatchlist(userID, itemsJSON)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlists: %w", err)
	}
	return result, nil
}

// GetWatchlistByUserID retrieves one user's watchlist. Returns ErrNotFound
// if the user has no watchlist.
func (s *WatchlistStore) GetWatchlistByUserID(ctx context.Context, userID string) (*domain.Watchlist, error) {
	query := `
		SELECT user_id, items
		FROM watchlists
		WHERE user_id = $1
	`

	var id string
	var itemsJSON []byte
	err := s.pool.QueryRow(ctx, query, userID).Scan(&id, &itemsJSON)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get watchlist by user id: %w", err)
	}

	return decodeWatchlist(id, itemsJSON)
}

// GetWatchedAddressesGlobally retrieves the deduplicated set of addresses
// watched by any user.
func (s *WatchlistStore) GetWatchedAddressesGlobally(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT item->>'address'
		FROM watchlists, jsonb_array_elements(items) AS item
		ORDER BY 1
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query watched addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}

// Upsert stores or replaces a user's watchlist. Not part of the
// storage.WatchlistStore contract; used for seeding and by deployments
// colocated with the main application.
func (s *WatchlistStore) Upsert(ctx context.Context, w *domain.Watchlist) error {
	if w == nil || w.UserID == "" {
		return storage.ErrInvalidInput
	}

	items := w.Items
	if items == nil {
		items = []domain.WatchlistItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal watchlist items: %w", err)
	}

	query := `
		INSERT INTO watchlists (user_id, items)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items
	`

	if _, err := s.pool.Exec(ctx, query, w.UserID, itemsJSON); err != nil {
		return fmt.Errorf("upsert watchlist: %w", err)
	}
	return nil
}

func decodeWatchlist(userID string, itemsJSON []byte) (*domain.Watchlist, error) {
	w := &domain.Watchlist{UserID: userID}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &w.Items); err != nil {
			return nil, fmt.Errorf("decode watchlist items for user %s: %w", userID, err)
		}
	}
	return w, nil
}
