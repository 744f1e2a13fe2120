package storage

import (
	"context"

	"katlog/internal/domain"
)

// WatchlistStore provides read access to user watchlists. The distribution
// pipeline never mutates watchlists; writes happen in the main application.
type WatchlistStore interface {
	// GetAllWatchlists retrieves every user's watchlist.
	GetAllWatchlists(ctx context.Context) ([]*domain.Watchlist, error)

	// GetWatchlistByUserID retrieves one user's watchlist.
	// Returns ErrNotFound if the user has no watchlist.
	GetWatchlistByUserID(ctx context.Context, userID string) (*domain.Watchlist, error)

	// GetWatchedAddressesGlobally retrieves the deduplicated set of
	// addresses watched by any user.
	GetWatchedAddressesGlobally(ctx context.Context) ([]string, error)
}

// UserStore provides read access to watchlist owners.
type UserStore interface {
	// GetUserByID retrieves a user. The returned user's Email is empty
	// when no email is on file. Returns ErrNotFound if the user does
	// not exist.
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

// DeliveryLogStore records fan-out and notification outcomes for analytics.
type DeliveryLogStore interface {
	// InsertBulk appends delivery events. Events are immutable once written.
	InsertBulk(ctx context.Context, events []*domain.DeliveryEvent) error
}
