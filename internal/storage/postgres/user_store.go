package postgres

import (
	"context"
	"fmt"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// GetUserByID retrieves a user. Returns ErrNotFound if the user does not exist.
func (s *UserStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, COALESCE(email, ''), wallet_address
		FROM users
		WHERE id = $1
	`

	u := &domain.User{}
	err := s.pool.QueryRow(ctx, query, userID).Scan(&u.ID, &u.Email, &u.WalletAddress)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// Upsert stores or replaces a user. Not part of the storage.UserStore
// contract; used for seeding.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (id, email, wallet_address)
		VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, wallet_address = EXCLUDED.wallet_address
	`

	if _, err := s.pool.Exec(ctx, query, u.ID, u.Email, u.WalletAddress); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
