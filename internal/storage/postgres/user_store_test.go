package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

func TestUserStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	u := &domain.User{
		ID:            "user-1",
		Email:         "alice@example.com",
		WalletAddress: "Addr1",
	}

	err := store.Upsert(ctx, u)
	require.NoError(t, err)

	got, err := store.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Addr1", got.WalletAddress)
}

func TestUserStore_GetUserByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	_, err := store.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUserStore_EmptyEmailStoredAsNull(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	err := store.Upsert(ctx, &domain.User{ID: "user-1", WalletAddress: "Addr1"})
	require.NoError(t, err)

	got, err := store.GetUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got.Email)
}

func TestUserStore_Upsert_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewUserStore(pool)
	ctx := context.Background()

	err := store.Upsert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Upsert(ctx, &domain.User{ID: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
