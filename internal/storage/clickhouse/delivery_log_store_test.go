package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katlog/internal/domain"
)

func TestDeliveryLogStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeliveryLogStore(conn)
	ctx := context.Background()

	// Test empty insert
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	events := []*domain.DeliveryEvent{
		{
			Timestamp: 1000,
			Signature: "sig-1",
			UserID:    "user-1",
			ClientID:  "client-1",
			Channel:   domain.ChannelPush,
			Outcome:   domain.OutcomeDelivered,
		},
		{
			Timestamp: 2000,
			Signature: "sig-1",
			UserID:    "user-1",
			Channel:   domain.ChannelEmail,
			Address:   "Addr1",
			Outcome:   domain.OutcomeFailed,
			Error:     "smtp timeout",
		},
	}

	err = store.InsertBulk(ctx, events)
	require.NoError(t, err)

	got, err := store.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, "client-1", got[0].ClientID)
	assert.Equal(t, domain.ChannelPush, got[0].Channel)
	assert.Equal(t, domain.OutcomeDelivered, got[0].Outcome)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, domain.ChannelEmail, got[1].Channel)
	assert.Equal(t, "Addr1", got[1].Address)
	assert.Equal(t, "smtp timeout", got[1].Error)
}

func TestDeliveryLogStore_GetByUserID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeliveryLogStore(conn)
	ctx := context.Background()

	events := []*domain.DeliveryEvent{
		{Timestamp: 3000, Signature: "sig-b", UserID: "user-1", Channel: domain.ChannelPush, Outcome: domain.OutcomeDelivered},
		{Timestamp: 1000, Signature: "sig-a", UserID: "user-1", Channel: domain.ChannelPush, Outcome: domain.OutcomeDelivered},
		{Timestamp: 2000, Signature: "sig-a", UserID: "user-2", Channel: domain.ChannelEmail, Outcome: domain.OutcomeSkipped},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	got, err := store.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by timestamp ascending
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(3000), got[1].Timestamp)

	got, err = store.GetByUserID(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeliveryLogStore_CountByOutcome(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDeliveryLogStore(conn)
	ctx := context.Background()

	events := []*domain.DeliveryEvent{
		{Timestamp: 1, Signature: "s1", UserID: "u1", Channel: domain.ChannelPush, Outcome: domain.OutcomeDelivered},
		{Timestamp: 2, Signature: "s1", UserID: "u2", Channel: domain.ChannelPush, Outcome: domain.OutcomeDelivered},
		{Timestamp: 3, Signature: "s1", UserID: "u3", Channel: domain.ChannelPush, Outcome: domain.OutcomeFailed},
		{Timestamp: 4, Signature: "s1", UserID: "u1", Channel: domain.ChannelEmail, Outcome: domain.OutcomeSkipped},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	counts, err := store.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counts[domain.ChannelPush][domain.OutcomeDelivered])
	assert.Equal(t, uint64(1), counts[domain.ChannelPush][domain.OutcomeFailed])
	assert.Equal(t, uint64(1), counts[domain.ChannelEmail][domain.OutcomeSkipped])
}
