package clickhouse

import (
	"context"
	"fmt"

	"katlog/internal/domain"
	"katlog/internal/storage"
)

// DeliveryLogStore implements storage.DeliveryLogStore using ClickHouse.
type DeliveryLogStore struct {
	conn *Conn
}

// NewDeliveryLogStore creates a new DeliveryLogStore.
func NewDeliveryLogStore(conn *Conn) *DeliveryLogStore {
	return &DeliveryLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DeliveryLogStore = (*DeliveryLogStore)(nil)

// InsertBulk appends multiple delivery events in a single batch.
func (s *DeliveryLogStore) InsertBulk(ctx context.Context, events []*domain.DeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO delivery_events (
			timestamp_ms, signature, user_id, client_id, channel, address, outcome, error
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			uint64(e.Timestamp), e.Signature, e.UserID, e.ClientID,
			e.Channel, e.Address, e.Outcome, e.Error,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySignature retrieves all delivery events for a signature, ordered by timestamp ASC.
func (s *DeliveryLogStore) GetBySignature(ctx context.Context, signature string) ([]*domain.DeliveryEvent, error) {
	query := `
		SELECT timestamp_ms, signature, user_id, client_id, channel, address, outcome, error
		FROM delivery_events
		WHERE signature = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query by signature: %w", err)
	}
	defer rows.Close()

	return scanDeliveryEvents(rows)
}

// GetByUserID retrieves all delivery events for a user, ordered by timestamp ASC.
func (s *DeliveryLogStore) GetByUserID(ctx context.Context, userID string) ([]*domain.DeliveryEvent, error) {
	query := `
		SELECT timestamp_ms, signature, user_id, client_id, channel, address, outcome, error
		FROM delivery_events
		WHERE user_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query by user id: %w", err)
	}
	defer rows.Close()

	return scanDeliveryEvents(rows)
}

// CountByOutcome aggregates delivered/failed/skipped counts per channel.
func (s *DeliveryLogStore) CountByOutcome(ctx context.Context) (map[string]map[string]uint64, error) {
	query := `
		SELECT channel, outcome, count(*)
		FROM delivery_events
		GROUP BY channel, outcome
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]uint64)
	for rows.Next() {
		var channel, outcome string
		var count uint64
		if err := rows.Scan(&channel, &outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count row: %w", err)
		}
		if counts[channel] == nil {
			counts[channel] = make(map[string]uint64)
		}
		counts[channel][outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome count rows: %w", err)
	}

	return counts, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDeliveryEvents scans multiple rows into a slice.
func scanDeliveryEvents(rows chRows) ([]*domain.DeliveryEvent, error) {
	var events []*domain.DeliveryEvent

	for rows.Next() {
		var e domain.DeliveryEvent
		var timestampMs uint64

		err := rows.Scan(
			&timestampMs, &e.Signature, &e.UserID, &e.ClientID,
			&e.Channel, &e.Address, &e.Outcome, &e.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery event row: %w", err)
		}

		e.Timestamp = int64(timestampMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery event rows: %w", err)
	}

	return events, nil
}
