// Package fanout matches incoming transaction batches against user
// watchlists and pushes the relevant subset to each live connection.
package fanout

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"katlog/internal/domain"
	"katlog/internal/observability"
	"katlog/internal/registry"
	"katlog/internal/storage"
)

// Engine distributes transaction batches to registered clients.
type Engine struct {
	registry    *registry.Registry
	watchlists  storage.WatchlistStore
	deliveryLog storage.DeliveryLogStore // optional
	logger      *log.Logger
}

// Options contains configuration for creating an Engine.
type Options struct {
	Registry       *registry.Registry
	WatchlistStore storage.WatchlistStore
	DeliveryLog    storage.DeliveryLogStore // nil disables delivery logging
	Logger         *log.Logger
}

// New creates a fan-out engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		registry:    opts.Registry,
		watchlists:  opts.WatchlistStore,
		deliveryLog: opts.DeliveryLog,
		logger:      logger,
	}
}

// Distribute pushes each connection's relevant subset of the batch. The
// registry snapshot is taken up front; connections registered afterwards
// see only later batches. Pushes run concurrently and failures on one
// connection never affect another. Blocks until all pushes settle.
func (e *Engine) Distribute(ctx context.Context, batch []domain.AccountAction) {
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	clients := e.registry.Snapshot()

	var wg sync.WaitGroup
	for _, client := range clients {
		wg.Add(1)
		go func(c *registry.Client) {
			defer wg.Done()
			e.pushTo(ctx, c, batch)
		}(client)
	}
	wg.Wait()

	observability.DefaultMetrics.FanoutDuration.Observe(time.Since(start).Seconds())
}

// pushTo filters the batch against a fresh read of the owning user's
// watchlist and pushes the result if non-empty.
func (e *Engine) pushTo(ctx context.Context, client *registry.Client, batch []domain.AccountAction) {
	watchlist, err := e.watchlists.GetWatchlistByUserID(ctx, client.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return
		}
		observability.RecordWatchlistReadError()
		e.logger.Printf("[fanout] watchlist read for user %s: %v", client.UserID, err)
		return
	}

	relevant := watchlist.FilterRelevant(batch)
	if len(relevant) == 0 {
		return
	}

	if err := client.Send(domain.NewTransactionsEnvelope(relevant)); err != nil {
		observability.RecordPushError()
		e.logger.Printf("[fanout] push to client %s: %v", client.ClientID, err)
		e.registry.UnregisterClient(client)
		e.logDeliveries(ctx, client, relevant, domain.OutcomeFailed, err.Error())
		return
	}

	observability.RecordPush(len(relevant))
	e.logDeliveries(ctx, client, relevant, domain.OutcomeDelivered, "")
}

// logDeliveries records one delivery event per pushed transaction.
func (e *Engine) logDeliveries(ctx context.Context, client *registry.Client, txs []domain.AccountAction, outcome, errMsg string) {
	if e.deliveryLog == nil {
		return
	}

	now := time.Now().UnixMilli()
	events := make([]*domain.DeliveryEvent, len(txs))
	for i := range txs {
		events[i] = &domain.DeliveryEvent{
			Timestamp: now,
			Signature: txs[i].Signature,
			UserID:    client.UserID,
			ClientID:  client.ClientID,
			Channel:   domain.ChannelPush,
			Outcome:   outcome,
			Error:     errMsg,
		}
	}

	if err := e.deliveryLog.InsertBulk(ctx, events); err != nil {
		e.logger.Printf("[fanout] delivery log insert: %v", err)
	}
}
