package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"katlog/internal/domain"
	"katlog/internal/observability"
	"katlog/internal/storage"
)

// Dispatcher fans transaction batches out to email recipients. One email is
// sent per (user, watched address) pair that matches a transaction with
// email notifications enabled: a transfer between two of a user's watched
// addresses produces two emails.
type Dispatcher struct {
	watchlists  storage.WatchlistStore
	users       storage.UserStore
	sender      Sender
	deliveryLog storage.DeliveryLogStore // optional
	logger      *log.Logger
}

// Options contains configuration for creating a Dispatcher.
type Options struct {
	WatchlistStore storage.WatchlistStore
	UserStore      storage.UserStore
	Sender         Sender
	DeliveryLog    storage.DeliveryLogStore // nil disables delivery logging
	Logger         *log.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Dispatcher{
		watchlists:  opts.WatchlistStore,
		users:       opts.UserStore,
		sender:      opts.Sender,
		deliveryLog: opts.DeliveryLog,
		logger:      logger,
	}
}

// notification is one resolved (user, address, transaction) email to send.
type notification struct {
	userID string
	alert  Alert
}

// Dispatch sends alerts for the batch. Watchlists are read once per batch;
// sends run concurrently and a failure for one recipient never affects
// another. Blocks until all sends settle.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []domain.AccountAction) {
	if len(batch) == 0 {
		return
	}

	watchlists, err := d.watchlists.GetAllWatchlists(ctx)
	if err != nil {
		observability.RecordWatchlistReadError()
		d.logger.Printf("[notify] watchlist read: %v", err)
		return
	}

	pending := collectNotifications(watchlists, batch)
	if len(pending) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(n *notification) {
			defer wg.Done()
			d.deliver(ctx, n)
		}(&pending[i])
	}
	wg.Wait()
}

// collectNotifications resolves the (user, address, transaction) triples to
// notify. Only items with email notifications enabled and the transaction's
// network watched qualify.
func collectNotifications(watchlists []*domain.Watchlist, batch []domain.AccountAction) []notification {
	var pending []notification
	for i := range batch {
		for _, w := range watchlists {
			for _, item := range w.MatchingItems(&batch[i]) {
				if !item.EmailNotifications {
					continue
				}
				pending = append(pending, notification{
					userID: w.UserID,
					alert: Alert{
						Transaction:      batch[i],
						ConcernedAddress: item.Address,
						Label:            item.Label,
					},
				})
			}
		}
	}
	return pending
}

// deliver resolves the recipient and sends one alert. Users without an
// email on file are skipped silently.
func (d *Dispatcher) deliver(ctx context.Context, n *notification) {
	user, err := d.users.GetUserByID(ctx, n.userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordEmailSkipped()
			d.logDelivery(ctx, n, domain.OutcomeSkipped, "user not found")
			return
		}
		observability.RecordEmailFailed()
		d.logger.Printf("[notify] user lookup %s: %v", n.userID, err)
		d.logDelivery(ctx, n, domain.OutcomeFailed, err.Error())
		return
	}

	if user.Email == "" {
		observability.RecordEmailSkipped()
		d.logDelivery(ctx, n, domain.OutcomeSkipped, "")
		return
	}

	if err := d.sender.SendAlert(ctx, user.Email, &n.alert); err != nil {
		observability.RecordEmailFailed()
		d.logger.Printf("[notify] send alert to user %s: %v", n.userID, err)
		d.logDelivery(ctx, n, domain.OutcomeFailed, err.Error())
		return
	}

	observability.RecordEmailSent()
	d.logger.Printf("[notify] alert sent to user %s for %s", n.userID, n.alert.Transaction.Signature)
	d.logDelivery(ctx, n, domain.OutcomeDelivered, "")
}

func (d *Dispatcher) logDelivery(ctx context.Context, n *notification, outcome, errMsg string) {
	if d.deliveryLog == nil {
		return
	}

	event := &domain.DeliveryEvent{
		Timestamp: time.Now().UnixMilli(),
		Signature: n.alert.Transaction.Signature,
		UserID:    n.userID,
		Channel:   domain.ChannelEmail,
		Address:   n.alert.ConcernedAddress,
		Outcome:   outcome,
		Error:     errMsg,
	}

	if err := d.deliveryLog.InsertBulk(ctx, []*domain.DeliveryEvent{event}); err != nil {
		d.logger.Printf("[notify] delivery log insert: %v", err)
	}
}
