// Package tracker maintains the consuming side's view of pushed
// transactions: a per-address map keyed by concerned watched address and a
// capped flat list of recent records. The two views always hold the same
// status for a given signature.
package tracker

import (
	"log"
	"sync"

	"katlog/internal/domain"
)

// DefaultMaxRecent bounds the flat recent-records list.
const DefaultMaxRecent = 500

// Tracker holds received transactions, exploded into one record per
// concerned watched address. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	byAddress map[string][]domain.WatchlistAccountTransaction
	recent    []domain.WatchlistAccountTransaction // newest first
	maxRecent int
	logger    *log.Logger
}

// Options contains configuration for creating a Tracker.
type Options struct {
	MaxRecent int // cap on the flat recent list, DefaultMaxRecent if <= 0
	Logger    *log.Logger
}

// New creates an empty tracker.
func New(opts Options) *Tracker {
	maxRecent := opts.MaxRecent
	if maxRecent <= 0 {
		maxRecent = DefaultMaxRecent
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Tracker{
		byAddress: make(map[string][]domain.WatchlistAccountTransaction),
		maxRecent: maxRecent,
		logger:    logger,
	}
}

// Add records a batch against the given watchlist items. Each transaction
// produces one record per matching item, so a transfer between two watched
// addresses shows up under both. A (signature, address) pair already present
// is skipped. Incoming transactions start at processed unless they carry a
// stronger status already. Returns the records that were actually added,
// newest first.
func (t *Tracker) Add(batch []domain.AccountAction, items []domain.WatchlistItem) []domain.WatchlistAccountTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var added []domain.WatchlistAccountTransaction
	for i := range batch {
		action := batch[i]
		if !action.Status.AtLeast(domain.StatusProcessed) {
			action.Status = domain.StatusProcessed
		}

		for j := range items {
			item := &items[j]
			if !item.Matches(&action) {
				continue
			}
			if t.hasLocked(item.Address, action.Signature) {
				continue
			}

			record := domain.WatchlistAccountTransaction{
				ConcernedAddress: item.Address,
				Label:            item.Label,
				Action:           action,
			}
			t.byAddress[item.Address] = prepend(t.byAddress[item.Address], record, 0)
			t.recent = prepend(t.recent, record, t.maxRecent)
			added = append(added, record)
		}
	}
	return added
}

// ApplyStatus upgrades the status of every record with the given signature,
// in both views. Downgrades are ignored: commitment only strengthens.
// Reports whether any record changed.
func (t *Tracker) ApplyStatus(signature string, status domain.ConfirmationStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := false
	update := func(records []domain.WatchlistAccountTransaction) {
		for i := range records {
			a := &records[i].Action
			if a.Signature != signature {
				continue
			}
			if status.AtLeast(a.Status) && status != a.Status {
				a.Status = status
				changed = true
			}
		}
	}

	for _, records := range t.byAddress {
		update(records)
	}
	update(t.recent)
	return changed
}

// MarkChecked stamps LastStatusCheck on every record with the given
// signature, in both views.
func (t *Tracker) MarkChecked(signature string, now int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := func(records []domain.WatchlistAccountTransaction) {
		for i := range records {
			if records[i].Action.Signature == signature {
				records[i].Action.LastStatusCheck = now
			}
		}
	}

	for _, records := range t.byAddress {
		stamp(records)
	}
	stamp(t.recent)
}

// PendingStatus identifies one tracked signature that has not reached
// finalized yet.
type PendingStatus struct {
	Signature       string
	Status          domain.ConfirmationStatus
	LastStatusCheck int64
}

// Pending returns the unique non-finalized signatures with their current
// status and last check time.
func (t *Tracker) Pending() []PendingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The per-address map is authoritative: the recent list is capped and
	// may have evicted older records that still await finalization.
	seen := make(map[string]bool)
	var pending []PendingStatus
	for _, records := range t.byAddress {
		for i := range records {
			a := &records[i].Action
			if a.Status == domain.StatusFinalized || seen[a.Signature] {
				continue
			}
			seen[a.Signature] = true
			pending = append(pending, PendingStatus{
				Signature:       a.Signature,
				Status:          a.Status,
				LastStatusCheck: a.LastStatusCheck,
			})
		}
	}
	return pending
}

// ByAddress returns a copy of the records for one concerned address, newest
// first.
func (t *Tracker) ByAddress(address string) []domain.WatchlistAccountTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.WatchlistAccountTransaction(nil), t.byAddress[address]...)
}

// Recent returns a copy of the flat recent list, newest first.
func (t *Tracker) Recent() []domain.WatchlistAccountTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.WatchlistAccountTransaction(nil), t.recent...)
}

// Addresses returns the concerned addresses that have at least one record.
func (t *Tracker) Addresses() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	addresses := make([]string, 0, len(t.byAddress))
	for address := range t.byAddress {
		addresses = append(addresses, address)
	}
	return addresses
}

// hasLocked reports whether the address bucket already holds the signature.
// Caller holds t.mu.
func (t *Tracker) hasLocked(address, signature string) bool {
	for i := range t.byAddress[address] {
		if t.byAddress[address][i].Action.Signature == signature {
			return true
		}
	}
	return false
}

// prepend inserts a record at the head, truncating to max when max > 0.
func prepend(records []domain.WatchlistAccountTransaction, record domain.WatchlistAccountTransaction, max int) []domain.WatchlistAccountTransaction {
	records = append([]domain.WatchlistAccountTransaction{record}, records...)
	if max > 0 && len(records) > max {
		records = records[:max]
	}
	return records
}
