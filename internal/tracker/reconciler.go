package tracker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"katlog/internal/domain"
	"katlog/internal/observability"
	"katlog/internal/solana"
)

// Reconciler defaults.
const (
	DefaultBaseInterval = 5 * time.Second
	DefaultTickInterval = 1 * time.Second
	DefaultMaxRetryAge  = 10 * time.Minute
)

// Reconciler polls the cluster for confirmation status of tracked
// transactions. Each signature is checked at most once per its own interval,
// which stretches as failed checks accumulate: base * (1 + retries/10).
type Reconciler struct {
	tracker      *Tracker
	rpc          solana.RPCClient
	baseInterval time.Duration
	tick         time.Duration
	maxRetryAge  time.Duration
	onUpgrade    func(signature string, status domain.ConfirmationStatus)
	logger       *log.Logger

	mu      sync.Mutex
	retries map[string]*retryState
}

type retryState struct {
	count int
	since time.Time
}

// ReconcilerOptions contains configuration for creating a Reconciler.
type ReconcilerOptions struct {
	Tracker      *Tracker
	RPC          solana.RPCClient
	BaseInterval time.Duration // per-signature check interval, DefaultBaseInterval if <= 0
	TickInterval time.Duration // scan frequency, DefaultTickInterval if <= 0
	MaxRetryAge  time.Duration // failing entries older than this are dropped
	// OnUpgrade is called whenever a check strengthens a tracked
	// transaction's status. Optional.
	OnUpgrade func(signature string, status domain.ConfirmationStatus)
	Logger    *log.Logger
}

// NewReconciler creates a reconciler. Call Run to start scanning.
func NewReconciler(opts ReconcilerOptions) (*Reconciler, error) {
	if opts.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if opts.RPC == nil {
		return nil, fmt.Errorf("rpc client is required")
	}

	baseInterval := opts.BaseInterval
	if baseInterval <= 0 {
		baseInterval = DefaultBaseInterval
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	maxRetryAge := opts.MaxRetryAge
	if maxRetryAge <= 0 {
		maxRetryAge = DefaultMaxRetryAge
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Reconciler{
		tracker:      opts.Tracker,
		rpc:          opts.RPC,
		baseInterval: baseInterval,
		tick:         tick,
		maxRetryAge:  maxRetryAge,
		onUpgrade:    opts.OnUpgrade,
		logger:       logger,
		retries:      make(map[string]*retryState),
	}, nil
}

// Run scans on every tick until the context is cancelled. The tick is fast
// relative to the per-signature interval; Scan decides which signatures are
// actually due.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Scan(ctx, time.Now())
		}
	}
}

// Scan checks every pending signature whose interval has elapsed.
func (r *Reconciler) Scan(ctx context.Context, now time.Time) {
	pending := r.tracker.Pending()
	observability.UpdateTrackedSignatures(len(pending))
	r.evict(pending, now)

	nowMs := now.UnixMilli()
	for _, p := range pending {
		interval := r.checkInterval(r.retryCount(p.Signature))
		if nowMs-p.LastStatusCheck < interval.Milliseconds() {
			continue
		}
		if err := r.CheckNow(ctx, p.Signature, now); err != nil {
			r.logger.Printf("[reconciler] status check %s: %v", p.Signature, err)
		}
	}
}

// CheckNow performs one immediate status check for a signature, regardless
// of its interval. Used by Scan and for the initial check when a
// transaction arrives.
func (r *Reconciler) CheckNow(ctx context.Context, signature string, now time.Time) error {
	r.tracker.MarkChecked(signature, now.UnixMilli())

	status, err := r.rpc.GetConfirmationStatus(ctx, signature)
	if err != nil {
		r.recordFailure(signature, now)
		observability.RecordStatusCheck("error")
		return fmt.Errorf("get confirmation status: %w", err)
	}
	if status == "" {
		// Not yet known to the cluster; try again next interval.
		observability.RecordStatusCheck("unknown")
		return nil
	}

	confirmed := domain.ConfirmationStatus(status)
	if confirmed.Ordinal() == 0 {
		observability.RecordStatusCheck("invalid")
		return fmt.Errorf("unexpected confirmation status %q", status)
	}

	changed := r.tracker.ApplyStatus(signature, confirmed)
	if confirmed == domain.StatusFinalized {
		r.clearRetries(signature)
	}
	observability.RecordStatusCheck(string(confirmed))

	if changed && r.onUpgrade != nil {
		r.onUpgrade(signature, confirmed)
	}
	return nil
}

// checkInterval stretches the base interval by one multiple per ten failed
// checks.
func (r *Reconciler) checkInterval(retryCount int) time.Duration {
	return r.baseInterval * time.Duration(1+retryCount/10)
}

func (r *Reconciler) retryCount(signature string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.retries[signature]; ok {
		return state.count
	}
	return 0
}

func (r *Reconciler) recordFailure(signature string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.retries[signature]
	if !ok {
		state = &retryState{since: now}
		r.retries[signature] = state
	}
	state.count++
}

func (r *Reconciler) clearRetries(signature string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retries, signature)
}

// evict drops retry entries that no longer correspond to a pending
// signature, and entries that have been failing longer than maxRetryAge.
func (r *Reconciler) evict(pending []PendingStatus, now time.Time) {
	active := make(map[string]bool, len(pending))
	for _, p := range pending {
		active[p.Signature] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for signature, state := range r.retries {
		if !active[signature] || now.Sub(state.since) > r.maxRetryAge {
			delete(r.retries, signature)
		}
	}
}
