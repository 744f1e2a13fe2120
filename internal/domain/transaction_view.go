package domain

// WatchlistAccountTransaction is the consuming side's view of a pushed
// transaction, attached to one concerned watched address. A transaction
// touching two watched addresses yields two records, one per address.
// Label is a snapshot of the watchlist label at time of receipt.
type WatchlistAccountTransaction struct {
	ConcernedAddress string        `json:"concernedAddress"`
	Label            string        `json:"label"`
	Action           AccountAction `json:"action"`
}

// DeliveryEvent records one fan-out or notification outcome for analytics.
type DeliveryEvent struct {
	Timestamp int64  // epoch ms
	Signature string
	UserID    string
	ClientID  string // empty for email deliveries
	Channel   string // "push" or "email"
	Address   string // concerned address, empty for push deliveries
	Outcome   string // "delivered", "failed", "skipped"
	Error     string // empty on success
}

// Delivery channels.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)
