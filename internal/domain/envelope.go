package domain

import "encoding/json"

// Envelope types on the push channel.
const (
	EnvelopeTransactions = "transactions"
	EnvelopeConnection   = "connection"
)

// ConnectionStatusConnected is sent once after a successful upgrade.
const ConnectionStatusConnected = "connected"

// TransactionsEnvelope carries a filtered transaction batch to a client.
type TransactionsEnvelope struct {
	Type string          `json:"type"`
	Data []AccountAction `json:"data"`
}

// NewTransactionsEnvelope wraps a batch for the push channel.
func NewTransactionsEnvelope(batch []AccountAction) *TransactionsEnvelope {
	return &TransactionsEnvelope{Type: EnvelopeTransactions, Data: batch}
}

// ConnectionEnvelope acknowledges a new connection.
type ConnectionEnvelope struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// NewConnectionEnvelope builds the post-upgrade acknowledgement.
func NewConnectionEnvelope() *ConnectionEnvelope {
	return &ConnectionEnvelope{Type: EnvelopeConnection, Status: ConnectionStatusConnected}
}

// Envelope is the consumer-side view of an incoming message: Type is decoded
// first and Data deferred until the type is known.
type Envelope struct {
	Type   string          `json:"type"`
	Status string          `json:"status,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}
