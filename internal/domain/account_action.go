package domain

import "fmt"

// Network identifies which Solana cluster a transaction was observed on.
type Network string

// Supported networks.
const (
	NetworkMainnet Network = "Mainnet"
	NetworkDevnet  Network = "Devnet"
	NetworkTestnet Network = "Testnet"
)

// Valid reports whether the network is one of the supported clusters.
func (n Network) Valid() bool {
	switch n {
	case NetworkMainnet, NetworkDevnet, NetworkTestnet:
		return true
	}
	return false
}

// ActionKind classifies what a transaction did.
type ActionKind string

// Action kinds as reported by the upstream indexer.
const (
	ActionTokenTransfer ActionKind = "Token Transfer"
	ActionSolTransfer   ActionKind = "Sol Transfer"
	ActionOther         ActionKind = "Other"
)

// Valid reports whether the action kind is known.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionTokenTransfer, ActionSolTransfer, ActionOther:
		return true
	}
	return false
}

// ConfirmationStatus is the blockchain commitment level of a transaction.
// Commitment strength increases processed -> confirmed -> finalized.
type ConfirmationStatus string

// Confirmation levels.
const (
	StatusProcessed ConfirmationStatus = "processed"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFinalized ConfirmationStatus = "finalized"
)

// Ordinal returns the commitment strength rank, 0 for unknown/unset.
func (s ConfirmationStatus) Ordinal() int {
	switch s {
	case StatusProcessed:
		return 1
	case StatusConfirmed:
		return 2
	case StatusFinalized:
		return 3
	}
	return 0
}

// AtLeast reports whether s is at least as strong a commitment as other.
func (s ConfirmationStatus) AtLeast(other ConfirmationStatus) bool {
	return s.Ordinal() >= other.Ordinal()
}

// AccountAction is one transaction record as delivered by the upstream
// indexer. Signature is the immutable natural key; Status and
// LastStatusCheck are the only fields mutated after creation.
type AccountAction struct {
	Signature       string             `json:"signature"`
	From            string             `json:"from"`
	To              string             `json:"to"`
	Amount          *float64           `json:"amount,omitempty"`
	Action          ActionKind         `json:"action"`
	Timestamp       string             `json:"timestamp"`
	Success         bool               `json:"success"`
	Network         Network            `json:"network"`
	Status          ConfirmationStatus `json:"status,omitempty"`
	LastStatusCheck int64              `json:"lastStatusCheck,omitempty"` // epoch ms
}

// Validate checks the fields required for distribution.
func (a *AccountAction) Validate() error {
	if a.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	if a.From == "" && a.To == "" {
		return fmt.Errorf("transaction %s: missing both from and to", a.Signature)
	}
	if !a.Action.Valid() {
		return fmt.Errorf("transaction %s: unknown action %q", a.Signature, a.Action)
	}
	if !a.Network.Valid() {
		return fmt.Errorf("transaction %s: unknown network %q", a.Signature, a.Network)
	}
	if a.Timestamp == "" {
		return fmt.Errorf("transaction %s: missing timestamp", a.Signature)
	}
	return nil
}

// Touches reports whether the transaction involves the given address
// as sender or recipient.
func (a *AccountAction) Touches(address string) bool {
	return address != "" && (a.From == address || a.To == address)
}
