package solana

import "context"

// RPCClient defines the confirmation-status lookup interface.
type RPCClient interface {
	// GetSignatureStatuses retrieves statuses for a batch of signatures.
	// The result slice is positionally aligned with the input; a nil entry
	// means the signature is unknown to the cluster.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetConfirmationStatus retrieves the confirmation status of a single
	// signature. Returns "" when the signature is unknown.
	GetConfirmationStatus(ctx context.Context, signature string) (string, error)
}

// SignatureStatus represents a signature's confirmation state.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64 // nil once rooted
	ConfirmationStatus string  // "processed", "confirmed", "finalized"
	Err                interface{}
}
