package stub

import (
	"context"
	"sync"

	"katlog/internal/solana"
)

// RPCClient implements solana.RPCClient for testing. Each signature carries
// a scripted sequence of statuses: successive calls consume the sequence and
// the final entry repeats once reached.
type RPCClient struct {
	mu        sync.Mutex
	sequences map[string][]string
	errs      map[string]error
	calls     map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		sequences: make(map[string][]string),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// Script sets the status sequence returned for a signature.
func (c *RPCClient) Script(signature string, statuses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences[signature] = statuses
}

// Fail makes every status check for a signature return err.
func (c *RPCClient) Fail(signature string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[signature] = err
}

// Calls returns how many times a signature's status has been checked.
func (c *RPCClient) Calls(signature string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[signature]
}

// GetConfirmationStatus returns the next scripted status for the signature.
// Unknown signatures return "".
func (c *RPCClient) GetConfirmationStatus(_ context.Context, signature string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked(signature)
}

// GetSignatureStatuses returns scripted statuses positionally aligned with
// the input signatures; unknown signatures map to nil.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		status, err := c.nextLocked(sig)
		if err != nil {
			return nil, err
		}
		if status == "" {
			continue
		}
		statuses[i] = &solana.SignatureStatus{ConfirmationStatus: status}
	}
	return statuses, nil
}

func (c *RPCClient) nextLocked(signature string) (string, error) {
	c.calls[signature]++
	if err := c.errs[signature]; err != nil {
		return "", err
	}
	seq := c.sequences[signature]
	if len(seq) == 0 {
		return "", nil
	}
	idx := c.calls[signature] - 1
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}
