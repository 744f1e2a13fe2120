package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected method getSignatureStatuses, got %s", req.Method)
		}

		if len(req.Params) != 2 {
			t.Fatalf("expected 2 params, got %d", len(req.Params))
		}
		config, ok := req.Params[1].(map[string]interface{})
		if !ok || config["searchTransactionHistory"] != true {
			t.Errorf("expected searchTransactionHistory=true, got %v", req.Params[1])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"slot":               int64(123456),
						"confirmations":      int64(5),
						"confirmationStatus": "confirmed",
						"err":                nil,
					},
					nil,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	statuses, err := client.GetSignatureStatuses(ctx, []string{"sig1", "sig2"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	if statuses[0] == nil {
		t.Fatal("expected status for sig1, got nil")
	}
	if statuses[0].ConfirmationStatus != "confirmed" {
		t.Errorf("expected confirmed, got %s", statuses[0].ConfirmationStatus)
	}
	if statuses[0].Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", statuses[0].Slot)
	}
	if statuses[0].Confirmations == nil || *statuses[0].Confirmations != 5 {
		t.Errorf("expected 5 confirmations, got %v", statuses[0].Confirmations)
	}

	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown sig2, got %+v", statuses[1])
	}
}

func TestHTTPClient_GetConfirmationStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"slot":               int64(100),
						"confirmationStatus": "finalized",
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	status, err := client.GetConfirmationStatus(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetConfirmationStatus: %v", err)
	}
	if status != "finalized" {
		t.Errorf("expected finalized, got %q", status)
	}
}

func TestHTTPClient_GetConfirmationStatus_Unknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{nil},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	status, err := client.GetConfirmationStatus(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("GetConfirmationStatus: %v", err)
	}
	if status != "" {
		t.Errorf("expected empty status for unknown signature, got %q", status)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"confirmationStatus": "processed",
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
	)
	ctx := context.Background()

	status, err := client.GetConfirmationStatus(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetConfirmationStatus after retries: %v", err)
	}
	if status != "processed" {
		t.Errorf("expected processed, got %q", status)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(5*time.Millisecond),
	)
	ctx := context.Background()

	_, err := client.GetConfirmationStatus(ctx, "sig1")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "invalid params",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(5*time.Millisecond))
	ctx := context.Background()

	_, err := client.GetConfirmationStatus(ctx, "sig1")
	if err == nil {
		t.Fatal("expected RPC error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt for RPC error, got %d", attempts.Load())
	}
}

func TestHTTPClient_GetSignatureStatuses_Empty(t *testing.T) {
	client := NewHTTPClient("http://unused")
	ctx := context.Background()

	statuses, err := client.GetSignatureStatuses(ctx, nil)
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if statuses != nil {
		t.Errorf("expected nil for empty input, got %v", statuses)
	}
}
