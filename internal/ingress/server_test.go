package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"katlog/internal/domain"
	"katlog/internal/fanout"
	"katlog/internal/notify"
	"katlog/internal/registry"
	"katlog/internal/storage/memory"
)

type testFixture struct {
	server     *httptest.Server
	registry   *registry.Registry
	watchlists *memory.WatchlistStore
	users      *memory.UserStore
	sender     *recordingSender
}

type recordingSender struct {
	ch chan string // recipient addresses
}

func (r *recordingSender) SendAlert(_ context.Context, to string, _ *notify.Alert) error {
	select {
	case r.ch <- to:
	default:
	}
	return nil
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	reg := registry.New(registry.Options{PingInterval: time.Hour})
	watchlists := memory.NewWatchlistStore()
	users := memory.NewUserStore()
	sender := &recordingSender{ch: make(chan string, 16)}

	engine := fanout.New(fanout.Options{
		Registry:       reg,
		WatchlistStore: watchlists,
	})
	dispatcher := notify.NewDispatcher(notify.Options{
		WatchlistStore: watchlists,
		UserStore:      users,
		Sender:         sender,
	})

	srv := NewServer(Options{
		Registry:       reg,
		Fanout:         engine,
		Dispatcher:     dispatcher,
		WatchlistStore: watchlists,
	})

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &testFixture{
		server:     ts,
		registry:   reg,
		watchlists: watchlists,
		users:      users,
		sender:     sender,
	}
}

func (f *testFixture) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/webhook" + query
}

func (f *testFixture) postBatch(t *testing.T, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(f.server.URL+"/api/webhook", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /api/webhook: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func validBatch() string {
	return `{"data":[{"signature":"sig-1","from":"Addr1","to":"Addr2","action":"Sol Transfer","timestamp":"2024-01-15T10:00:00Z","success":true,"network":"Mainnet"}]}`
}

func TestServer_PostBatchAccepted(t *testing.T) {
	f := newFixture(t)

	resp := f.postBatch(t, validBatch())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body["success"] {
		t.Errorf("expected success true, got %v", body)
	}
}

func TestServer_PostBatchRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"data not array", `{"data":"sig"}`},
		{"data missing", `{}`},
		{"missing signature", `{"data":[{"from":"a","to":"b","action":"Other","timestamp":"t","network":"Mainnet"}]}`},
		{"missing endpoints", `{"data":[{"signature":"s","action":"Other","timestamp":"t","network":"Mainnet"}]}`},
		{"bad network", `{"data":[{"signature":"s","from":"a","to":"b","action":"Other","timestamp":"t","network":"Localnet"}]}`},
		{"bad action", `{"data":[{"signature":"s","from":"a","to":"b","action":"Swap","timestamp":"t","network":"Mainnet"}]}`},
		{"missing timestamp", `{"data":[{"signature":"s","from":"a","to":"b","action":"Other","network":"Mainnet"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postBatch(t, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_UpgradeAndReceivePush(t *testing.T) {
	f := newFixture(t)

	f.watchlists.Put(&domain.Watchlist{
		UserID: "user-1",
		Items: []domain.WatchlistItem{
			{Address: "Addr1", Label: "hot", WatchedNetworks: []domain.Network{domain.NetworkMainnet}},
		},
	})

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("?clientId=client-1&userId=user-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// First message is the connection acknowledgement.
	var ack domain.Envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != domain.EnvelopeConnection || ack.Status != domain.ConnectionStatusConnected {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	resp := f.postBatch(t, validBatch())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var push domain.TransactionsEnvelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&push); err != nil {
		t.Fatalf("read push: %v", err)
	}
	if push.Type != domain.EnvelopeTransactions {
		t.Errorf("expected transactions envelope, got %s", push.Type)
	}
	if len(push.Data) != 1 || push.Data[0].Signature != "sig-1" {
		t.Errorf("unexpected push data: %+v", push.Data)
	}
}

func TestServer_UpgradeMissingClientID(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("?userId=user-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.CloseProtocolError {
		t.Errorf("expected close code 1002, got %d", closeErr.Code)
	}
	if closeErr.Text != "Client ID required" {
		t.Errorf("expected reason %q, got %q", "Client ID required", closeErr.Text)
	}
	if f.registry.Len() != 0 {
		t.Error("expected no registration without clientId")
	}
}

func TestServer_UpgradeMissingUserID(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("?clientId=client-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Text != "User ID required" {
		t.Errorf("expected reason %q, got %q", "User ID required", closeErr.Text)
	}
	if f.registry.Len() != 0 {
		t.Error("expected no registration without userId")
	}
}

func TestServer_ClientCloseUnregisters(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("?clientId=client-1&userId=user-1"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var ack domain.Envelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if f.registry.Len() != 1 {
		t.Fatalf("expected 1 registered client, got %d", f.registry.Len())
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.registry.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected client unregistered after close")
}

func TestServer_EmailDispatchedOnBatch(t *testing.T) {
	f := newFixture(t)

	f.watchlists.Put(&domain.Watchlist{
		UserID: "user-1",
		Items: []domain.WatchlistItem{
			{Address: "Addr1", EmailNotifications: true, WatchedNetworks: []domain.Network{domain.NetworkMainnet}},
		},
	})
	f.users.Put(&domain.User{ID: "user-1", Email: "alice@example.com"})

	resp := f.postBatch(t, validBatch())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case to := <-f.sender.ch:
		if to != "alice@example.com" {
			t.Errorf("expected alert to alice@example.com, got %s", to)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected email dispatch after batch accepted")
	}
}

func TestServer_HealthAndStatus(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}

	f.watchlists.Put(&domain.Watchlist{
		UserID: "user-1",
		Items:  []domain.WatchlistItem{{Address: "Addr1"}},
	})

	resp, err = http.Get(f.server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "running" {
		t.Errorf("expected running, got %s", status.Status)
	}
	if len(status.WatchedAddresses) != 1 || status.WatchedAddresses[0] != "Addr1" {
		t.Errorf("unexpected watched addresses: %v", status.WatchedAddresses)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodDelete, f.server.URL+"/api/webhook", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /api/webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
