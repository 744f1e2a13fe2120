// Package ingress exposes the webhook HTTP surface: transaction batches in
// over POST, client WebSocket connections in over GET on the same path.
package ingress

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"katlog/internal/domain"
	"katlog/internal/fanout"
	"katlog/internal/notify"
	"katlog/internal/observability"
	"katlog/internal/registry"
	"katlog/internal/storage"
)

// DefaultDispatchTimeout bounds the async fan-out and notification work
// spawned per accepted batch.
const DefaultDispatchTimeout = 30 * time.Second

// Server handles the webhook endpoints.
type Server struct {
	registry   *registry.Registry
	fanout     *fanout.Engine
	dispatcher *notify.Dispatcher
	watchlists storage.WatchlistStore

	upgrader        websocket.Upgrader
	dispatchTimeout time.Duration
	logger          *log.Logger
	started         time.Time
}

// Options contains configuration for creating a Server.
type Options struct {
	Registry        *registry.Registry
	Fanout          *fanout.Engine
	Dispatcher      *notify.Dispatcher
	WatchlistStore  storage.WatchlistStore
	DispatchTimeout time.Duration // Default: 30s
	Logger          *log.Logger
}

// NewServer creates the ingress server.
func NewServer(opts Options) *Server {
	dispatchTimeout := opts.DispatchTimeout
	if dispatchTimeout == 0 {
		dispatchTimeout = DefaultDispatchTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		registry:   opts.Registry,
		fanout:     opts.Fanout,
		dispatcher: opts.Dispatcher,
		watchlists: opts.WatchlistStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		dispatchTimeout: dispatchTimeout,
		logger:          logger,
		started:         time.Now(),
	}
}

// Routes returns the HTTP mux for the server.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/webhook", s.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// handleWebhook dispatches by method: POST delivers a transaction batch,
// GET upgrades to a WebSocket connection.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleTransactions(w, r)
	case http.MethodGet:
		s.handleUpgrade(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// webhookRequest is the POST body shape.
type webhookRequest struct {
	Data []domain.AccountAction `json:"data"`
}

// handleTransactions accepts a transaction batch and hands it to fan-out
// and notification dispatch. The two run independently: the response is
// written once both are initiated, not once they complete.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordBatchRejected("malformed")
		s.logger.Printf("[ingress] decode batch: %v", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Data == nil {
		observability.RecordBatchRejected("not_array")
		http.Error(w, "data must be an array of transactions", http.StatusBadRequest)
		return
	}

	for i := range req.Data {
		if err := req.Data[i].Validate(); err != nil {
			observability.RecordBatchRejected("invalid_transaction")
			s.logger.Printf("[ingress] invalid transaction: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	observability.RecordBatchReceived(len(req.Data))
	s.logger.Printf("[ingress] received batch of %d transactions", len(req.Data))

	// Detached contexts: the async work must not be cancelled when this
	// request's context ends.
	batch := req.Data
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		s.fanout.Distribute(ctx, batch)
	}()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		s.dispatcher.Dispatch(ctx, batch)
	}()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// handleUpgrade upgrades the connection and registers the client. Missing
// identity parameters close the socket with a protocol error before any
// registration happens.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	userID := r.URL.Query().Get("userId")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[ingress] upgrade: %v", err)
		return
	}

	if clientID == "" {
		s.closeWithReason(conn, "Client ID required")
		return
	}
	if userID == "" {
		s.closeWithReason(conn, "User ID required")
		return
	}

	client := s.registry.Register(clientID, userID, conn)

	if err := client.Send(domain.NewConnectionEnvelope()); err != nil {
		s.logger.Printf("[ingress] connection ack to %s: %v", clientID, err)
		s.registry.UnregisterClient(client)
		return
	}

	go s.readLoop(client, conn)
}

// closeWithReason sends a 1002 close frame and drops the connection.
func (s *Server) closeWithReason(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseProtocolError, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		s.logger.Printf("[ingress] close frame: %v", err)
	}
	conn.Close()
}

// readLoop consumes inbound frames so close and pong frames are processed.
// Payload messages from clients are discarded. A read error means the
// transport is gone and the client is unregistered. Removal is identity
// aware: if the clientID was taken over by a newer connection in the
// meantime, that one stays registered.
func (s *Server) readLoop(client *registry.Client, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.logger.Printf("[ingress] client %s disconnected: %v", client.ClientID, err)
			s.registry.UnregisterClient(client)
			return
		}
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status            string   `json:"status"`
	Uptime            string   `json:"uptime"`
	ActiveConnections int      `json:"active_connections"`
	WatchedAddresses  []string `json:"watched_addresses"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.watchlists.GetWatchedAddressesGlobally(r.Context())
	if err != nil {
		s.logger.Printf("[ingress] watched addresses: %v", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Status:            "running",
		Uptime:            time.Since(s.started).String(),
		ActiveConnections: s.registry.Len(),
		WatchedAddresses:  addresses,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
