// Package registry tracks live WebSocket client connections and their owning
// users. Connections are ephemeral: nothing survives a restart.
package registry

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"katlog/internal/observability"
)

// DefaultPingInterval is how often each connection is pinged.
const DefaultPingInterval = 30 * time.Second

// Conn is the write side of a client connection. *websocket.Conn satisfies
// it; tests substitute fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Client is one registered connection. A user may hold several clients at
// once (multiple tabs or devices).
type Client struct {
	ClientID string
	UserID   string

	conn    Conn
	writeMu sync.Mutex // serializes writes; gorilla conns allow one writer
	done    chan struct{}
	once    sync.Once
}

// Send writes v as a JSON message to the client.
func (c *Client) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Ping sends a ping control frame. A missing pong is not an error here;
// dead connections surface as write failures.
func (c *Client) Ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close closes the underlying connection and stops the ping loop. Safe to
// call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Registry is the set of live client connections.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client // keyed by clientID

	pingInterval time.Duration
	logger       *log.Logger
}

// Options contains configuration for creating a Registry.
type Options struct {
	PingInterval time.Duration // Default: 30s
	Logger       *log.Logger
}

// New creates an empty registry.
func New(opts Options) *Registry {
	pingInterval := opts.PingInterval
	if pingInterval == 0 {
		pingInterval = DefaultPingInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Registry{
		clients:      make(map[string]*Client),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Register adds a connection and starts its heartbeat. If the clientID is
// already registered the previous connection is closed and replaced.
func (r *Registry) Register(clientID, userID string, conn Conn) *Client {
	client := &Client{
		ClientID: clientID,
		UserID:   userID,
		conn:     conn,
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if prev, ok := r.clients[clientID]; ok {
		prev.Close()
		observability.RecordConnectionClosed()
	}
	r.clients[clientID] = client
	r.mu.Unlock()

	observability.RecordConnectionOpened()
	r.logger.Printf("[registry] registered client %s for user %s", clientID, userID)

	go r.pingLoop(client)
	return client
}

// Unregister removes a connection and closes it. Unknown clientIDs are a
// no-op.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	client.Close()
	observability.RecordConnectionClosed()
	r.logger.Printf("[registry] unregistered client %s", clientID)
}

// UnregisterClient removes the given connection. When the clientID has since
// been taken over by a newer connection, only the stale one is closed and
// the newer one stays registered.
func (r *Registry) UnregisterClient(client *Client) {
	r.mu.Lock()
	current, registered := r.clients[client.ClientID]
	if registered && current == client {
		delete(r.clients, client.ClientID)
	} else {
		registered = false
	}
	r.mu.Unlock()

	client.Close()
	if !registered {
		return
	}
	observability.RecordConnectionClosed()
	r.logger.Printf("[registry] unregistered client %s", client.ClientID)
}

// ConnectionsForUser returns the user's live connections.
func (r *Registry) ConnectionsForUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []*Client
	for _, c := range r.clients {
		if c.UserID == userID {
			clients = append(clients, c)
		}
	}
	return clients
}

// Snapshot returns all live connections at this instant. Fan-out iterates
// the snapshot so registrations during a push do not block.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// pingLoop sends a ping every pingInterval until the client is closed.
// A failed ping means the transport is gone; the client is unregistered.
func (r *Registry) pingLoop(client *Client) {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-ticker.C:
			if err := client.Ping(time.Now().Add(10 * time.Second)); err != nil {
				r.logger.Printf("[registry] ping failed for client %s: %v", client.ClientID, err)
				r.UnregisterClient(client)
				return
			}
		}
	}
}
