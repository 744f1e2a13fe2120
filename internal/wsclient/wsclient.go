// Package wsclient maintains a consuming connection to the distribution
// server: it dials, recovers from drops with exponential backoff, and hands
// received transaction batches to a callback.
package wsclient

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"katlog/internal/domain"
)

// State is the connection lifecycle state.
type State int

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Client is a reconnecting consumer of the push channel. Each connection
// attempt presents a fresh random clientID; the server treats every attempt
// as a brand-new client.
type Client struct {
	endpoint string // ws URL of the webhook endpoint, without query
	userID   string
	backoff  Backoff
	dialer   *websocket.Dialer
	onBatch  func([]domain.AccountAction)
	onState  func(State)
	logger   *log.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	clientID string
	attempt  int
	timer    *time.Timer
	closed   bool
}

// Options contains configuration for creating a Client.
type Options struct {
	Endpoint string // e.g. ws://localhost:4000/api/webhook
	UserID   string
	OnBatch  func([]domain.AccountAction)
	OnState  func(State) // optional, called on every transition
	Backoff  Backoff
	Logger   *log.Logger
}

// New creates a client. Call Start to begin connecting.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		endpoint: opts.Endpoint,
		userID:   opts.UserID,
		backoff:  opts.Backoff,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onBatch:  opts.OnBatch,
		onState:  opts.OnState,
		logger:   logger,
		state:    StateDisconnected,
	}
}

// Start schedules the first connection attempt immediately.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.scheduleLocked(0)
}

// Close tears the client down: the pending reconnect timer is cancelled and
// the connection, if any, is closed. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the identity presented on the current or most recent
// connection attempt.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// scheduleLocked arms the reconnect timer. Caller holds c.mu.
func (c *Client) scheduleLocked(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.connect)
}

// connect performs one connection attempt.
func (c *Client) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.clientID = uuid.NewString()
	c.setStateLocked(StateConnecting)
	endpoint := c.dialURL()
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(endpoint, nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		delay := c.backoff.Delay(c.attempt)
		c.attempt++
		c.setStateLocked(StateDisconnected)
		c.logger.Printf("[wsclient] dial failed (attempt %d): %v, retrying in %s", c.attempt, err, delay)
		c.scheduleLocked(delay)
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.attempt = 0 // reset only on successful open
	c.setStateLocked(StateConnected)
	clientID := c.clientID
	c.mu.Unlock()

	c.logger.Printf("[wsclient] connected as %s", clientID)
	go c.readLoop(conn)
}

// dialURL builds the endpoint URL with identity query parameters.
func (c *Client) dialURL() string {
	q := url.Values{}
	q.Set("clientId", c.clientID)
	q.Set("userId", c.userID)
	return fmt.Sprintf("%s?%s", c.endpoint, q.Encode())
}

// readLoop consumes envelopes until the connection drops, then schedules a
// reconnect.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		c.handleMessage(message)
	}
}

// handleDrop transitions to disconnected and arms the backoff timer, unless
// the drop was caused by Close or a newer connection has replaced this one.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn != conn {
		return
	}

	c.conn.Close()
	c.conn = nil
	c.setStateLocked(StateDisconnected)

	delay := c.backoff.Delay(c.attempt)
	c.attempt++
	c.logger.Printf("[wsclient] connection lost: %v, reconnecting in %s", err, delay)
	c.scheduleLocked(delay)
}

// handleMessage decodes one envelope and dispatches it.
func (c *Client) handleMessage(message []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Printf("[wsclient] decode envelope: %v", err)
		return
	}

	switch env.Type {
	case domain.EnvelopeConnection:
		c.logger.Printf("[wsclient] connection acknowledged: %s", env.Status)
	case domain.EnvelopeTransactions:
		var batch []domain.AccountAction
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			c.logger.Printf("[wsclient] decode batch: %v", err)
			return
		}
		if c.onBatch != nil && len(batch) > 0 {
			c.onBatch(batch)
		}
	default:
		c.logger.Printf("[wsclient] unknown envelope type %q", env.Type)
	}
}

// setStateLocked records a transition and fires the callback. Caller holds
// c.mu.
func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		go c.onState(s)
	}
}
