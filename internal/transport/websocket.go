package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"advisory-canvas/internal/errors"
	"advisory-canvas/internal/logging"
	"advisory-canvas/pkg/utils"
)

// WebSocketConfig holds configuration for a relay connection.
type WebSocketConfig struct {
	// RelayURL is the relay base URL, e.g. ws://localhost:8787.
	RelayURL string
	Session  string
	// PeerID identifies this replica; a random ID is used when empty.
	PeerID string

	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	Logger zerolog.Logger
}

// WebSocketTransport connects a replica to the signaling relay.
// Reconnection uses exponential backoff; messages sent while disconnected
// fail with ErrNotConnected and are not queued.
type WebSocketTransport struct {
	cfg      WebSocketConfig
	id       string
	handlers *handlerSet
	logger   zerolog.Logger

	// State
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	closed       bool

	onReconnect func()

	mu      sync.RWMutex
	writeMu sync.Mutex // Protects websocket writes
}

// NewWebSocketTransport creates an unconnected transport.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	id := cfg.PeerID
	if id == "" {
		id = uuid.NewString()
	}
	return &WebSocketTransport{
		cfg:      cfg,
		id:       id,
		handlers: newHandlerSet(),
		logger:   logging.WithSession(logging.WithPeer(cfg.Logger, id), cfg.Session),
	}
}

// Endpoint returns the websocket URL for the configured session.
func (t *WebSocketTransport) Endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(t.cfg.RelayURL, "/"))
	if err != nil {
		return "", errors.Wrap(err, "parse relay url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported relay scheme %q", errors.ErrConfigInvalid, u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/sessions/%s/ws", u.Path, t.cfg.Session)
	q := u.Query()
	q.Set("peer", t.id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay, retrying with backoff, and starts the read loop.
// ctx bounds the lifetime of the connection and of any reconnect attempts.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.NewTransportError("connect", t.id, errors.ErrTransportClosed)
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	endpoint, err := t.Endpoint()
	if err != nil {
		return err
	}

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = t.cfg.MaxRetries
	retry.InitialDelay = t.cfg.BaseDelay
	retry.MaxDelay = t.cfg.MaxDelay
	conn, err := utils.RetryWithResult(ctx, retry, func() (*websocket.Conn, error) {
		return t.dial(ctx, endpoint)
	})
	if err != nil {
		return errors.NewTransportError("connect", t.id, fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err))
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return errors.NewTransportError("connect", t.id, errors.ErrTransportClosed)
	}
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	t.logger.Info().Str("endpoint", endpoint).Msg("Connected to relay")
	go t.readLoop(ctx, conn)
	return nil
}

func (t *WebSocketTransport) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// PeerID returns this replica's ID on the relay.
func (t *WebSocketTransport) PeerID() string {
	return t.id
}

// Subscribe registers handler for msgType.
func (t *WebSocketTransport) Subscribe(msgType string, handler Handler) func() {
	return t.handlers.add(msgType, handler)
}

// OnReconnect sets a callback run after the connection is re-established.
// Replicas use it to request a fresh snapshot.
func (t *WebSocketTransport) OnReconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconnect = fn
}

// IsConnected returns whether the relay connection is up.
func (t *WebSocketTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Send writes one envelope to the relay. It fails immediately when the
// connection is down.
func (t *WebSocketTransport) Send(msgType string, payload []byte, recipients ...string) error {
	t.mu.RLock()
	conn, connected, closed := t.conn, t.connected, t.closed
	t.mu.RUnlock()

	if closed {
		return errors.NewTransportError("send", t.id, errors.ErrTransportClosed)
	}
	if !connected || conn == nil {
		return errors.NewTransportError("send", t.id, errors.ErrNotConnected)
	}

	data, err := json.Marshal(Envelope{Type: msgType, From: t.id, To: recipients, Payload: payload})
	if err != nil {
		return errors.NewTransportError("send", t.id, err)
	}

	// Lock for websocket writes
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return errors.NewTransportError("send", t.id, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.NewTransportError("send", t.id, err)
	}
	return nil
}

// Close shuts the connection down and stops reconnecting.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return conn.Close()
}

// readLoop dispatches inbound envelopes until the connection fails.
func (t *WebSocketTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleDisconnect(ctx, conn, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			if err == nil {
				err = fmt.Errorf("envelope without type")
			}
			logging.LogDropped(t.logger, "envelope", "relay", err)
			continue
		}
		t.handlers.dispatch(env.Type, env.From, env.Payload)
	}
}

func (t *WebSocketTransport) handleDisconnect(ctx context.Context, conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		// Already replaced or closed.
		t.mu.Unlock()
		return
	}
	t.connected = false
	t.conn = nil
	closed := t.closed
	t.mu.Unlock()
	conn.Close()

	if closed {
		return
	}
	t.logger.Warn().Err(err).Msg("Relay connection lost")
	go t.reconnect(ctx)
}

// reconnect attempts to reconnect with exponential backoff.
func (t *WebSocketTransport) reconnect(ctx context.Context) {
	t.mu.Lock()
	if t.reconnecting || t.closed {
		t.mu.Unlock()
		return
	}
	t.reconnecting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.reconnecting = false
		t.mu.Unlock()
	}()

	endpoint, err := t.Endpoint()
	if err != nil {
		return
	}

	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		delay := utils.CalculateBackoff(attempt, t.cfg.BaseDelay, t.cfg.MaxDelay, 2)
		if err := utils.Sleep(ctx, delay); err != nil {
			return
		}

		t.mu.RLock()
		closed := t.closed
		t.mu.RUnlock()
		if closed {
			return
		}

		conn, err := t.dial(ctx, endpoint)
		if err != nil {
			t.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("Reconnect failed")
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.connected = true
		onReconnect := t.onReconnect
		t.mu.Unlock()

		t.logger.Info().Int("attempt", attempt+1).Msg("Reconnected to relay")
		go t.readLoop(ctx, conn)
		if onReconnect != nil {
			go onReconnect()
		}
		return
	}

	t.logger.Error().Int("attempts", t.cfg.MaxRetries).Msg("Max reconnection attempts reached")
}

var _ Transport = (*WebSocketTransport)(nil)
