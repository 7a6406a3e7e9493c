package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/carepulse/backend/pkg/logger"
	"github.com/carepulse/backend/pkg/metrics"
)

// TransportState models the live channel connection lifecycle.
type TransportState int

// Transport states.
const (
	StateDisconnected TransportState = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s TransportState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

const (
	defaultPingInterval = 30 * time.Second
	defaultMaxRetries   = 5
	maxBackoff          = 30 * time.Second
	writeTimeout        = 10 * time.Second
)

// backoffDelay returns the reconnect delay for the given retry count:
// min(1s * 2^retry, 30s).
func backoffDelay(retry int) time.Duration {
	delay := time.Second << uint(retry)
	if delay <= 0 || delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// TransportEvents receives frames routed off the live channel.
type TransportEvents interface {
	HandleRemoteNotification(n *Notification)
	HandleRemoteRead(notificationID, userID string)
	HandleRemoteDelete(notificationID string)
}

// TransportConfig bundles the settings for the live channel.
type TransportConfig struct {
	// URL of the signaling relay websocket endpoint.
	URL string
	// Token is sent in an auth frame right after connecting, when set.
	Token string
	// PingInterval overrides the liveness ping period (default 30s).
	PingInterval time.Duration
	// MaxRetries caps reconnection attempts (default 5). Once exhausted the
	// transport stays down until explicitly reconstructed.
	MaxRetries int
	// Dialer overrides the websocket dialer, primarily for tests.
	Dialer *websocket.Dialer
}

// Transport maintains a persistent duplex connection to the signaling relay
// with automatic reconnection and periodic liveness pings. All sends are
// best-effort: when the channel is down the local state change still applies
// and the echo is simply skipped.
type Transport struct {
	cfg    TransportConfig
	events TransportEvents
	log    *zap.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	state      TransportState
	retryCount int
	reconnect  *time.Timer
	pingStop   chan struct{}
	closed     bool

	// writeMu serialises frame writes: the ping loop and the Echo* callers
	// run on separate goroutines, and the connection permits one writer.
	writeMu sync.Mutex
}

// NewTransport constructs a transport and begins connecting in the
// background. A nil events sink or empty URL yields an inert transport that
// reports StateDisconnected forever; the core stays usable offline.
func NewTransport(cfg TransportConfig, events TransportEvents) *Transport {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	t := &Transport{
		cfg:    cfg,
		events: events,
		log:    logger.WithModule("notify.transport"),
		state:  StateDisconnected,
	}

	if cfg.URL != "" {
		go t.connect()
	}
	return t
}

// State reports the current connection state.
func (t *Transport) State() TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RetryCount reports how many reconnection attempts have been scheduled
// since the last successful open.
func (t *Transport) RetryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryCount
}

func (t *Transport) connect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	url := t.cfg.URL
	dialer := t.cfg.Dialer
	t.mu.Unlock()

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.log.Warn("live channel dial failed", zap.String("url", url), zap.Error(err))
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()
		t.scheduleReconnect()
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.state = StateConnected
	t.retryCount = 0
	t.pingStop = make(chan struct{})
	pingStop := t.pingStop
	t.mu.Unlock()

	t.log.Info("live channel connected", zap.String("url", url))

	if t.cfg.Token != "" {
		t.send(authFrame{Type: frameAuth, Token: t.cfg.Token})
	}

	go t.pingLoop(pingStop)
	t.readLoop(conn)
}

func (t *Transport) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !t.send(pingFrame{Type: framePing}) {
				return
			}
		case <-stop:
			return
		}
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			t.handleClose(clean)
			return
		}
		t.route(payload)
	}
}

// route decodes one inbound frame and dispatches on its variant. Malformed
// or unknown frames are logged and dropped, never fatal to the channel.
func (t *Transport) route(payload []byte) {
	msg, err := DecodeInbound(payload)
	if err != nil {
		t.log.Warn("dropping inbound frame", zap.Error(err))
		return
	}
	if t.events == nil {
		return
	}

	switch m := msg.(type) {
	case InboundNotification:
		t.events.HandleRemoteNotification(m.Notification)
	case InboundRead:
		t.events.HandleRemoteRead(m.NotificationID, m.UserID)
	case InboundDeleted:
		t.events.HandleRemoteDelete(m.NotificationID)
	case InboundPong:
		// Liveness acknowledged.
	}
}

func (t *Transport) handleClose(clean bool) {
	t.mu.Lock()
	if t.pingStop != nil {
		close(t.pingStop)
		t.pingStop = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	wasClosing := t.state == StateClosing || t.closed
	t.state = StateDisconnected
	t.mu.Unlock()

	if clean || wasClosing {
		t.log.Info("live channel closed")
		return
	}

	t.log.Warn("live channel lost")
	t.scheduleReconnect()
}

func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.retryCount >= t.cfg.MaxRetries {
		if t.retryCount >= t.cfg.MaxRetries {
			t.log.Warn("live channel retry budget exhausted",
				zap.Int("retries", t.retryCount))
		}
		return
	}

	delay := backoffDelay(t.retryCount)
	t.retryCount++
	metrics.TransportReconnects.Inc()
	t.log.Info("scheduling live channel reconnect",
		zap.Int("attempt", t.retryCount),
		zap.Duration("delay", delay),
	)

	if t.reconnect != nil {
		t.reconnect.Stop()
	}
	t.reconnect = time.AfterFunc(delay, t.connect)
}

// send writes a frame when the channel is open. It returns false when the
// channel is down; callers treat that as a skipped echo, not an error.
func (t *Transport) send(frame any) bool {
	t.mu.Lock()
	conn := t.conn
	open := t.state == StateConnected && conn != nil
	t.mu.Unlock()

	if !open {
		return false
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		t.log.Warn("live channel write failed", zap.Error(err))
		return false
	}
	return true
}

// EchoNotification forwards a locally created notification to the relay.
func (t *Transport) EchoNotification(n *Notification) bool {
	return t.send(notificationFrame{Type: frameNotification, Notification: n})
}

// EchoRead forwards a local read-mark to the relay.
func (t *Transport) EchoRead(notificationID, userID string) bool {
	return t.send(markReadFrame{Type: frameMarkRead, NotificationID: notificationID, UserID: userID})
}

// EchoDelete forwards a local deletion to the relay.
func (t *Transport) EchoDelete(notificationID string) bool {
	return t.send(deleteFrame{Type: frameDelete, NotificationID: notificationID})
}

// Close tears the channel down and cancels any pending reconnect. Safe to
// call more than once; a closed transport never reconnects.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.state = StateClosing
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
	if t.pingStop != nil {
		close(t.pingStop)
		t.pingStop = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
	}

	t.mu.Lock()
	t.state = StateDisconnected
	t.mu.Unlock()
}
