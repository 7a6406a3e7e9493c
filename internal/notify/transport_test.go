package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// relayServer is a minimal signaling relay: it accepts websocket clients,
// records the frames they send and exposes the server side of each
// connection so tests can push frames back.
type relayServer struct {
	server *httptest.Server
	frames chan []byte
	conns  chan *websocket.Conn
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()

	rs := &relayServer{
		frames: make(chan []byte, 64),
		conns:  make(chan *websocket.Conn, 4),
	}

	upgrader := websocket.Upgrader{}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.conns <- conn
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case rs.frames <- payload:
			default:
				// Frame volume tests only care that writes succeed.
			}
		}
	}))
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *relayServer) url() string {
	return "ws" + strings.TrimPrefix(rs.server.URL, "http")
}

func (rs *relayServer) acceptConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-rs.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for relay connection")
		return nil
	}
}

func (rs *relayServer) nextFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case payload := <-rs.frames:
		var frame map[string]any
		require.NoError(t, json.Unmarshal(payload, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay frame")
		return nil
	}
}

type recordedRemote struct {
	mu            sync.Mutex
	notifications []string
	reads         []string
	deletes       []string
}

func (r *recordedRemote) HandleRemoteNotification(n *Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n.ID)
}

func (r *recordedRemote) HandleRemoteRead(notificationID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, notificationID+"/"+userID)
}

func (r *recordedRemote) HandleRemoteDelete(notificationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, notificationID)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{63, 30 * time.Second},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, backoffDelay(tc.retry), "retry %d", tc.retry)
	}
}

func TestTransportStateString(t *testing.T) {
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "connecting", StateConnecting.String())
	require.Equal(t, "connected", StateConnected.String())
	require.Equal(t, "closing", StateClosing.String())
}

func TestTransportWithoutURLStaysInert(t *testing.T) {
	tr := NewTransport(TransportConfig{}, nil)

	require.Equal(t, StateDisconnected, tr.State())
	require.Zero(t, tr.RetryCount())

	// Echoes while disconnected are skipped, not errors.
	require.False(t, tr.EchoNotification(&Notification{ID: "n1"}))
	require.False(t, tr.EchoRead("n1", "u1"))
	require.False(t, tr.EchoDelete("n1"))
}

func TestTransportCloseIsIdempotent(t *testing.T) {
	tr := NewTransport(TransportConfig{}, nil)

	tr.Close()
	require.Equal(t, StateDisconnected, tr.State())

	require.NotPanics(t, tr.Close)
	require.Equal(t, StateDisconnected, tr.State())
}

func TestTransportConfigDefaults(t *testing.T) {
	tr := NewTransport(TransportConfig{}, nil)

	require.Equal(t, defaultPingInterval, tr.cfg.PingInterval)
	require.Equal(t, defaultMaxRetries, tr.cfg.MaxRetries)
	require.NotNil(t, tr.cfg.Dialer)
}

func TestTransportConnectsAndSendsAuthFrame(t *testing.T) {
	rs := newRelayServer(t)

	tr := NewTransport(TransportConfig{URL: rs.url(), Token: "relay-secret"}, nil)
	t.Cleanup(tr.Close)

	frame := rs.nextFrame(t)
	require.Equal(t, "auth", frame["type"])
	require.Equal(t, "relay-secret", frame["token"])

	require.Eventually(t, func() bool {
		return tr.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, tr.RetryCount())
}

func TestTransportRoutesInboundFrames(t *testing.T) {
	rs := newRelayServer(t)
	events := &recordedRemote{}

	tr := NewTransport(TransportConfig{URL: rs.url()}, events)
	t.Cleanup(tr.Close)

	conn := rs.acceptConn(t)
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":         "notification",
		"notification": map[string]any{"id": "n1", "type": string(TypeEmergencyAlert)},
	}))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "notification_read", "notificationId": "n1", "userId": "u1",
	}))
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "notification_deleted", "notificationId": "n1",
	}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "pong"}))

	require.Eventually(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.deletes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Equal(t, []string{"n1"}, events.notifications)
	require.Equal(t, []string{"n1/u1"}, events.reads)
	require.Equal(t, []string{"n1"}, events.deletes)
}

func TestTransportReconnectsAfterLostChannel(t *testing.T) {
	rs := newRelayServer(t)

	tr := NewTransport(TransportConfig{URL: rs.url()}, nil)
	t.Cleanup(tr.Close)

	first := rs.acceptConn(t)
	require.Eventually(t, func() bool {
		return tr.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	// Drop the connection without a close handshake.
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		return tr.RetryCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// One backoff interval later the channel is back and the retry counter
	// resets.
	rs.acceptConn(t)
	require.Eventually(t, func() bool {
		return tr.State() == StateConnected && tr.RetryCount() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestTransportStopsAfterRetryBudget(t *testing.T) {
	tr := NewTransport(TransportConfig{}, nil)

	tr.mu.Lock()
	tr.retryCount = tr.cfg.MaxRetries
	tr.mu.Unlock()

	tr.scheduleReconnect()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Nil(t, tr.reconnect, "no reconnect scheduled past the budget")
	require.Equal(t, tr.cfg.MaxRetries, tr.retryCount)
}

func TestTransportSerialisesConcurrentWrites(t *testing.T) {
	rs := newRelayServer(t)

	tr := NewTransport(TransportConfig{URL: rs.url(), PingInterval: time.Millisecond}, nil)
	t.Cleanup(tr.Close)

	require.Eventually(t, func() bool {
		return tr.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	// Echoes race the ping loop; the shared connection allows one writer at
	// a time.
	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tr.EchoNotification(&Notification{ID: fmt.Sprintf("w%d-%d", worker, i)})
			}
		}(worker)
	}
	wg.Wait()

	require.Equal(t, StateConnected, tr.State())
}
