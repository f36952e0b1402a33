package alerting

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finsite/internal/core/domain"
	"finsite/pkg/vitals"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, cfg Config) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, zap.NewNop().Sugar())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub, url := startHub(t, Config{PingInterval: time.Second})

	counts := make(chan int, 8)
	hub.OnClientsChanged(func(n int) { counts <- n })

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(&domain.PerformanceAlert{
		ID:       "alert_1",
		Type:     domain.AlertCLSPoor,
		Severity: vitals.SeverityMedium,
		Value:    0.3,
		URL:      "https://example.com/",
	})

	for _, conn := range []*websocket.Conn{a, b} {
		var msg Message
		conn.SetReadDeadline(time.Now().Add(time.Second))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "alert", msg.Type)
		require.NotNil(t, msg.Alert)
		assert.Equal(t, domain.AlertCLSPoor, msg.Alert.Type)
	}
	assert.Equal(t, 1, <-counts)
	assert.Equal(t, 2, <-counts)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, url := startHub(t, Config{PingInterval: time.Second})

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_MaxClients(t *testing.T) {
	hub, url := startHub(t, Config{PingInterval: time.Second, MaxClients: 1})

	dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(Config{AllowedOrigins: []string{"https://dash.example.com"}}, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "http://site.example.com/api/rum/alerts/stream", nil)
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://dash.example.com")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.net")
	assert.False(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "http://site.example.com")
	assert.True(t, hub.checkOrigin(req))
}
