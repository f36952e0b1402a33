// Package alerting pushes derived performance alerts to live dashboard
// subscribers over websockets.
package alerting

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"finsite/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 16
)

// Message is the frame sent to subscribers
type Message struct {
	Type  string                   `json:"type"`
	Alert *domain.PerformanceAlert `json:"alert,omitempty"`
	Text  string                   `json:"message,omitempty"`
}

// Config controls keepalive and admission
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxClients     int
	AllowedOrigins []string
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans alerts out to every connected subscriber. A subscriber that
// cannot keep up is disconnected rather than slowing ingestion down.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	clients map[*client]struct{}
	mu      sync.RWMutex

	onClients func(n int)
	logger    *zap.SugaredLogger
}

func NewHub(cfg Config, logger *zap.SugaredLogger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}

	h := &Hub{
		cfg:       cfg,
		clients:   make(map[*client]struct{}),
		onClients: func(int) {},
		logger:    logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// OnClientsChanged registers a callback for the subscriber count
func (h *Hub) OnClientsChanged(fn func(n int)) {
	h.onClients = fn
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin || allowed == u.Host {
			return true
		}
	}
	return u.Host == r.Host
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues alert for every subscriber without blocking
func (h *Hub) Publish(alert *domain.PerformanceAlert) {
	data, err := json.Marshal(Message{Type: "alert", Alert: alert})
	if err != nil {
		h.logger.Errorw("failed to encode alert", "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Infow("dropping slow alert subscriber", "remote_addr", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

// HandleWebSocket upgrades the request and serves the subscriber until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxClients > 0 && h.Clients() >= h.cfg.MaxClients {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Infow("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.logger.Infow("alert subscriber connected", "remote_addr", conn.RemoteAddr().String())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.onClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.onClients(n)
	}
}

// readPump only exists to process pongs and notice disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.logger.Infow("alert subscriber disconnected", "remote_addr", c.conn.RemoteAddr().String())
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("error reading from alert subscriber", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.onClients(0)
}
