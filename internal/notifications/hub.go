package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Jayriel04/MCCAsset2.0/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	hubName = "lending"

	maxTotalConns = 1000
	sendBuffer    = 64
)

// ErrHubFull is returned when the connection limit is reached.
var ErrHubFull = errors.New("event stream connection limit reached")

// Hub tracks websocket clients of the lending event feed.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	log     *observability.WSLogger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     observability.NewWSLogger(hubName),
	}
}

// Register adds a client that receives events for department, or every event
// when department is empty.
func (h *Hub) Register(department string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.clients) >= maxTotalConns {
		return nil, ErrHubFull
	}

	c := &Client{
		hub:        h,
		Conn:       conn,
		Send:       make(chan []byte, sendBuffer),
		Department: strings.TrimSpace(department),
	}
	h.clients[c] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), c.Department)
	return c, nil
}

// UnregisterClient removes c and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	observability.WebSocketConnectionsTotal.Dec()
	h.log.LogDisconnect(context.Background(), c.Department, "unregistered")
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatch forwards an encoded LendingEvent to every client whose department
// filter matches the event's department.
func (h *Hub) Dispatch(payload string) {
	var head struct {
		Department string `json:"department"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return
	}

	data := []byte(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Department == "" || strings.EqualFold(c.Department, head.Department) {
			c.TrySend(data)
		}
	}
}

// StartWiring relays events arriving on Redis to this hub.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, h.Dispatch)
}

// Shutdown sends a close frame to every client and drops them.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		if c.Conn != nil {
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		}
		delete(h.clients, c)
		close(c.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	return nil
}
