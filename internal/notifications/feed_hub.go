package notifications

import (
	"context"
	"errors"
	"sync"

	"pettit/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const maxFeedConns = 10000

// ErrHubFull is returned by Register when the connection limit is reached.
var ErrHubFull = errors.New("feed connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("feed hub is shut down")

// FeedHub fans broadcast events out to every connected feed client.
type FeedHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewFeedHub creates an empty hub.
func NewFeedHub() *FeedHub {
	return &FeedHub{clients: make(map[*Client]struct{})}
}

// Register adds a connection to the hub.
func (h *FeedHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxFeedConns {
		return nil, ErrHubFull
	}

	c := newClient(h, conn, userID)
	h.clients[c] = struct{}{}
	observability.FeedSubscribers.Inc()
	return c, nil
}

// UnregisterClient removes c and closes its send buffer.
func (h *FeedHub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		observability.FeedSubscribers.Dec()
	}
}

// Len returns the number of connected clients.
func (h *FeedHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected client.
func (h *FeedHub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.clients {
		c.TrySend(data)
	}
}

// StartWiring relays the notifier's broadcast channel into the hub.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartBroadcastSubscriber(ctx, h.BroadcastAll)
}

// Shutdown disconnects every client and rejects new registrations.
func (h *FeedHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
		observability.FeedSubscribers.Dec()
	}
	return nil
}
