package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"dexalert/internal/models"
)

const writeWait = 5 * time.Second

// ErrUserRequired is returned when a websocket client subscribes without a user ID
var ErrUserRequired = errors.New("websocket subscription requires a user id")

// hubClient serializes writes to one connection
type hubClient struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func (c *hubClient) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub pushes notifications to connected websocket clients. Each client
// subscribes with a user ID and only receives that user's notifications.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*hubClient
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*hubClient)}
}

// Type returns the notifier type
func (h *Hub) Type() string {
	return "websocket"
}

// Serve registers conn for userID and blocks until the client disconnects.
// An empty userID closes the connection immediately.
func (h *Hub) Serve(conn *websocket.Conn, userID string) error {
	if userID == "" {
		conn.Close()
		return ErrUserRequired
	}

	c := &hubClient{conn: conn, userID: userID}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	defer h.remove(conn)

	if err := c.write(map[string]string{"type": "info", "message": "subscribed"}); err != nil {
		return nil
	}

	// Read until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Clients reports how many connections are open
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send delivers the notification to the recipient's clients. Writes happen
// outside the hub lock, in parallel; a client that fails a write is dropped.
func (h *Hub) Send(_ context.Context, notification models.Notification) error {
	msg := map[string]interface{}{
		"type":         "alert",
		"notification": notification,
	}

	h.mu.Lock()
	var targets []*hubClient
	for _, c := range h.clients {
		if c.userID == notification.UserID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range targets {
		wg.Add(1)
		go func(c *hubClient) {
			defer wg.Done()
			if err := c.write(msg); err != nil {
				log.Debug().Err(err).Str("component", "notify").Str("user", c.userID).Msg("websocket write failed, dropping client")
				h.remove(c.conn)
			}
		}(c)
	}
	wg.Wait()
	return nil
}
