package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Client is one websocket connection of a user.
type Client struct {
	ID     string
	UserID uint64

	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps one room per user holding all of that user's connections.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uint64]map[*Client]struct{}
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHub creates a new Hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[uint64]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Register adds the client to its user's room
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[client.UserID] == nil {
		h.rooms[client.UserID] = make(map[*Client]struct{})
	}
	h.rooms[client.UserID][client] = struct{}{}
}

// Unregister removes the client and closes its send queue
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[client.UserID]; ok {
		if _, member := clients[client]; member {
			delete(clients, client)
			client.close()
		}
		if len(clients) == 0 {
			delete(h.rooms, client.UserID)
		}
	}
}

// ConnectedCount returns the number of open connections of a user
func (h *Hub) ConnectedCount(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// PublishToUser queues the event on every connection of the user. A user
// without connections is not an error. Slow clients whose queue is full are
// dropped.
func (h *Hub) PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error {
	frame, err := json.Marshal(Envelope{Event: event, UserID: userID, Data: payload})
	if err != nil {
		return err
	}

	var stale []*Client
	h.mu.RLock()
	for client := range h.rooms[userID] {
		select {
		case client.send <- frame:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("Dropping slow websocket client", zap.String("client_id", client.ID), zap.Uint64("user_id", userID))
		h.Unregister(client)
	}
	return nil
}

// Serve upgrades the request and joins the connection to the user's room. It
// blocks until the connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.Register(client)
	h.logger.Debug("Websocket connected", zap.String("client_id", client.ID), zap.Uint64("user_id", userID))

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump only consumes control frames; clients do not send events.
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.Unregister(client)
		_ = client.conn.Close()
		h.logger.Debug("Websocket disconnected", zap.String("client_id", client.ID), zap.Uint64("user_id", client.UserID))
	}()

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
