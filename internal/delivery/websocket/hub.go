package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"novel-engine/pkg/taskmanager"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is what clients receive.
type Message struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload"`
}

// StoryAuthorizer decides whether a user may follow a story.
type StoryAuthorizer func(ctx context.Context, userID string, storyID uuid.UUID) error

// Hub tracks connected clients and their story subscriptions.
type Hub struct {
	mu        sync.RWMutex
	clients   map[uuid.UUID]*Client
	authorize StoryAuthorizer
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// Client is one websocket connection of a user.
type Client struct {
	ID     uuid.UUID
	UserID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte

	mu     sync.RWMutex
	topics map[string]bool
}

var (
	_ taskmanager.Notifier = (*Hub)(nil)
)

// NewHub creates a hub. allowedOrigins of ["*"] or empty accepts any origin.
func NewHub(authorize StoryAuthorizer, allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:   make(map[uuid.UUID]*Client),
		authorize: authorize,
		logger:    logger.Named("WebSocketHub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimSpace(a), origin) {
				return true
			}
		}
		return false
	}
}

// StoryTopic is the topic carrying updates of one story.
func StoryTopic(storyID uuid.UUID) string {
	return "story:" + storyID.String()
}

// Serve upgrades the request for an authenticated user and starts the client pumps.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Upgrade failed", zap.String("userID", userID), zap.Error(err))
		return
	}
	c := &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("Client connected", zap.Stringer("clientID", c.ID), zap.String("userID", userID))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
		h.logger.Debug("Client disconnected", zap.Stringer("clientID", c.ID), zap.String("userID", c.UserID))
	}
}

// deliver queues data for every client accepted by match. Slow clients are dropped.
func (h *Hub) deliver(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	var slow []*Client
	h.mu.RLock()
	for _, c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn("Dropping slow client", zap.Stringer("clientID", c.ID))
		h.remove(c)
	}
}

// BroadcastStory sends a story message to every subscriber of the story.
func (h *Hub) BroadcastStory(storyID uuid.UUID, messageType string, payload any) {
	topic := StoryTopic(storyID)
	h.deliver(Message{Type: messageType, Topic: topic, Payload: payload}, func(c *Client) bool {
		return c.subscribed(topic)
	})
}

// SendToUser sends to every connection of a user regardless of subscriptions.
func (h *Hub) SendToUser(userID, messageType string, payload any) {
	h.deliver(Message{Type: messageType, Payload: payload}, func(c *Client) bool {
		return c.UserID == userID
	})
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
}

type command struct {
	Action  string    `json:"action"`
	StoryID uuid.UUID `json:"storyId"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Read error", zap.Stringer("clientID", c.ID), zap.Error(err))
			}
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reply("error", map[string]string{"message": "malformed command"})
			continue
		}
		c.handle(cmd)
	}
}

func (c *Client) handle(cmd command) {
	topic := StoryTopic(cmd.StoryID)
	switch cmd.Action {
	case "subscribe":
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := c.hub.authorize(ctx, c.UserID, cmd.StoryID)
		cancel()
		if err != nil {
			c.reply("subscribe_denied", map[string]any{"storyId": cmd.StoryID})
			return
		}
		c.mu.Lock()
		c.topics[topic] = true
		c.mu.Unlock()
		c.reply("subscribed", map[string]any{"storyId": cmd.StoryID})
	case "unsubscribe":
		c.mu.Lock()
		delete(c.topics, topic)
		c.mu.Unlock()
		c.reply("unsubscribed", map[string]any{"storyId": cmd.StoryID})
	default:
		c.reply("error", map[string]string{"message": "unknown action " + cmd.Action})
	}
}

// reply queues a message for this client only.
func (c *Client) reply(messageType string, payload any) {
	c.hub.deliver(Message{Type: messageType, Payload: payload}, func(other *Client) bool {
		return other == c
	})
}

func (c *Client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
