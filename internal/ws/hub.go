package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/monistake/monistake-backend/internal/store"
	"go.uber.org/zap"
)

const (
	sendBuffer    = 256
	readLimit     = 512
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	writeWait     = 10 * time.Second
	idleTimeout   = 60 * time.Second
	cleanupPeriod = 30 * time.Second
)

const (
	typeUpdate      = "update"
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"
)

// ConnectionMetrics tracks the live connection gauge
type ConnectionMetrics interface {
	IncrementConnections(ctx context.Context)
	DecrementConnections(ctx context.Context)
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	cache      *store.Cache
	logger     *zap.SugaredLogger
	metrics    ConnectionMetrics
	upgrader   websocket.Upgrader

	// closed when Run returns
	done chan struct{}
	mu   sync.RWMutex
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	topics     map[string]bool
	address    string
	lastActive time.Time
}

type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SubscriptionRequest is sent by clients. Setting Address subscribes to that
// wallet's snapshot and transaction topics.
type SubscriptionRequest struct {
	Type    string   `json:"type"`
	Topics  []string `json:"topics"`
	Address string   `json:"address,omitempty"`
}

func NewHub(cache *store.Cache, allowedOrigins []string, logger *zap.SugaredLogger, metrics ConnectionMetrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows same-origin requests and any listed origin; "*" allows all
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	updates := h.cache.SubscribeUpdates(ctx)
	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.IncrementConnections(ctx)
			}
			h.logger.Debugw("Client registered")

		case client := <-h.unregister:
			h.drop(client)
			h.logger.Debugw("Client unregistered", "address", client.subscribedAddress())

		case u, ok := <-updates:
			if !ok {
				h.logger.Warnw("Update subscription closed")
				updates = nil
				continue
			}
			h.broadcast(u)
		}
	}
}

func (h *Hub) broadcast(u store.Update) {
	msg, err := json.Marshal(Message{Type: typeUpdate, Topic: u.Topic, Data: u.Data, Timestamp: u.Timestamp})
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.isSubscribed(u.Topic) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.logger.Debugw("Dropping slow consumer", "address", client.subscribedAddress())
			h.dropLocked(client)
		}
	}
}

// drop reports whether the client was still registered
func (h *Hub) drop(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropLocked(client)
}

// dropLocked removes a client exactly once, closing its send channel and
// releasing its connection gauge slot. h.mu must be held.
func (h *Hub) dropLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)
	if h.metrics != nil {
		h.metrics.DecrementConnections(context.Background())
	}
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients()
		}
	}
}

func (h *Hub) cleanupInactiveClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-idleTimeout)
	for client := range h.clients {
		if client.idleSince().Before(cutoff) {
			h.dropLocked(client)
			h.logger.Debugw("Cleaned up inactive client", "address", client.subscribedAddress())
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn)
	if addr := r.URL.Query().Get("address"); common.IsHexAddress(addr) {
		client.subscribeAddress(addr)
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		topics:     map[string]bool{store.TopicPool: true},
		lastActive: time.Now(),
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var sub SubscriptionRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	switch sub.Type {
	case typeSubscribe:
		c.mu.Lock()
		for _, topic := range sub.Topics {
			c.topics[strings.ToLower(topic)] = true
		}
		c.mu.Unlock()
		if common.IsHexAddress(sub.Address) {
			c.subscribeAddress(sub.Address)
		}
		c.hub.logger.Debugw("Client subscribed to topics", "topics", sub.Topics, "address", sub.Address)

	case typeUnsubscribe:
		c.mu.Lock()
		for _, topic := range sub.Topics {
			delete(c.topics, strings.ToLower(topic))
		}
		c.mu.Unlock()
		c.hub.logger.Debugw("Client unsubscribed from topics", "topics", sub.Topics)
	}
}

// subscribeAddress replaces the wallet-scoped topics
func (c *Client) subscribeAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.address != "" {
		delete(c.topics, store.UserTopic(store.TopicUser, c.address))
		delete(c.topics, store.UserTopic(store.TopicTx, c.address))
	}
	c.address = address
	c.topics[store.UserTopic(store.TopicUser, address)] = true
	c.topics[store.UserTopic(store.TopicTx, address)] = true
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Client) subscribedAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}
