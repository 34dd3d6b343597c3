// Package realtime streams solve-run progress to subscribed clients over
// WebSocket: a register/unregister/broadcast channel hub with Redis
// pub/sub fan-out for cross-instance delivery, scoped per solve run id.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// pubSubChannel is the Redis pub/sub channel used to fan progress events
// out to every server instance's WebSocketHub.
const pubSubChannel = "vrpsolver:progress"

// Message is one event pushed to subscribers of a solve run: a progress
// tick, a completion notice, or a failure.
type Message struct {
	Type string `json:"type"`
	Data interface{} `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	RunID string `json:"run_id,omitempty"`
}

// Client represents a WebSocket subscriber to one solve run's progress.
type Client struct {
	ID string
	RunID string
	Conn *websocket.Conn
	Send chan []byte
	Hub *Hub
}

// Hub manages WebSocket connections and fans out progress events, scoped
// per solve run rather than per tenant.
type Hub struct {
	clients map[*Client]bool

	register chan *Client
	unregister chan *Client
	broadcast chan []byte

	redis *redis.Client
	mutex sync.RWMutex
	config *Config
}

// Config holds WebSocket tuning parameters.
type Config struct {
	ReadBufferSize int
	WriteBufferSize int
	PingPeriod time.Duration
	PongWait time.Duration
	WriteWait time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns the package's default WebSocket tuning.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize: 1024,
		WriteBufferSize: 1024,
		PingPeriod: 54 * time.Second,
		PongWait: 60 * time.Second,
		WriteWait: 10 * time.Second,
		MaxMessageSize: 512,
	}
}

// NewHub creates a new progress-broadcast hub, starting its dispatch loop
// and Redis pub/sub subscriber.
func NewHub(redisClient *redis.Client, config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	h := &Hub{
		clients: make(map[*Client]bool),
		register: make(chan *Client),
		unregister: make(chan *Client),
		broadcast: make(chan []byte),
		redis: redisClient,
		config: config,
	}

	go h.run()
	go h.startRedisPubSub()

	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

			client.sendMessage(Message{
				Type: "connected",
				Data: map[string]string{"run_id": client.RunID},
				Timestamp: time.Now(),
				RunID: client.RunID,
			})

			log.Printf("realtime: client %s subscribed to run %s (%d total)", client.ID, client.RunID, len(h.clients))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()

			log.Printf("realtime: client %s disconnected (%d total)", client.ID, len(h.clients))

		case message := <-h.broadcast:
			var m Message
			_ = json.Unmarshal(message, &m)
			h.mutex.RLock()
			for client := range h.clients {
				if m.RunID != "" && client.RunID != m.RunID {
					continue
				}
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// startRedisPubSub relays events published by other instances (e.g. the
// jobqueue worker handling a run's solve) into this instance's local hub.
func (h *Hub) startRedisPubSub() {
	pubsub := h.redis.Subscribe(context.Background(), pubSubChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		h.broadcast <- []byte(msg.Payload)
	}
}

// HandleWebSocket upgrades a request into a subscriber for one run's
// progress stream, identified by the :runID route param.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	runID := c.Param("runID")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run id is required"})
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize: h.config.ReadBufferSize,
		WriteBufferSize: h.config.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime: upgrade error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to upgrade to websocket"})
		return
	}

	client := &Client{
		ID: fmt.Sprintf("%s_%d", runID, time.Now().UnixNano()),
		RunID: runID,
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub: h,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// PublishProgress broadcasts a progress tick via Redis, reaching every
// server instance's subscribers for that run (not just this process's).
func (h *Hub) PublishProgress(ctx context.Context, runID string, data interface{}) error {
	msg := Message{Type: "progress", Data: data, Timestamp: time.Now(), RunID: runID}
	return h.publish(ctx, msg)
}

// PublishTerminal broadcasts the final event for a run (completed,
// cancelled, or failed) and the caller should stop sending further events
// after this.
func (h *Hub) PublishTerminal(ctx context.Context, runID, status string, data interface{}) error {
	msg := Message{Type: status, Data: data, Timestamp: time.Now(), RunID: runID}
	return h.publish(ctx, msg)
}

func (h *Hub) publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}
	return h.redis.Publish(ctx, pubSubChannel, data).Err()
}

// BroadcastToRun delivers a message only to this process's subscribers of
// one run, bypassing Redis, for single-instance deployments.
func (h *Hub) BroadcastToRun(runID string, message Message) {
	message.RunID = runID
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("realtime: failed to marshal message: %v", err)
		return
	}

	h.mutex.RLock()
	for client := range h.clients {
		if client.RunID == runID {
			select {
			case client.Send <- data:
			default:
				close(client.Send)
				delete(h.clients, client)
			}
		}
	}
	h.mutex.RUnlock()
}

// ConnectedClients returns the number of connected clients across every
// run, used by health/metrics endpoints.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RunSubscribers returns the number of clients currently subscribed to a
// specific run.
func (h *Hub) RunSubscribers(runID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for client := range h.clients {
		if client.RunID == runID {
			count++
		}
	}
	return count
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: websocket error: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.Hub.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMessage(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("realtime: failed to marshal message for client %s: %v", c.ID, err)
		return
	}

	select {
	case c.Send <- data:
	default:
		close(c.Send)
	}
}
