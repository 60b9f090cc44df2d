package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
	"github.com/your-org/crowdsense/pkg/dto"
)

// ErrBroadcastFull is returned by Publish when the hub cannot keep up.
var ErrBroadcastFull = errors.New("ws broadcast queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // signage players are served from other origins
	},
}

// Client represents a connected WebSocket viewer.
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]bool // empty means every event kind
}

func (c *Client) wants(kind string) bool {
	return len(c.types) == 0 || c.types[kind]
}

type message struct {
	kind string
	data []byte
}

// Hub maintains connected viewers and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	// Counts answers request_counts messages; nil disables them.
	Counts func() models.CrowdCount
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub event loop until ctx is done. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				observability.WSConnections.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "types", keys(client.types))

		case client := <-h.unregister:
			h.remove(client)
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(msg.kind) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				slog.Warn("ws client too slow, disconnecting")
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		observability.WSConnections.Dec()
	}
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues ev for every interested viewer. It never blocks.
func (h *Hub) Publish(_ context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal ws event: %w", err)
	}
	select {
	case h.broadcast <- message{kind: ev.Type, data: data}:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// HandleWS handles WebSocket upgrade requests. An optional types query
// parameter (comma separated) limits which event kinds are delivered.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:  conn,
		send:  make(chan []byte, 64),
		types: parseTypes(c.Query("types")),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

func parseTypes(raw string) map[string]bool {
	types := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	return types
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req dto.WSRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		if req.Type == dto.WSRequestCounts && h.Counts != nil {
			h.reply(c, models.NewEvent(models.EventCountUpdate, h.Counts()))
		}
	}
}

// reply sends ev to one client regardless of its type filter.
func (h *Hub) reply(c *Client, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal ws reply", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
