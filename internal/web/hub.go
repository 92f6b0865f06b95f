package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/render"
	"github.com/jgrana2/prompt-manager/internal/session"
)

// Event is the wire form of a transcript event. HTML carries the sanitized
// markdown rendering of the accumulated assistant text.
type Event struct {
	session.Event
	HTML string `json:"html,omitempty"`
}

// Hub fans transcript events out to every connected SSE client. It is the
// session.Sink of the web controller.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *zap.Logger
}

// Client is one SSE connection.
type Client struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client and stops its keepalive.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.done)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Emit renders ev and broadcasts it.
func (h *Hub) Emit(ev session.Event) {
	out := &Event{Event: ev}
	switch ev.Type {
	case session.EventAssistantDelta, session.EventAssistantDone:
		out.HTML = render.HTML(ev.Text)
	}
	h.Broadcast(out)
}

// Broadcast sends event to all connected clients.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case <-client.done:
		default:
			client.send(data)
		}
	}
}

// NewClient prepares w for streaming.
func NewClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &Client{
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}, nil
}

func (c *Client) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "data: %s\n\n", data)
	c.flusher.Flush()
}

// SendPing writes an SSE comment so proxies keep the connection open.
func (c *Client) SendPing() {
	select {
	case <-c.done:
		return
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, ": ping\n\n")
	c.flusher.Flush()
}

// KeepAlive pings every interval until the client is unregistered.
func (c *Client) KeepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.SendPing()
		}
	}
}
