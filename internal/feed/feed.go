// Package feed pushes live scan statistics to WebSocket subscribers and
// accepts pause and resume commands from them.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ResistanceIsUseless/proxyjudge/internal/logging"
	"github.com/ResistanceIsUseless/proxyjudge/internal/scanner"
)

const (
	maxMessageSize = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	sendBuffer     = 16
)

// Message types exchanged with subscribers
const (
	TypeStats  = "stats"
	TypePause  = "pause"
	TypeResume = "resume"
	TypeError  = "error"
)

// Source provides the statistics snapshot pushed on every tick
type Source interface {
	Stats() scanner.Stats
}

// Controller receives pause and resume commands. It may be nil.
type Controller interface {
	Pause()
	Resume()
}

// Message is the envelope for every frame on the feed
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// Options tune a hub
type Options struct {
	Interval   time.Duration
	Controller Controller
	Logger     *logging.Logger
}

type client struct {
	conn *websocket.Conn
	send chan Message
	hub  *Hub
}

type reply struct {
	client  *client
	message Message
}

// Hub fans statistics out to connected subscribers
type Hub struct {
	source   Source
	control  Controller
	interval time.Duration
	logger   *logging.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	clientsMux sync.RWMutex

	register   chan *client
	unregister chan *client
	replies    chan reply
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub reading from source. Run must be called to serve it.
func NewHub(source Source, opts Options) *Hub {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		source:   source,
		control:  opts.Controller,
		interval: opts.Interval,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client, 16),
		replies:    make(chan reply, 16),
		done:       make(chan struct{}),
	}
}

// Run pushes a stats frame to every subscriber each interval until ctx ends
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer func() {
		ticker.Stop()
		h.shutdown()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clientsMux.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.clientsMux.Unlock()
			h.logger.Debug("Feed subscriber connected", "addr", c.conn.RemoteAddr().String(), "total_clients", total)
			h.deliver(c, h.statsMessage())

		case c := <-h.unregister:
			h.remove(c)

		case r := <-h.replies:
			h.deliver(r.client, r.message)

		case <-ticker.C:
			message := h.statsMessage()
			h.clientsMux.RLock()
			targets := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.clientsMux.RUnlock()
			for _, c := range targets {
				h.deliver(c, message)
			}
		}
	}
}

// deliver queues message for c, dropping subscribers that cannot keep up
func (h *Hub) deliver(c *client, message Message) {
	h.clientsMux.RLock()
	_, ok := h.clients[c]
	h.clientsMux.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- message:
	default:
		h.logger.Warn("Dropping slow feed subscriber", "addr", c.conn.RemoteAddr().String())
		h.remove(c)
	}
}

func (h *Hub) remove(c *client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.clientsMux.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.clientsMux.Unlock()
	})
}

func (h *Hub) statsMessage() Message {
	data, _ := json.Marshal(h.source.Stats())
	return Message{Type: TypeStats, Data: data, Timestamp: time.Now()}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket subscription
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Feed upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer), hub: h}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump handles commands from the subscriber
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Feed read error", "error", err)
			}
			return
		}
		c.hub.handle(c, msg)
	}
}

func (h *Hub) handle(c *client, msg Message) {
	var response Message
	switch msg.Type {
	case TypePause, TypeResume:
		if h.control == nil {
			response = Message{Type: TypeError, Error: "scan control is not available", Timestamp: time.Now()}
			break
		}
		if msg.Type == TypePause {
			h.control.Pause()
		} else {
			h.control.Resume()
		}
		response = h.statsMessage()
	case TypeStats:
		response = h.statsMessage()
	default:
		response = Message{Type: TypeError, Error: "unknown message type: " + msg.Type, Timestamp: time.Now()}
	}

	select {
	case h.replies <- reply{client: c, message: response}:
	case <-h.done:
	}
}

// writePump sends queued frames and keeps the connection alive with pings
func (c *client) writePump() {
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
			if err := c.conn.WriteJSON(message); err != nil {
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
