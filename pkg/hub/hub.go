package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/attentix/attentix/internal/log"
)

// Hub maintains the set of active clients and broadcasts messages to
// them. A single goroutine owns the client set; registration, removal
// and broadcast all funnel through its channels, so the map needs no
// lock.
type Hub struct {
	// Name for logging
	name string

	// Registered clients, touched only by the Run goroutine
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns so late client traffic never blocks
	done chan struct{}

	count   atomic.Int64
	dropped atomic.Uint64
	running atomic.Bool

	// Optional handler for text messages received from clients
	onMessage func(data []byte)
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnMessage registers a handler for text messages received from
// clients. Set it before Run. The handler runs on client read
// goroutines and must not block.
func (h *Hub) OnMessage(fn func(data []byte)) {
	h.onMessage = fn
}

// Run owns the client set until ctx is cancelled.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.count.Store(0)
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			log.Debug("hub client connected", "hub", h.name, "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.count.Store(int64(len(h.clients)))
			log.Debug("hub client disconnected", "hub", h.name, "clients", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
					// Message queued successfully
				default:
					// Client's buffer is full - they're too slow
					delete(h.clients, client)
					close(client.send)
					log.Warn("hub dropped slow client", "hub", h.name)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Broadcast queues a message for every connected client. It never
// blocks; when the hub itself is saturated the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Dropped returns how many broadcasts were discarded because the hub
// was saturated
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// dispatch hands an inbound client message to the registered handler
func (h *Hub) dispatch(data []byte) {
	if h.onMessage != nil {
		h.onMessage(data)
	}
}
