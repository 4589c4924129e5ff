package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pliu/chatterbox/internal/models"
	"github.com/samber/lo"
)

const eventBuffer = 256

// Hub fans stored messages out to the connected members of their
// conversation. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages to deliver.
	broadcast chan models.MessageEvent

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan models.MessageEvent, eventBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event models.MessageEvent) {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode message event", "error", err)
		return
	}

	for client := range h.clients {
		if !lo.Contains(event.Members, client.userID) {
			continue
		}
		select {
		case client.send <- msgBytes:
		default:
			h.log.Warn("dropping slow websocket client", "user_id", client.userID)
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	close(client.send)
	delete(h.clients, client)
}

// NotifyMessage queues event for delivery. It never blocks the caller; when
// the queue is full the event is dropped.
func (h *Hub) NotifyMessage(event models.MessageEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("websocket event queue full, dropping event", "conversation_id", event.ConversationID)
	}
}
