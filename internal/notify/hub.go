package notify

import (
	"sync"
)

// Client is one open event stream for a draft.
type Client struct {
	Msg   chan Event
	Draft string
}

func NewClient(draft string) *Client {
	return &Client{
		Msg:   make(chan Event, 8),
		Draft: draft,
	}
}

// Hub fans toasts out to the event streams of a draft.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Delete unregisters the client and closes its channel. Deleting a client
// twice is a no-op.
func (h *Hub) Delete(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Msg)
}

// CloseDraft ends every stream of a draft.
func (h *Hub) CloseDraft(draft string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.Draft == draft {
			delete(h.clients, client)
			close(client.Msg)
		}
	}
}

// Broadcast never blocks; a slow client misses the event.
func (h *Hub) Broadcast(draft string, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.Draft == draft {
			select {
			case client.Msg <- e:
			default:
			}
		}
	}
}

func (h *Hub) Clients(draft string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.Draft == draft {
			n++
		}
	}
	return n
}

// For returns a Notifier publishing to the streams of one draft.
func (h *Hub) For(draft string) Notifier {
	return draftNotifier{hub: h, draft: draft}
}

type draftNotifier struct {
	hub   *Hub
	draft string
}

func (n draftNotifier) Success(msg string) {
	n.hub.Broadcast(n.draft, Event{Level: LevelSuccess, Message: msg})
}

func (n draftNotifier) Error(msg string) {
	n.hub.Broadcast(n.draft, Event{Level: LevelError, Message: msg})
}
