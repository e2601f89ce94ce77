package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// Connection kinds. A session holds at most one useful connection of
// each kind; extra tabs register as additional page connections.
const (
	KindPage   = "page"
	KindWorker = "worker"
)

// Hub tracks every live WebSocket connection, keyed by storefront
// session. Run owns the register/unregister loop; senders go through
// the broadcast helpers, which stamp the monotonic sequence number.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // sessionID → client set

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	seq atomic.Int64

	// onSessionGone fires when a session's last connection drops.
	onSessionGone func(sessionID string)

	// onPermission fires when a client reports its notification
	// permission state.
	onPermission func(sessionID, state string)

	// onHeartbeat fires on every client heartbeat.
	onHeartbeat func(sessionID string)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnSessionGone registers the callback fired after a session's last
// connection drops. Set before Run.
func (h *Hub) OnSessionGone(fn func(sessionID string)) {
	h.onSessionGone = fn
}

// OnPermission registers the callback for client permission reports.
// Set before Run.
func (h *Hub) OnPermission(fn func(sessionID, state string)) {
	h.onPermission = fn
}

// OnHeartbeat registers the callback fired on client heartbeats.
// Presence refresh hangs off this. Set before Run.
func (h *Hub) OnHeartbeat(fn func(sessionID string)) {
	h.onHeartbeat = fn
}

// Run is the hub's event loop. Start it with `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.sessionID]; !ok {
		h.clients[client.sessionID] = make(map[*Client]bool)
	}
	h.clients[client.sessionID][client] = true

	log.Printf("[ws] client connected: session=%s kind=%s", client.sessionID, client.kind)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	gone := false
	if clients, ok := h.clients[client.sessionID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)
			if len(clients) == 0 {
				delete(h.clients, client.sessionID)
				gone = true
			}
		}
	}
	h.mu.Unlock()

	if gone {
		log.Printf("[ws] session fully disconnected: %s", client.sessionID)
		if h.onSessionGone != nil {
			h.onSessionGone(client.sessionID)
		}
	}
}

// HasConnection reports whether the session holds a live connection of
// the given kind. The dispatcher's surface precedence is built on this.
func (h *Hub) HasConnection(sessionID, kind string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		if client.kind == kind {
			return true
		}
	}
	return false
}

// SendToSession delivers an event to every connection of the given kind
// in one session. Returns false when no such connection exists.
func (h *Hub) SendToSession(sessionID, kind string, event Event) bool {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event: %v", err)
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false
	for client := range h.clients[sessionID] {
		if client.kind != kind {
			continue
		}
		select {
		case client.send <- data:
			sent = true
		default:
			// Slow client, drop it.
			go h.enqueueUnregister(client)
		}
	}
	return sent
}

// enqueueRegister hands a client to the Run loop. Reports false when
// the hub is already shut down; the caller's pumps must not start.
func (h *Hub) enqueueRegister(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// enqueueUnregister hands a client to the Run loop, giving up once the
// hub is shut down. Pump teardown paths must never block on a stopped
// loop.
func (h *Hub) enqueueUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Shutdown closes every connection and stops the event loop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	close(h.done)
	log.Println("[ws] hub shut down, all connections closed")
}
