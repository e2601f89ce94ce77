package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write; past it the connection is dead.
	writeWait = 10 * time.Second

	// pongWait is three missed heartbeats at the 30s client interval.
	pongWait = 90 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one WebSocket connection. Two goroutines per connection:
// ReadPump consumes client events, WritePump drains the send channel.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	kind      string // KindPage or KindWorker
	send      chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID, kind string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		kind:      kind,
		send:      make(chan []byte, sendBufferSize),
	}
}

// Register adds the client to the hub and sends the ready event.
// Returns false when the hub is already shut down.
func (c *Client) Register() bool {
	if !c.hub.enqueueRegister(c) {
		return false
	}
	c.sendEvent(Event{Op: OpReady, Data: ReadyData{SessionID: c.sessionID, Kind: c.kind}})
	return true
}

// ReadPump reads events from the connection until it closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.enqueueUnregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for session %s: %v", c.sessionID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[ws] invalid message from session %s: %v", c.sessionID, err)
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		if c.hub.onHeartbeat != nil {
			go c.hub.onHeartbeat(c.sessionID)
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpPermission:
		c.handlePermission(event)

	default:
		log.Printf("[ws] unknown op from session %s: %s", c.sessionID, event.Op)
	}
}

// handlePermission forwards the client's reported permission state to
// the dispatcher via the hub callback. The callback runs on its own
// goroutine to keep the read loop responsive.
func (c *Client) handlePermission(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data PermissionData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	switch data.State {
	case "unrequested", "granted", "denied":
	default:
		log.Printf("[ws] invalid permission state from session %s: %s", c.sessionID, data.State)
		return
	}

	if c.hub.onPermission != nil {
		go c.hub.onPermission(c.sessionID, data.State)
	}
}

// WritePump writes queued events to the connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Hub closed the channel; say goodbye.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
