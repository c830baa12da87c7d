package net

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RoomPrefix is the URL path under which rooms are served.
const RoomPrefix = "/rooms/"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 256
)

var ErrBadRoom = errors.New("room name must be a single non-empty path segment")

// client is one websocket connection held by the hub.
type client struct {
	conn *websocket.Conn
	room string
	send chan []byte

	mu sync.Mutex
	id string // learned from the first frame that names a sender
}

func (c *client) clientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *client) learn(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	if c.id == "" {
		c.id = id
	}
	c.mu.Unlock()
}

// Hub relays frames between the connections of each room. It does not look
// inside ops and keeps no document state: merging happens at the peers.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Boards are shared on the local network; any origin may join.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]bool),
	}
}

// RoomFromPath extracts the room name from a /rooms/{room} path.
func RoomFromPath(path string) (string, error) {
	room := strings.TrimPrefix(path, RoomPrefix)
	if room == path || room == "" || strings.Contains(room, "/") {
		return "", ErrBadRoom
	}
	return room, nil
}

// ServeHTTP upgrades /rooms/{room} requests and serves the connection until
// it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room, err := RoomFromPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	c := &client{conn: conn, room: room, send: make(chan []byte, sendBuffer)}
	h.add(c)
	go c.writePump()
	h.readPump(c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*client]bool)
		h.rooms[c.room] = members
	}
	members[c] = true
	log.Printf("[HUB] %s joined room %q (%d connected)", c.conn.RemoteAddr(), c.room, len(members))
}

// remove drops c and reports whether it was still registered.
func (h *Hub) remove(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[c.room]
	if !members[c] {
		return false
	}
	delete(members, c)
	close(c.send)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	log.Printf("[HUB] %s left room %q", c.conn.RemoteAddr(), c.room)
	return true
}

// broadcast sends data to every member of room except the sender. A member
// whose queue is full is dropped; it will resync by snapshot on reconnect.
func (h *Hub) broadcast(room string, data []byte, exclude *client) {
	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[room] {
		if c == exclude {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		log.Printf("[HUB] Dropping slow connection %s", c.conn.RemoteAddr())
		h.drop(c)
	}
}

// drop unregisters c, tells the rest of its room that it left and closes
// the connection. Only the first call for c announces.
func (h *Hub) drop(c *client) {
	if h.remove(c) {
		if id := c.clientID(); id != "" {
			data, _ := json.Marshal(Message{Type: MsgLeave, From: id})
			h.broadcast(c.room, data, nil)
		}
	}
	c.conn.Close()
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[HUB] Read from %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
		var head struct {
			From string `json:"from"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			log.Printf("[HUB] Ignoring malformed frame from %s: %v", c.conn.RemoteAddr(), err)
			continue
		}
		c.learn(head.From)
		h.broadcast(c.room, data, c)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Rooms returns the number of connections per room.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		out[room] = len(members)
	}
	return out
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, members := range h.rooms {
		for c := range members {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		c.conn.Close()
	}
}

// NewServeMux returns a mux serving h under RoomPrefix.
func NewServeMux(h *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(RoomPrefix, h)
	return mux
}
