package ws

import (
	"sync"
)

// Hub keeps the local connection sets per room code.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*room)} }

// Broadcast delivers msg to every local subscriber of the room.
func (h *Hub) Broadcast(code string, msg []byte) {
	h.mu.Lock()
	r, ok := h.rooms[code]
	h.mu.Unlock()
	if ok {
		r.broadcast(msg)
	}
}

func (h *Hub) Join(code string, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[code]
	if !ok {
		r = newRoom()
		h.rooms[code] = r
	}
	r.add(c)
}

func (h *Hub) Leave(code string, c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok && r.remove(c) {
		delete(h.rooms, code)
	}
}

// Subscribers returns the number of local connections subscribed to code.
func (h *Hub) Subscribers(code string) int {
	h.mu.Lock()
	r, ok := h.rooms[code]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
