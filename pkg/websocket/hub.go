package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/codearena/puzzleduel-backend/internal/events"
)

// Hub is the realtime broadcaster: live connections keyed by match. It is an
// explicit registry built with NewHub, not a process-wide singleton, so
// server instances and test harnesses run isolated copies. Delivery is
// best-effort per connection; a connection that cannot accept a message is
// treated as disconnected and pruned. There is no replay: a client that
// connects after an event was emitted never receives it.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Connect registers the client and announces player_connected to the other
// members of the match, not to the new connection itself.
func (h *Hub) Connect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.MatchID]
	if !ok {
		room = newRoom(c.MatchID)
		h.rooms[c.MatchID] = room
	}
	room.Clients[c] = true
	log.Printf("User %d connected to match %s", c.UserID, c.MatchID)

	payload, err := json.Marshal(events.PlayerConnected(c.MatchID, c.UserID))
	if err != nil {
		return
	}
	for _, failed := range h.deliverLocked(c.MatchID, payload, c) {
		h.disconnectLocked(failed)
	}
}

// Disconnect deregisters the client and announces player_disconnected to the
// remaining members; the match's room is garbage-collected once empty.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c)
}

// Broadcast delivers the event to all live connections of the match.
// Failures never propagate to the caller: the affected connection is dropped.
func (h *Hub) Broadcast(matchID string, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", ev.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, failed := range h.deliverLocked(matchID, payload, nil) {
		h.disconnectLocked(failed)
	}
}

// Send delivers one event to one connection; on failure the connection is
// treated as disconnected.
func (h *Hub) Send(c *Client, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", ev.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.MatchID]
	if !ok || !room.Clients[c] {
		return
	}
	select {
	case c.Send <- payload:
	default:
		h.disconnectLocked(c)
	}
}

// ConnectionCount reports the number of live connections for a match.
func (h *Hub) ConnectionCount(matchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[matchID]
	if !ok {
		return 0
	}
	return len(room.Clients)
}

// deliverLocked pushes payload to every client of the match except exclude,
// returning the clients whose send buffers were full.
func (h *Hub) deliverLocked(matchID string, payload []byte, exclude *Client) []*Client {
	room, ok := h.rooms[matchID]
	if !ok {
		return nil
	}
	var failed []*Client
	for client := range room.Clients {
		if client == exclude {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			failed = append(failed, client)
		}
	}
	return failed
}

// dropLocked removes the client and closes its send channel, reporting
// whether it was still registered.
func (h *Hub) dropLocked(c *Client) bool {
	room, ok := h.rooms[c.MatchID]
	if !ok || !room.Clients[c] {
		return false
	}
	delete(room.Clients, c)
	close(c.Send)
	if len(room.Clients) == 0 {
		delete(h.rooms, c.MatchID)
	}
	return true
}

// disconnectLocked drops the client and announces the departure. A client
// that also fails during the announcement is dropped without a further
// announcement, so pruning terminates.
func (h *Hub) disconnectLocked(c *Client) {
	if !h.dropLocked(c) {
		return
	}
	log.Printf("User %d disconnected from match %s", c.UserID, c.MatchID)
	payload, err := json.Marshal(events.PlayerDisconnected(c.MatchID, c.UserID))
	if err != nil {
		return
	}
	for _, failed := range h.deliverLocked(c.MatchID, payload, nil) {
		h.dropLocked(failed)
	}
}
