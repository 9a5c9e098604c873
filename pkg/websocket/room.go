package websocket

// Room is the set of live connections for one match. Rooms are created on
// first connect and garbage-collected once the last connection leaves.
type Room struct {
	MatchID string
	Clients map[*Client]bool
}

func newRoom(matchID string) *Room {
	return &Room{
		MatchID: matchID,
		Clients: make(map[*Client]bool),
	}
}
