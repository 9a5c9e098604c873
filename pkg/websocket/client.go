package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader promotes HTTP requests to websocket connections. Origin checking
// is delegated to the reverse proxy in front of the API.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// sendBuffer is the per-client outbound queue depth. A client that cannot
// drain this many events is treated as disconnected.
const sendBuffer = 16

// Client is one live connection of a user to a match.
type Client struct {
	UserID  int64
	MatchID string
	Conn    *websocket.Conn
	Send    chan []byte
}

func NewClient(userID int64, matchID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID:  userID,
		MatchID: matchID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
	}
}
