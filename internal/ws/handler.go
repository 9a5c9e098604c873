package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/codearena/puzzleduel-backend/internal/auth"
	"github.com/codearena/puzzleduel-backend/internal/events"
	"github.com/codearena/puzzleduel-backend/internal/match"
	wsPkg "github.com/codearena/puzzleduel-backend/pkg/websocket"
)

type Handler struct {
	hub          *wsPkg.Hub
	authService  *auth.Service
	matchService *match.Service
}

func NewHandler(hub *wsPkg.Hub, authService *auth.Service, matchService *match.Service) *Handler {
	return &Handler{
		hub:          hub,
		authService:  authService,
		matchService: matchService,
	}
}

// ServeMatchWS upgrades the long-lived per-match channel. The client
// authenticates with a JWT in the token query parameter.
func (h *Handler) ServeMatchWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	userID, err := h.authService.VerifyToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := h.matchService.GetMatch(matchID); err != nil {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}

	conn, err := wsPkg.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed for match %s: %v", matchID, err)
		return
	}

	client := wsPkg.NewClient(userID, matchID, conn)
	h.hub.Connect(client)

	go h.read(client)
	go h.write(client)
}

func (h *Handler) read(c *wsPkg.Client) {
	defer func() {
		h.hub.Disconnect(c)
		c.Conn.Close()
	}()
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}
		var message struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &message); err != nil {
			log.Printf("Failed to unmarshal message from user %d: %v", c.UserID, err)
			continue
		}
		switch message.Type {
		case events.TypePing:
			h.hub.Send(c, events.Pong())
		case events.TypePlayerReady:
			h.hub.Broadcast(c.MatchID, events.PlayerReady(c.MatchID, c.UserID, h.matchService.Username(c.UserID)))
		}
	}
}

func (h *Handler) write(c *wsPkg.Client) {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Write error for user %d: %v", c.UserID, err)
			return
		}
	}
}
