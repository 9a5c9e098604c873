package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codearena/puzzleduel-backend/internal/events"
	wsPkg "github.com/codearena/puzzleduel-backend/pkg/websocket"
)

func TestRelayDeliversToMatchRoom(t *testing.T) {
	hub := wsPkg.NewHub()
	c := wsPkg.NewClient(1, "m1", nil)
	hub.Connect(c)

	w := NewNotificationWorker(nil, hub)
	payload, err := json.Marshal(events.MatchCompleted("m1", 2, "bob"))
	require.NoError(t, err)
	w.relay(payload)

	select {
	case raw := <-c.Send:
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, events.TypeMatchCompleted, ev.Type)
		assert.Equal(t, int64(2), ev.WinnerID)
		assert.Equal(t, "bob", ev.WinnerUsername)
	default:
		t.Fatal("no event delivered")
	}
}

func TestRelayDropsMalformedAndUnaddressedPayloads(t *testing.T) {
	hub := wsPkg.NewHub()
	c := wsPkg.NewClient(1, "m1", nil)
	hub.Connect(c)

	w := NewNotificationWorker(nil, hub)
	w.relay([]byte("not json"))
	w.relay([]byte(`{"type":"pong"}`))

	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected delivery: %s", raw)
	default:
	}
}
