package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codearena/puzzleduel-backend/internal/events"
)

// Hub operations are synchronous, so every delivery is already queued on the
// client's Send channel by the time the call returns.
func nextEvent(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case payload, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var ev events.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatal("no event queued")
		return events.Event{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("unexpected event queued: %s", payload)
	default:
	}
}

func newTestClient(userID int64, matchID string) *Client {
	return NewClient(userID, matchID, nil)
}

func TestConnectAnnouncesToOthersOnly(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	hub.Connect(a)
	assertNoEvent(t, a)
	assert.Equal(t, 1, hub.ConnectionCount("m1"))

	b := newTestClient(2, "m1")
	hub.Connect(b)
	assert.Equal(t, 2, hub.ConnectionCount("m1"))

	ev := nextEvent(t, a)
	assert.Equal(t, events.TypePlayerConnected, ev.Type)
	assert.Equal(t, int64(2), ev.UserID)
	assert.Equal(t, "m1", ev.MatchID)

	// The arriving connection never hears its own announcement.
	assertNoEvent(t, b)
}

func TestBroadcastReachesAllMatchMembers(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	b := newTestClient(2, "m1")
	other := newTestClient(3, "m2")
	hub.Connect(a)
	hub.Connect(b)
	hub.Connect(other)
	nextEvent(t, a) // b's arrival

	hub.Broadcast("m1", events.MatchCompleted("m1", 1, "alice"))

	for _, c := range []*Client{a, b} {
		ev := nextEvent(t, c)
		assert.Equal(t, events.TypeMatchCompleted, ev.Type)
		assert.Equal(t, int64(1), ev.WinnerID)
		assert.Equal(t, "alice", ev.WinnerUsername)
	}
	assertNoEvent(t, other)
}

func TestBroadcastToUnknownMatchIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Broadcast("nope", events.Pong())
	assert.Equal(t, 0, hub.ConnectionCount("nope"))
}

func TestSendTargetsSingleConnection(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	b := newTestClient(2, "m1")
	hub.Connect(a)
	hub.Connect(b)
	nextEvent(t, a)

	hub.Send(a, events.Pong())
	ev := nextEvent(t, a)
	assert.Equal(t, events.TypePong, ev.Type)
	assertNoEvent(t, b)

	// Sending to a connection the hub no longer tracks does nothing.
	stranger := newTestClient(3, "m1")
	hub.Send(stranger, events.Pong())
	assertNoEvent(t, stranger)
}

func TestDisconnectAnnouncesAndCollectsRoom(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	b := newTestClient(2, "m1")
	hub.Connect(a)
	hub.Connect(b)
	nextEvent(t, a)

	hub.Disconnect(b)
	assert.Equal(t, 1, hub.ConnectionCount("m1"))

	ev := nextEvent(t, a)
	assert.Equal(t, events.TypePlayerDisconnected, ev.Type)
	assert.Equal(t, int64(2), ev.UserID)

	// Dropped channel is closed once drained.
	_, open := <-b.Send
	assert.False(t, open)

	// Double disconnect is harmless.
	hub.Disconnect(b)

	hub.Disconnect(a)
	assert.Equal(t, 0, hub.ConnectionCount("m1"))
}

func TestFullSendBufferIsTreatedAsDisconnect(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	b := newTestClient(2, "m1")
	hub.Connect(a)
	hub.Connect(b)
	nextEvent(t, a)

	// Saturate b's outbound queue so the next delivery cannot be accepted.
	for i := 0; i < cap(b.Send); i++ {
		b.Send <- []byte("{}")
	}

	hub.Broadcast("m1", events.Pong())

	assert.Equal(t, 1, hub.ConnectionCount("m1"))

	// a received the broadcast, then the implicit departure of b.
	ev := nextEvent(t, a)
	assert.Equal(t, events.TypePong, ev.Type)
	ev = nextEvent(t, a)
	assert.Equal(t, events.TypePlayerDisconnected, ev.Type)
	assert.Equal(t, int64(2), ev.UserID)
}

func TestRoomsAreIsolatedByMatch(t *testing.T) {
	hub := NewHub()

	a := newTestClient(1, "m1")
	b := newTestClient(1, "m2")
	hub.Connect(a)
	hub.Connect(b)

	hub.Broadcast("m1", events.Pong())
	nextEvent(t, a)
	assertNoEvent(t, b)

	hub.Disconnect(a)
	assert.Equal(t, 0, hub.ConnectionCount("m1"))
	assert.Equal(t, 1, hub.ConnectionCount("m2"))
}
