package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codearena/puzzleduel-backend/internal/events"
	rdbPkg "github.com/codearena/puzzleduel-backend/pkg/redis"
	wsPkg "github.com/codearena/puzzleduel-backend/pkg/websocket"
)

// receiveRetryDelay spaces out receive retries so a dead Redis connection
// does not spin the worker at full speed.
const receiveRetryDelay = time.Second

// NotificationWorker relays committed domain events from the match_events
// channel into the hub. It is the delivery half of the commit-then-enqueue
// split: a slow client can never delay a match-state transition.
type NotificationWorker struct {
	rdb *redis.Client
	hub *wsPkg.Hub
}

func NewNotificationWorker(rdb *redis.Client, hub *wsPkg.Hub) *NotificationWorker {
	return &NotificationWorker{
		rdb: rdb,
		hub: hub,
	}
}

func (w *NotificationWorker) Run() {
	log.Println("Notification worker starting...")
	pubsub := w.rdb.Subscribe(rdbPkg.Ctx, events.Channel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(rdbPkg.Ctx)
		if err != nil {
			log.Printf("Event pub/sub error: %v", err)
			time.Sleep(receiveRetryDelay)
			continue
		}
		w.relay([]byte(msg.Payload))
	}
}

// relay decodes one published payload and fans it out to the event's match.
// Payloads without a match ID have no audience and are dropped.
func (w *NotificationWorker) relay(payload []byte) {
	var ev events.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("Failed to unmarshal event: %v", err)
		return
	}
	if ev.MatchID == "" {
		return
	}
	w.hub.Broadcast(ev.MatchID, ev)
}
