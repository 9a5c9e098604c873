// Package events defines the realtime event vocabulary delivered to the
// connected clients of a match, and the publisher handoff that decouples
// durable state transitions from client delivery.
package events

import "time"

const (
	TypePlayerConnected    = "player_connected"
	TypePlayerDisconnected = "player_disconnected"
	TypePlayerReady        = "player_ready"
	TypeMatchStarted       = "match_started"
	TypeAnswerSubmitted    = "answer_submitted"
	TypeMatchCompleted     = "match_completed"
	TypePing               = "ping"
	TypePong               = "pong"
)

// PuzzleMeta is the puzzle metadata carried by match_started. It never
// includes inputs or answers.
type PuzzleMeta struct {
	ID          int64  `json:"id"`
	Day         int    `json:"day"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Story       string `json:"story,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
}

// Event is one realtime notification for a match's participants.
type Event struct {
	Type           string      `json:"type"`
	MatchID        string      `json:"match_id,omitempty"`
	UserID         int64       `json:"user_id,omitempty"`
	Username       string      `json:"username,omitempty"`
	IsCorrect      *bool       `json:"is_correct,omitempty"`
	WinnerID       int64       `json:"winner_id,omitempty"`
	WinnerUsername string      `json:"winner_username,omitempty"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	Puzzle         *PuzzleMeta `json:"puzzle,omitempty"`
}

func PlayerConnected(matchID string, userID int64) Event {
	return Event{Type: TypePlayerConnected, MatchID: matchID, UserID: userID}
}

func PlayerDisconnected(matchID string, userID int64) Event {
	return Event{Type: TypePlayerDisconnected, MatchID: matchID, UserID: userID}
}

func PlayerReady(matchID string, userID int64, username string) Event {
	return Event{Type: TypePlayerReady, MatchID: matchID, UserID: userID, Username: username}
}

func MatchStarted(matchID string, puzzle PuzzleMeta, startedAt time.Time) Event {
	return Event{Type: TypeMatchStarted, MatchID: matchID, Puzzle: &puzzle, StartedAt: &startedAt}
}

func AnswerSubmitted(matchID string, userID int64, isCorrect bool) Event {
	return Event{Type: TypeAnswerSubmitted, MatchID: matchID, UserID: userID, IsCorrect: &isCorrect}
}

func MatchCompleted(matchID string, winnerID int64, winnerUsername string) Event {
	return Event{Type: TypeMatchCompleted, MatchID: matchID, WinnerID: winnerID, WinnerUsername: winnerUsername}
}

func Pong() Event {
	return Event{Type: TypePong}
}

// Publisher hands committed domain events off for delivery. Implementations
// must not block the caller on client IO; delivery is best-effort relative to
// the state transition that produced the event.
type Publisher interface {
	Publish(ev Event) error
}
