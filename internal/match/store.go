package match

import (
	"errors"
	"time"
)

// errConflict is returned by a store when a compare-and-set update found the
// record no longer in the expected state. Callers re-read and classify; it is
// never surfaced to API callers directly.
var errConflict = errors.New("conflicting concurrent update")

// Store is the transactional record of matches, puzzle instances, answers and
// aggregate stats. Every method that mutates state is a single atomic unit:
// the orchestrator never does read-then-write in two steps through this
// interface for room-code claims, joins, activation, winner assignment or
// stats aggregation.
type Store interface {
	// GetPuzzle returns an active catalog entry, ErrNotFound otherwise.
	GetPuzzle(id int64) (*Puzzle, error)
	ListPuzzles() ([]Puzzle, error)

	// CreateMatch inserts a new waiting match. The room code claim is the
	// insert itself: a duplicate code fails with errConflict and nothing is
	// persisted.
	CreateMatch(m *Match) error
	GetMatch(id string) (*Match, error)
	FindMatchByRoomCode(code string) (*Match, error)
	// FindOpenMatch returns the oldest public waiting match not owned by
	// excludeUser, or nil when there is none.
	FindOpenMatch(excludeUser int64) (*Match, error)

	// ClaimWaitingMatch atomically binds userID as player two on the oldest
	// public waiting match for the puzzle owned by someone else, flipping it
	// to ready. Returns nil when no such match exists.
	ClaimWaitingMatch(puzzleID, userID int64) (*Match, error)

	// JoinMatch binds userID as player two and flips waiting to ready, as a
	// compare-and-set. errConflict when the match was no longer joinable.
	JoinMatch(matchID string, userID int64) (*Match, error)

	// ActivateMatch transitions prev to active, stamps the start time and
	// persists the minted instances, all in one atomic unit. On errConflict
	// no instance is persisted.
	ActivateMatch(matchID string, prev Status, startedAt time.Time, instances []PuzzleInstance) (*Match, error)

	GetInstance(matchID string, playerID int64) (*PuzzleInstance, error)
	HasCorrectAnswer(matchID string, playerID int64) (bool, error)
	// RecordAnswer appends to the submission log unconditionally.
	RecordAnswer(a *Answer) error

	// CompleteMatch assigns the winner with a compare-and-set on "status is
	// still active" and, in the same atomic unit, applies the stats
	// aggregation for the winner and (when present) the loser. The returned
	// bool reports whether this call won the race; either way the current
	// match row is returned.
	CompleteMatch(matchID string, winnerID int64, elapsedSeconds int, completedAt time.Time) (bool, *Match, error)

	// AbandonMatch is the explicit out-of-band terminal transition.
	AbandonMatch(matchID string) (*Match, error)

	UserName(id int64) (string, error)
	UserHistory(userID int64, limit int) ([]HistoryEntry, error)
	Leaderboard(limit int) ([]LeaderboardEntry, error)
	// UserStats returns a zero-valued row when the user has no stats yet.
	UserStats(userID int64) (*Stats, error)
}
