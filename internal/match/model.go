package match

import "time"

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusReady     Status = "ready"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Match is the central mutable entity: one duel over a shared puzzle
// definition. Matches are never deleted, completed ones form the history.
type Match struct {
	ID          string     `json:"id"`
	PuzzleID    int64      `json:"puzzle_id"`
	Player1ID   int64      `json:"player1_id"`
	Player2ID   *int64     `json:"player2_id,omitempty"`
	Status      Status     `json:"status"`
	WinnerID    *int64     `json:"winner_id,omitempty"`
	RoomCode    *string    `json:"room_code,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasPlayer reports whether userID is bound to the match.
func (m *Match) HasPlayer(userID int64) bool {
	if m.Player1ID == userID {
		return true
	}
	return m.Player2ID != nil && *m.Player2ID == userID
}

// Puzzle is an immutable catalog entry. Created by admin action, read-only
// to the orchestrator.
type Puzzle struct {
	ID              int64                  `json:"id"`
	Day             int                    `json:"day"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Story           string                 `json:"story,omitempty"`
	SampleInput     string                 `json:"sample_input,omitempty"`
	SampleOutput    string                 `json:"sample_output,omitempty"`
	Difficulty      string                 `json:"difficulty"`
	GeneratorType   string                 `json:"generator_type"`
	GeneratorParams map[string]interface{} `json:"generator_params"`
	IsActive        bool                   `json:"is_active"`
}

// PuzzleInstance is the per-player randomized input/answer pair minted at
// match start. Exactly one per (match, player), immutable once written.
type PuzzleInstance struct {
	MatchID        string `json:"match_id"`
	PlayerID       int64  `json:"player_id"`
	PuzzleID       int64  `json:"puzzle_id"`
	InputData      string `json:"input_data"`
	ExpectedAnswer string `json:"-"`
}

// Answer is one row of the append-only submission log.
type Answer struct {
	MatchID          string    `json:"match_id"`
	PlayerID         int64     `json:"player_id"`
	PuzzleID         int64     `json:"puzzle_id"`
	SubmittedAnswer  string    `json:"submitted_answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeTakenSeconds *int      `json:"time_taken_seconds,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Stats is the per-user aggregate row, mutated only by match completion.
type Stats struct {
	UserID              int64    `json:"user_id"`
	TotalMatches        int      `json:"total_matches"`
	MatchesWon          int      `json:"matches_won"`
	MatchesLost         int      `json:"matches_lost"`
	TotalPuzzlesSolved  int      `json:"total_puzzles_solved"`
	FastestSolveSeconds *int     `json:"fastest_solve_seconds,omitempty"`
	AverageSolveSeconds *float64 `json:"average_solve_seconds,omitempty"`
	CurrentStreak       int      `json:"current_streak"`
	BestStreak          int      `json:"best_streak"`
}

// SubmitResult is the outcome of a submission attempt. A correct answer that
// arrived after another player already won reports IsCorrect with the other
// player's ID as winner, which is a normal outcome, not an error.
type SubmitResult struct {
	IsCorrect        bool   `json:"is_correct"`
	MatchStatus      Status `json:"match_status"`
	WinnerID         *int64 `json:"winner_id,omitempty"`
	TimeTakenSeconds *int   `json:"time_taken_seconds,omitempty"`
	Message          string `json:"message"`
}

// HistoryEntry is one row of a user's match history.
type HistoryEntry struct {
	MatchID          string     `json:"match_id"`
	PuzzleDay        int        `json:"puzzle_day"`
	PuzzleTitle      string     `json:"puzzle_title"`
	OpponentUsername string     `json:"opponent_username"`
	Won              bool       `json:"won"`
	Status           Status     `json:"status"`
	TimeTakenSeconds *int       `json:"time_taken_seconds,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// LeaderboardEntry ranks a user by wins, ties broken by average solve time.
type LeaderboardEntry struct {
	UserID              int64    `json:"user_id"`
	Username            string   `json:"username"`
	MatchesWon          int      `json:"matches_won"`
	TotalPuzzlesSolved  int      `json:"total_puzzles_solved"`
	FastestSolveSeconds *int     `json:"fastest_solve_seconds,omitempty"`
	AverageSolveSeconds *float64 `json:"average_solve_seconds,omitempty"`
}

// Details is the full per-requester view of a match.
type Details struct {
	Match            *Match  `json:"match"`
	Puzzle           *Puzzle `json:"puzzle"`
	Player1Username  string  `json:"player1_username,omitempty"`
	Player2Username  string  `json:"player2_username,omitempty"`
	WinnerUsername   string  `json:"winner_username,omitempty"`
	InputData        string  `json:"input_data,omitempty"`
}
