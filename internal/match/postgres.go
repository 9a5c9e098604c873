package match

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on top of Postgres. Every compare-and-set is
// a single conditional UPDATE and every aggregation is an arithmetic
// ON CONFLICT upsert, so concurrent writers never lose updates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const matchColumns = "id, puzzle_id, player1_id, player2_id, status, winner_id, room_code, started_at, completed_at, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var player2, winner sql.NullInt64
	var roomCode sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&m.ID, &m.PuzzleID, &m.Player1ID, &player2, &m.Status, &winner, &roomCode, &startedAt, &completedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if player2.Valid {
		m.Player2ID = &player2.Int64
	}
	if winner.Valid {
		m.WinnerID = &winner.Int64
	}
	if roomCode.Valid {
		m.RoomCode = &roomCode.String
	}
	if startedAt.Valid {
		m.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		m.CompletedAt = &completedAt.Time
	}
	return &m, nil
}

func (s *PostgresStore) GetPuzzle(id int64) (*Puzzle, error) {
	row := s.db.QueryRow(`
		SELECT id, day, title, description, COALESCE(story, ''), COALESCE(sample_input, ''), COALESCE(sample_output, ''),
		       difficulty, generator_type, generator_params, is_active
		FROM puzzles
		WHERE id = $1 AND is_active = TRUE
	`, id)
	return scanPuzzle(row)
}

func scanPuzzle(row rowScanner) (*Puzzle, error) {
	var p Puzzle
	var params []byte
	err := row.Scan(&p.ID, &p.Day, &p.Title, &p.Description, &p.Story, &p.SampleInput, &p.SampleOutput,
		&p.Difficulty, &p.GeneratorType, &params, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan puzzle: %w", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p.GeneratorParams); err != nil {
			return nil, fmt.Errorf("failed to decode generator params: %w", err)
		}
	}
	return &p, nil
}

func (s *PostgresStore) ListPuzzles() ([]Puzzle, error) {
	rows, err := s.db.Query(`
		SELECT id, day, title, description, COALESCE(story, ''), COALESCE(sample_input, ''), COALESCE(sample_output, ''),
		       difficulty, generator_type, generator_params, is_active
		FROM puzzles
		WHERE is_active = TRUE
		ORDER BY day
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list puzzles: %w", err)
	}
	defer rows.Close()

	var puzzles []Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, *p)
	}
	return puzzles, rows.Err()
}

func (s *PostgresStore) CreateMatch(m *Match) error {
	_, err := s.db.Exec(`
		INSERT INTO matches (id, puzzle_id, player1_id, status, room_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.PuzzleID, m.Player1ID, m.Status, m.RoomCode, m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errConflict
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMatch(id string) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow("SELECT "+matchColumns+" FROM matches WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) FindMatchByRoomCode(code string) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow("SELECT "+matchColumns+" FROM matches WHERE room_code = $1", code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match by room code: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) FindOpenMatch(excludeUser int64) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow(`
		SELECT `+matchColumns+` FROM matches
		WHERE status = 'waiting' AND player2_id IS NULL AND room_code IS NULL AND player1_id <> $1
		ORDER BY created_at
		LIMIT 1
	`, excludeUser))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ClaimWaitingMatch(puzzleID, userID int64) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow(`
		UPDATE matches SET player2_id = $1, status = 'ready'
		WHERE id = (
			SELECT id FROM matches
			WHERE puzzle_id = $2 AND status = 'waiting' AND player2_id IS NULL
			  AND room_code IS NULL AND player1_id <> $1
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'waiting'
		RETURNING `+matchColumns, userID, puzzleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim waiting match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) JoinMatch(matchID string, userID int64) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow(`
		UPDATE matches SET player2_id = $1, status = 'ready'
		WHERE id = $2 AND status = 'waiting' AND player2_id IS NULL AND player1_id <> $1
		RETURNING `+matchColumns, userID, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to join match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ActivateMatch(matchID string, prev Status, startedAt time.Time, instances []PuzzleInstance) (*Match, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := scanMatch(tx.QueryRow(`
		UPDATE matches SET status = 'active', started_at = $2
		WHERE id = $1 AND status = $3
		RETURNING `+matchColumns, matchID, startedAt, prev))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to activate match: %w", err)
	}

	for _, inst := range instances {
		_, err := tx.Exec(`
			INSERT INTO player_puzzle_inputs (match_id, player_id, puzzle_id, input_data, expected_answer)
			VALUES ($1, $2, $3, $4, $5)
		`, inst.MatchID, inst.PlayerID, inst.PuzzleID, inst.InputData, inst.ExpectedAnswer)
		if err != nil {
			return nil, fmt.Errorf("failed to store puzzle instance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match activation: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetInstance(matchID string, playerID int64) (*PuzzleInstance, error) {
	var inst PuzzleInstance
	err := s.db.QueryRow(`
		SELECT match_id, player_id, puzzle_id, input_data, expected_answer
		FROM player_puzzle_inputs
		WHERE match_id = $1 AND player_id = $2
	`, matchID, playerID).Scan(&inst.MatchID, &inst.PlayerID, &inst.PuzzleID, &inst.InputData, &inst.ExpectedAnswer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoInstance
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get puzzle instance: %w", err)
	}
	return &inst, nil
}

func (s *PostgresStore) HasCorrectAnswer(matchID string, playerID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM player_answers
			WHERE match_id = $1 AND player_id = $2 AND is_correct = TRUE
		)
	`, matchID, playerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check correct answers: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RecordAnswer(a *Answer) error {
	_, err := s.db.Exec(`
		INSERT INTO player_answers (match_id, player_id, puzzle_id, submitted_answer, is_correct, time_taken_seconds, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.MatchID, a.PlayerID, a.PuzzleID, a.SubmittedAnswer, a.IsCorrect, a.TimeTakenSeconds, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteMatch(matchID string, winnerID int64, elapsedSeconds int, completedAt time.Time) (bool, *Match, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := scanMatch(tx.QueryRow(`
		UPDATE matches SET status = 'completed', winner_id = $2, completed_at = $3
		WHERE id = $1 AND status = 'active' AND winner_id IS NULL
		RETURNING `+matchColumns, matchID, winnerID, completedAt))
	if errors.Is(err, sql.ErrNoRows) {
		// Another submission already completed the match. Not an error for
		// the losing writer: report the current row.
		current, getErr := s.GetMatch(matchID)
		if getErr != nil {
			return false, nil, getErr
		}
		return false, current, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to assign winner: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO match_stats (user_id, total_matches, matches_won, total_puzzles_solved,
		                         fastest_solve_seconds, average_solve_seconds, current_streak, best_streak, updated_at)
		VALUES ($1, 1, 1, 1, $2, $2, 1, 1, now())
		ON CONFLICT (user_id) DO UPDATE SET
			total_matches = match_stats.total_matches + 1,
			matches_won = match_stats.matches_won + 1,
			total_puzzles_solved = match_stats.total_puzzles_solved + 1,
			fastest_solve_seconds = LEAST(COALESCE(match_stats.fastest_solve_seconds, $2), $2),
			average_solve_seconds = (COALESCE(match_stats.average_solve_seconds, 0) * match_stats.total_puzzles_solved + $2)
				/ (match_stats.total_puzzles_solved + 1),
			current_streak = match_stats.current_streak + 1,
			best_streak = GREATEST(match_stats.best_streak, match_stats.current_streak + 1),
			updated_at = now()
	`, winnerID, elapsedSeconds)
	if err != nil {
		return false, nil, fmt.Errorf("failed to update winner stats: %w", err)
	}

	if loserID, ok := otherPlayer(m, winnerID); ok {
		_, err = tx.Exec(`
			INSERT INTO match_stats (user_id, total_matches, matches_lost, updated_at)
			VALUES ($1, 1, 1, now())
			ON CONFLICT (user_id) DO UPDATE SET
				total_matches = match_stats.total_matches + 1,
				matches_lost = match_stats.matches_lost + 1,
				current_streak = 0,
				updated_at = now()
		`, loserID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to update loser stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("failed to commit match completion: %w", err)
	}
	return true, m, nil
}

// otherPlayer returns the bound player that is not userID, if any.
func otherPlayer(m *Match, userID int64) (int64, bool) {
	if m.Player1ID != userID {
		return m.Player1ID, true
	}
	if m.Player2ID != nil && *m.Player2ID != userID {
		return *m.Player2ID, true
	}
	return 0, false
}

func (s *PostgresStore) AbandonMatch(matchID string) (*Match, error) {
	m, err := scanMatch(s.db.QueryRow(`
		UPDATE matches SET status = 'abandoned', completed_at = now()
		WHERE id = $1 AND status IN ('waiting', 'ready', 'active')
		RETURNING `+matchColumns, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to abandon match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) UserName(id int64) (string, error) {
	var username string
	err := s.db.QueryRow("SELECT username FROM users WHERE id = $1", id).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get username: %w", err)
	}
	return username, nil
}

func (s *PostgresStore) UserHistory(userID int64, limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT m.id, p.day, p.title,
		       COALESCE(u.username, ''),
		       m.winner_id, m.status, m.completed_at, a.time_taken_seconds
		FROM matches m
		JOIN puzzles p ON p.id = m.puzzle_id
		LEFT JOIN users u ON u.id = CASE WHEN m.player1_id = $1 THEN m.player2_id ELSE m.player1_id END
		LEFT JOIN player_answers a ON a.match_id = m.id AND a.player_id = $1 AND a.is_correct = TRUE
		WHERE m.player1_id = $1 OR m.player2_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var winner sql.NullInt64
		var completedAt sql.NullTime
		var timeTaken sql.NullInt64
		if err := rows.Scan(&e.MatchID, &e.PuzzleDay, &e.PuzzleTitle, &e.OpponentUsername, &winner, &e.Status, &completedAt, &timeTaken); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Won = winner.Valid && winner.Int64 == userID
		if completedAt.Valid {
			e.CompletedAt = &completedAt.Time
		}
		if timeTaken.Valid {
			t := int(timeTaken.Int64)
			e.TimeTakenSeconds = &t
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func (s *PostgresStore) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.Query(`
		SELECT s.user_id, u.username, s.matches_won, s.total_puzzles_solved,
		       s.fastest_solve_seconds, s.average_solve_seconds
		FROM match_stats s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.matches_won DESC, s.average_solve_seconds ASC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var fastest sql.NullInt64
		var average sql.NullFloat64
		if err := rows.Scan(&e.UserID, &e.Username, &e.MatchesWon, &e.TotalPuzzlesSolved, &fastest, &average); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		if fastest.Valid {
			f := int(fastest.Int64)
			e.FastestSolveSeconds = &f
		}
		if average.Valid {
			e.AverageSolveSeconds = &average.Float64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) UserStats(userID int64) (*Stats, error) {
	var st Stats
	var fastest sql.NullInt64
	var average sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT user_id, total_matches, matches_won, matches_lost, total_puzzles_solved,
		       fastest_solve_seconds, average_solve_seconds, current_streak, best_streak
		FROM match_stats
		WHERE user_id = $1
	`, userID).Scan(&st.UserID, &st.TotalMatches, &st.MatchesWon, &st.MatchesLost, &st.TotalPuzzlesSolved,
		&fastest, &average, &st.CurrentStreak, &st.BestStreak)
	if errors.Is(err, sql.ErrNoRows) {
		return &Stats{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	if fastest.Valid {
		f := int(fastest.Int64)
		st.FastestSolveSeconds = &f
	}
	if average.Valid {
		st.AverageSolveSeconds = &average.Float64
	}
	return &st, nil
}
