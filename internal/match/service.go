package match

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codearena/puzzleduel-backend/internal/events"
	"github.com/codearena/puzzleduel-backend/internal/puzzle"
)

const (
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength = 6

	// createRetries bounds room-code regeneration when claims collide.
	createRetries = 5

	defaultHistoryLimit     = 50
	defaultLeaderboardLimit = 100
)

// Service is the match orchestrator: it owns every state transition of a
// match and emits a domain event after each durable mutation. It holds no
// lock of its own; all atomicity lives in the Store.
type Service struct {
	store     Store
	registry  *puzzle.Registry
	publisher events.Publisher
	now       func() time.Time
}

func NewService(store Store, registry *puzzle.Registry, publisher events.Publisher) *Service {
	return &Service{
		store:     store,
		registry:  registry,
		publisher: publisher,
		now:       time.Now,
	}
}

// publish hands a committed event off for delivery. Fan-out can never fail a
// gameplay operation, so errors are logged and swallowed.
func (s *Service) publish(ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ev); err != nil {
		log.Printf("Failed to publish %s event for match %s: %v", ev.Type, ev.MatchID, err)
	}
}

func generateRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeChars[rand.Intn(len(roomCodeChars))]
	}
	return string(b)
}

// CreateMatch creates a waiting match for the puzzle. A public request first
// tries to claim an existing public waiting match for the same puzzle, in
// which case creation degenerates into a join. A requested room code that is
// already claimed is replaced with a fresh one; the claim itself is the
// atomic insert, never a check followed by an insert.
func (s *Service) CreateMatch(requesterID, puzzleID int64, roomCode *string) (*Match, error) {
	if _, err := s.store.GetPuzzle(puzzleID); err != nil {
		return nil, err
	}

	if roomCode == nil {
		claimed, err := s.store.ClaimWaitingMatch(puzzleID, requesterID)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
	}

	m := &Match{
		ID:        uuid.New().String(),
		PuzzleID:  puzzleID,
		Player1ID: requesterID,
		Status:    StatusWaiting,
		RoomCode:  roomCode,
		CreatedAt: s.now().UTC(),
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		err := s.store.CreateMatch(m)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, errConflict) {
			return nil, err
		}
		code := generateRoomCode()
		m.RoomCode = &code
	}
	return nil, fmt.Errorf("failed to claim a room code after %d attempts", createRetries)
}

// JoinMatch binds the requester as player two. The target is resolved by
// match ID, by room code, or, absent both, by scanning for any open public
// waiting match not owned by the requester.
func (s *Service) JoinMatch(requesterID int64, matchID, roomCode string) (*Match, error) {
	var m *Match
	var err error
	switch {
	case roomCode != "":
		m, err = s.store.FindMatchByRoomCode(roomCode)
	case matchID != "":
		m, err = s.store.GetMatch(matchID)
	default:
		m, err = s.store.FindOpenMatch(requesterID)
		if err == nil && m == nil {
			err = ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}

	if err := joinRejection(m, requesterID); err != nil {
		return nil, err
	}

	joined, err := s.store.JoinMatch(m.ID, requesterID)
	if errors.Is(err, errConflict) {
		// Lost a race; re-read and report why the join is no longer legal.
		current, getErr := s.store.GetMatch(m.ID)
		if getErr != nil {
			return nil, getErr
		}
		if rejectErr := joinRejection(current, requesterID); rejectErr != nil {
			return nil, rejectErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func joinRejection(m *Match, userID int64) error {
	if m.Status != StatusWaiting {
		return ErrInvalidState
	}
	if m.Player1ID == userID {
		return ErrSelfJoin
	}
	if m.Player2ID != nil {
		return ErrMatchFull
	}
	return nil
}

// StartResult is what the starting player gets back: the active match, the
// puzzle metadata, and their own input payload. The expected answer is never
// part of a response; comparison happens server-side only.
type StartResult struct {
	Match     *Match
	Puzzle    *Puzzle
	InputData string
}

// StartMatch transitions a match to active and mints one puzzle instance per
// bound player, exactly once per match. A ready match may be started by
// either player; a waiting match with no second player may be started by
// player one (solo practice). Generation happens before any write, so a
// failing generator leaves nothing persisted.
func (s *Service) StartMatch(requesterID int64, matchID string) (*StartResult, error) {
	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}

	solo := m.Status == StatusWaiting && m.Player2ID == nil && m.Player1ID == requesterID
	if m.Status != StatusReady && !solo {
		return nil, ErrInvalidState
	}
	if !m.HasPlayer(requesterID) {
		return nil, ErrNotAPlayer
	}

	p, err := s.store.GetPuzzle(m.PuzzleID)
	if err != nil {
		return nil, err
	}

	players := []int64{m.Player1ID}
	if m.Player2ID != nil {
		players = append(players, *m.Player2ID)
	}

	instances := make([]PuzzleInstance, 0, len(players))
	for _, playerID := range players {
		inst, err := s.registry.Generate(p.GeneratorType, puzzle.Params(p.GeneratorParams))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		instances = append(instances, PuzzleInstance{
			MatchID:        m.ID,
			PlayerID:       playerID,
			PuzzleID:       p.ID,
			InputData:      inst.Input,
			ExpectedAnswer: inst.Answer,
		})
	}

	startedAt := s.now().UTC()
	started, err := s.store.ActivateMatch(m.ID, m.Status, startedAt, instances)
	if errors.Is(err, errConflict) {
		// The other player activated the match first; their instances stand
		// and the ones minted here are discarded.
		current, getErr := s.store.GetMatch(m.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status != StatusActive {
			return nil, ErrInvalidState
		}
		return s.startResultFor(current, p, requesterID)
	}
	if err != nil {
		return nil, err
	}

	s.publish(events.MatchStarted(started.ID, puzzleMeta(p), *started.StartedAt))

	return s.startResultFor(started, p, requesterID)
}

func (s *Service) startResultFor(m *Match, p *Puzzle, requesterID int64) (*StartResult, error) {
	inst, err := s.store.GetInstance(m.ID, requesterID)
	if err != nil {
		return nil, err
	}
	return &StartResult{Match: m, Puzzle: p, InputData: inst.InputData}, nil
}

func puzzleMeta(p *Puzzle) events.PuzzleMeta {
	return events.PuzzleMeta{
		ID:          p.ID,
		Day:         p.Day,
		Title:       p.Title,
		Description: p.Description,
		Story:       p.Story,
		Difficulty:  p.Difficulty,
	}
}

// normalizeAnswer trims surrounding whitespace and case-folds.
func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SubmitAnswer adjudicates a submission under first-to-solve. The answer row
// is appended whether or not it is correct; the winner is assigned with a
// compare-and-set so that, of two correct submissions, exactly one wins and
// the other gets a "correct but too late" outcome. That outcome applies even
// when the match already completed: the winner's resubmission short-circuits
// to the decided result and the other player's answer is still adjudicated
// and logged, never rejected as stale.
func (s *Service) SubmitAnswer(requesterID int64, matchID, answer string) (*SubmitResult, error) {
	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != StatusActive && m.Status != StatusCompleted {
		return nil, ErrInvalidState
	}
	if !m.HasPlayer(requesterID) {
		return nil, ErrNotAPlayer
	}

	inst, err := s.store.GetInstance(m.ID, requesterID)
	if err != nil {
		return nil, err
	}

	// A player who already solved gets the decided outcome back, with no new
	// log row and no stats effect.
	alreadySolved, err := s.store.HasCorrectAnswer(m.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if alreadySolved {
		return &SubmitResult{
			IsCorrect:   true,
			MatchStatus: m.Status,
			WinnerID:    m.WinnerID,
			Message:     "You already submitted the correct answer",
		}, nil
	}

	expected := normalizeAnswer(inst.ExpectedAnswer)
	// An empty expected answer is never a valid puzzle state; any submission
	// against it is incorrect.
	isCorrect := expected != "" && normalizeAnswer(answer) == expected

	now := s.now().UTC()
	var elapsed *int
	if m.StartedAt != nil {
		seconds := int(now.Sub(*m.StartedAt).Seconds())
		elapsed = &seconds
	}

	if err := s.store.RecordAnswer(&Answer{
		MatchID:          m.ID,
		PlayerID:         requesterID,
		PuzzleID:         m.PuzzleID,
		SubmittedAnswer:  answer,
		IsCorrect:        isCorrect,
		TimeTakenSeconds: elapsed,
		SubmittedAt:      now,
	}); err != nil {
		return nil, err
	}

	if !isCorrect {
		s.publish(events.AnswerSubmitted(m.ID, requesterID, false))
		return &SubmitResult{
			IsCorrect:        false,
			MatchStatus:      m.Status,
			TimeTakenSeconds: elapsed,
			Message:          "Incorrect answer, try again!",
		}, nil
	}

	elapsedSeconds := 0
	if elapsed != nil {
		elapsedSeconds = *elapsed
	}
	won, current, err := s.store.CompleteMatch(m.ID, requesterID, elapsedSeconds, now)
	if err != nil {
		return nil, err
	}

	s.publish(events.AnswerSubmitted(m.ID, requesterID, true))

	message := "Correct answer!"
	if won {
		message = "Correct! You win!"
		winnerName, nameErr := s.store.UserName(requesterID)
		if nameErr != nil {
			winnerName = ""
		}
		s.publish(events.MatchCompleted(m.ID, requesterID, winnerName))
	} else if current.WinnerID != nil && *current.WinnerID != requesterID {
		message = "Correct, but your opponent solved it first!"
	}

	return &SubmitResult{
		IsCorrect:        true,
		MatchStatus:      current.Status,
		WinnerID:         current.WinnerID,
		TimeTakenSeconds: elapsed,
		Message:          message,
	}, nil
}

// AbandonMatch is the explicit out-of-band terminal transition. There is no
// background timer; abandonment always arrives from outside.
func (s *Service) AbandonMatch(requesterID int64, matchID string) (*Match, error) {
	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasPlayer(requesterID) {
		return nil, ErrNotAPlayer
	}
	abandoned, err := s.store.AbandonMatch(matchID)
	if errors.Is(err, errConflict) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return abandoned, nil
}

// GetMatchDetails assembles the requester's view of a match: the match row,
// puzzle metadata, usernames, and the requester's own input when minted.
func (s *Service) GetMatchDetails(requesterID int64, matchID string) (*Details, error) {
	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}

	d := &Details{Match: m}

	p, err := s.store.GetPuzzle(m.PuzzleID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	d.Puzzle = p

	d.Player1Username = s.usernameOrEmpty(m.Player1ID)
	if m.Player2ID != nil {
		d.Player2Username = s.usernameOrEmpty(*m.Player2ID)
	}
	if m.WinnerID != nil {
		d.WinnerUsername = s.usernameOrEmpty(*m.WinnerID)
	}

	if inst, err := s.store.GetInstance(m.ID, requesterID); err == nil {
		d.InputData = inst.InputData
	}
	return d, nil
}

func (s *Service) usernameOrEmpty(id int64) string {
	name, err := s.store.UserName(id)
	if err != nil {
		return ""
	}
	return name
}

func (s *Service) GetMatch(id string) (*Match, error) {
	return s.store.GetMatch(id)
}

// Username resolves a user's display name, empty when unknown.
func (s *Service) Username(id int64) string {
	return s.usernameOrEmpty(id)
}

func (s *Service) GetPuzzle(id int64) (*Puzzle, error) {
	return s.store.GetPuzzle(id)
}

func (s *Service) ListPuzzles() ([]Puzzle, error) {
	return s.store.ListPuzzles()
}

func (s *Service) UserHistory(userID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.store.UserHistory(userID, limit)
}

func (s *Service) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	return s.store.Leaderboard(limit)
}

func (s *Service) UserStats(userID int64) (*Stats, error) {
	return s.store.UserStats(userID)
}

// WinRate is the percentage of total matches won.
func (st *Stats) WinRate() float64 {
	if st.TotalMatches == 0 {
		return 0
	}
	return float64(st.MatchesWon) / float64(st.TotalMatches) * 100
}
