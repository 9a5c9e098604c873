package match

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with mutex-guarded maps. It honors the same
// atomicity contract as the Postgres store and backs test harnesses and
// isolated single-process setups.
type MemoryStore struct {
	mu         sync.Mutex
	puzzles    map[int64]*Puzzle
	matches    map[string]*Match
	matchOrder []string
	roomCodes  map[string]string
	instances  map[string]map[int64]*PuzzleInstance
	answers    []Answer
	stats      map[int64]*Stats
	users      map[int64]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		puzzles:   make(map[int64]*Puzzle),
		matches:   make(map[string]*Match),
		roomCodes: make(map[string]string),
		instances: make(map[string]map[int64]*PuzzleInstance),
		stats:     make(map[int64]*Stats),
		users:     make(map[int64]string),
	}
}

// AddPuzzle seeds a catalog entry.
func (s *MemoryStore) AddPuzzle(p Puzzle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puzzles[p.ID] = &p
}

// AddUser seeds a user identity.
func (s *MemoryStore) AddUser(id int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = username
}

func cloneMatch(m *Match) *Match {
	c := *m
	if m.Player2ID != nil {
		v := *m.Player2ID
		c.Player2ID = &v
	}
	if m.WinnerID != nil {
		v := *m.WinnerID
		c.WinnerID = &v
	}
	if m.RoomCode != nil {
		v := *m.RoomCode
		c.RoomCode = &v
	}
	if m.StartedAt != nil {
		v := *m.StartedAt
		c.StartedAt = &v
	}
	if m.CompletedAt != nil {
		v := *m.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func (s *MemoryStore) GetPuzzle(id int64) (*Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.puzzles[id]
	if !ok || !p.IsActive {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) ListPuzzles() ([]Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var puzzles []Puzzle
	for _, p := range s.puzzles {
		if p.IsActive {
			puzzles = append(puzzles, *p)
		}
	}
	sort.Slice(puzzles, func(i, j int) bool { return puzzles[i].Day < puzzles[j].Day })
	return puzzles, nil
}

func (s *MemoryStore) CreateMatch(m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.RoomCode != nil {
		// The claim is the insert: a taken code conflicts atomically.
		if _, taken := s.roomCodes[*m.RoomCode]; taken {
			return errConflict
		}
		s.roomCodes[*m.RoomCode] = m.ID
	}
	s.matches[m.ID] = cloneMatch(m)
	s.matchOrder = append(s.matchOrder, m.ID)
	return nil
}

func (s *MemoryStore) GetMatch(id string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) FindMatchByRoomCode(code string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.roomCodes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMatch(s.matches[id]), nil
}

func (s *MemoryStore) findOpenLocked(puzzleID *int64, excludeUser int64) *Match {
	for _, id := range s.matchOrder {
		m := s.matches[id]
		if m.Status != StatusWaiting || m.Player2ID != nil || m.RoomCode != nil || m.Player1ID == excludeUser {
			continue
		}
		if puzzleID != nil && m.PuzzleID != *puzzleID {
			continue
		}
		return m
	}
	return nil
}

func (s *MemoryStore) FindOpenMatch(excludeUser int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findOpenLocked(nil, excludeUser)
	if m == nil {
		return nil, nil
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) ClaimWaitingMatch(puzzleID, userID int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findOpenLocked(&puzzleID, userID)
	if m == nil {
		return nil, nil
	}
	m.Player2ID = &userID
	m.Status = StatusReady
	return cloneMatch(m), nil
}

func (s *MemoryStore) JoinMatch(matchID string, userID int64) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.Status != StatusWaiting || m.Player2ID != nil || m.Player1ID == userID {
		return nil, errConflict
	}
	m.Player2ID = &userID
	m.Status = StatusReady
	return cloneMatch(m), nil
}

func (s *MemoryStore) ActivateMatch(matchID string, prev Status, startedAt time.Time, instances []PuzzleInstance) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	if m.Status != prev {
		return nil, errConflict
	}
	m.Status = StatusActive
	m.StartedAt = &startedAt
	for i := range instances {
		inst := instances[i]
		byPlayer, ok := s.instances[matchID]
		if !ok {
			byPlayer = make(map[int64]*PuzzleInstance)
			s.instances[matchID] = byPlayer
		}
		byPlayer[inst.PlayerID] = &inst
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) GetInstance(matchID string, playerID int64) (*PuzzleInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[matchID][playerID]
	if !ok {
		return nil, ErrNoInstance
	}
	c := *inst
	return &c, nil
}

func (s *MemoryStore) HasCorrectAnswer(matchID string, playerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.answers {
		a := &s.answers[i]
		if a.MatchID == matchID && a.PlayerID == playerID && a.IsCorrect {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RecordAnswer(a *Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, *a)
	return nil
}

func (s *MemoryStore) CompleteMatch(matchID string, winnerID int64, elapsedSeconds int, completedAt time.Time) (bool, *Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return false, nil, ErrNotFound
	}
	if m.Status != StatusActive || m.WinnerID != nil {
		return false, cloneMatch(m), nil
	}
	m.Status = StatusCompleted
	m.WinnerID = &winnerID
	m.CompletedAt = &completedAt

	s.applyWinLocked(winnerID, elapsedSeconds)
	if loserID, hasLoser := otherPlayer(m, winnerID); hasLoser {
		s.applyLossLocked(loserID)
	}
	return true, cloneMatch(m), nil
}

func (s *MemoryStore) statsLocked(userID int64) *Stats {
	st, ok := s.stats[userID]
	if !ok {
		st = &Stats{UserID: userID}
		s.stats[userID] = st
	}
	return st
}

func (s *MemoryStore) applyWinLocked(userID int64, elapsed int) {
	st := s.statsLocked(userID)
	st.TotalMatches++
	st.MatchesWon++
	st.TotalPuzzlesSolved++
	if st.FastestSolveSeconds == nil || elapsed < *st.FastestSolveSeconds {
		e := elapsed
		st.FastestSolveSeconds = &e
	}
	if st.AverageSolveSeconds == nil {
		avg := float64(elapsed)
		st.AverageSolveSeconds = &avg
	} else {
		total := *st.AverageSolveSeconds*float64(st.TotalPuzzlesSolved-1) + float64(elapsed)
		avg := total / float64(st.TotalPuzzlesSolved)
		st.AverageSolveSeconds = &avg
	}
	st.CurrentStreak++
	if st.CurrentStreak > st.BestStreak {
		st.BestStreak = st.CurrentStreak
	}
}

func (s *MemoryStore) applyLossLocked(userID int64) {
	st := s.statsLocked(userID)
	st.TotalMatches++
	st.MatchesLost++
	st.CurrentStreak = 0
}

func (s *MemoryStore) AbandonMatch(matchID string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	switch m.Status {
	case StatusWaiting, StatusReady, StatusActive:
		now := time.Now().UTC()
		m.Status = StatusAbandoned
		m.CompletedAt = &now
		return cloneMatch(m), nil
	default:
		return nil, errConflict
	}
}

func (s *MemoryStore) UserName(id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[id]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

func (s *MemoryStore) UserHistory(userID int64, limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []HistoryEntry
	// Newest first.
	for i := len(s.matchOrder) - 1; i >= 0 && len(history) < limit; i-- {
		m := s.matches[s.matchOrder[i]]
		if !m.HasPlayer(userID) {
			continue
		}
		e := HistoryEntry{
			MatchID:     m.ID,
			Status:      m.Status,
			Won:         m.WinnerID != nil && *m.WinnerID == userID,
			CompletedAt: m.CompletedAt,
		}
		if p, ok := s.puzzles[m.PuzzleID]; ok {
			e.PuzzleDay = p.Day
			e.PuzzleTitle = p.Title
		}
		if opponentID, ok := otherPlayer(m, userID); ok {
			e.OpponentUsername = s.users[opponentID]
		}
		for j := range s.answers {
			a := &s.answers[j]
			if a.MatchID == m.ID && a.PlayerID == userID && a.IsCorrect {
				e.TimeTakenSeconds = a.TimeTakenSeconds
				break
			}
		}
		history = append(history, e)
	}
	return history, nil
}

func (s *MemoryStore) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []LeaderboardEntry
	for id, st := range s.stats {
		entries = append(entries, LeaderboardEntry{
			UserID:              id,
			Username:            s.users[id],
			MatchesWon:          st.MatchesWon,
			TotalPuzzlesSolved:  st.TotalPuzzlesSolved,
			FastestSolveSeconds: st.FastestSolveSeconds,
			AverageSolveSeconds: st.AverageSolveSeconds,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].MatchesWon != entries[j].MatchesWon {
			return entries[i].MatchesWon > entries[j].MatchesWon
		}
		ai, aj := entries[i].AverageSolveSeconds, entries[j].AverageSolveSeconds
		switch {
		case ai != nil && aj != nil:
			return *ai < *aj
		case ai != nil:
			return true
		default:
			return false
		}
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *MemoryStore) UserStats(userID int64) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return &Stats{UserID: userID}, nil
	}
	c := *st
	if st.FastestSolveSeconds != nil {
		v := *st.FastestSolveSeconds
		c.FastestSolveSeconds = &v
	}
	if st.AverageSolveSeconds != nil {
		v := *st.AverageSolveSeconds
		c.AverageSolveSeconds = &v
	}
	return &c, nil
}
