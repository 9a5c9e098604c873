package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codearena/puzzleduel-backend/internal/events"
	"github.com/codearena/puzzleduel-backend/internal/puzzle"
)

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// stubGen returns a fixed answer with a unique input per invocation, so two
// players of one match always see different inputs.
type stubGen struct {
	answer string
	err    error
	calls  atomic.Int64
}

func (g *stubGen) Generate(params puzzle.Params) (puzzle.Instance, error) {
	if g.err != nil {
		return puzzle.Instance{}, g.err
	}
	n := g.calls.Add(1)
	return puzzle.Instance{Input: fmt.Sprintf("input-%d", n), Answer: g.answer}, nil
}

const (
	alice = int64(1)
	bob   = int64(2)
	carol = int64(3)

	testPuzzleID     = int64(7)
	inactivePuzzleID = int64(8)
)

func newTestService(gen puzzle.Generator) (*Service, *MemoryStore, *recordingPublisher) {
	store := NewMemoryStore()
	store.AddUser(alice, "alice")
	store.AddUser(bob, "bob")
	store.AddUser(carol, "carol")
	store.AddPuzzle(Puzzle{
		ID:            testPuzzleID,
		Day:           3,
		Title:         "Maze Navigator 3",
		Description:   "Find the best path.",
		Difficulty:    "easy",
		GeneratorType: "stub",
		IsActive:      true,
	})
	store.AddPuzzle(Puzzle{ID: inactivePuzzleID, Day: 4, GeneratorType: "stub", IsActive: false})

	registry := puzzle.NewRegistry()
	registry.Register("stub", gen)

	pub := &recordingPublisher{}
	return NewService(store, registry, pub), store, pub
}

func fixedClock(svc *Service, at time.Time) func(d time.Duration) {
	current := at
	svc.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

// barrierClock makes the next n clock reads rendezvous before returning, so n
// in-flight operations are forced past their status checks before any of them
// writes. The clock is read exactly once per state-changing operation.
func barrierClock(svc *Service, n int, at time.Time) {
	var gate sync.WaitGroup
	gate.Add(n)
	svc.now = func() time.Time {
		gate.Done()
		gate.Wait()
		return at
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCreateMatchUnknownOrInactivePuzzle(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	_, err := svc.CreateMatch(alice, 999, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.CreateMatch(alice, inactivePuzzleID, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateJoinStartFlow(t *testing.T) {
	svc, store, pub := newTestService(&stubGen{answer: "42"})
	fixedClock(svc, baseTime)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, m.Status)
	assert.Equal(t, alice, m.Player1ID)
	assert.Nil(t, m.Player2ID)
	assert.Nil(t, m.RoomCode)

	joined, err := svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, joined.Status)
	require.NotNil(t, joined.Player2ID)
	assert.Equal(t, bob, *joined.Player2ID)

	result, err := svc.StartMatch(alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, result.Match.Status)
	require.NotNil(t, result.Match.StartedAt)
	assert.Equal(t, baseTime, *result.Match.StartedAt)
	assert.NotEmpty(t, result.InputData)

	// One instance per player, and the two players see different inputs.
	instA, err := store.GetInstance(m.ID, alice)
	require.NoError(t, err)
	instB, err := store.GetInstance(m.ID, bob)
	require.NoError(t, err)
	assert.NotEqual(t, instA.InputData, instB.InputData)
	assert.Equal(t, instA.InputData, result.InputData)

	assert.Equal(t, []string{events.TypeMatchStarted}, pub.types())
}

func TestCreateClaimsExistingWaitingMatch(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	first, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)

	// Bob's public create degenerates into a join of Alice's lobby.
	second, err := svc.CreateMatch(bob, testPuzzleID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusReady, second.Status)
	require.NotNil(t, second.Player2ID)
	assert.Equal(t, bob, *second.Player2ID)

	// A player never claims their own waiting match.
	third, err := svc.CreateMatch(carol, testPuzzleID, nil)
	require.NoError(t, err)
	own, err := svc.CreateMatch(carol, testPuzzleID, nil)
	require.NoError(t, err)
	assert.NotEqual(t, third.ID, own.ID)
	assert.Equal(t, StatusWaiting, own.Status)
}

func TestJoinByRoomCode(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	code := "AB12CD"
	m, err := svc.CreateMatch(alice, testPuzzleID, &code)
	require.NoError(t, err)
	require.NotNil(t, m.RoomCode)
	assert.Equal(t, code, *m.RoomCode)

	joined, err := svc.JoinMatch(bob, "", code)
	require.NoError(t, err)
	assert.Equal(t, m.ID, joined.ID)
	assert.Equal(t, StatusReady, joined.Status)

	_, err = svc.JoinMatch(bob, "", "NOSUCH")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinRejections(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)

	_, err = svc.JoinMatch(alice, m.ID, "")
	assert.ErrorIs(t, err, ErrSelfJoin)

	_, err = svc.JoinMatch(bob, "no-such-match", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)

	// Once ready, the match is no longer accepting players.
	_, err = svc.JoinMatch(carol, m.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestJoinAutoMatch(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	_, err := svc.JoinMatch(bob, "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)

	joined, err := svc.JoinMatch(bob, "", "")
	require.NoError(t, err)
	assert.Equal(t, m.ID, joined.ID)
}

func TestRoomCodeUniquenessUnderConcurrentCreates(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "x"})

	const n = 20
	for i := int64(10); i < 10+n; i++ {
		store.AddUser(i, fmt.Sprintf("user%d", i))
	}

	code := "DUPE01"
	matches := make([]*Match, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requested := code
			matches[i], errs[i] = svc.CreateMatch(int64(10+i), testPuzzleID, &requested)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "create %d", i)
	}

	seen := make(map[string]bool)
	kept := 0
	for _, m := range matches {
		require.NotNil(t, m.RoomCode)
		assert.False(t, seen[*m.RoomCode], "room code %s assigned twice", *m.RoomCode)
		seen[*m.RoomCode] = true
		if *m.RoomCode == code {
			kept++
		}
	}
	assert.Equal(t, 1, kept, "exactly one match keeps the requested code")
}

func TestStartSoloPractice(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "x"})
	fixedClock(svc, baseTime)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)

	result, err := svc.StartMatch(alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, result.Match.Status)

	_, err = store.GetInstance(m.ID, alice)
	assert.NoError(t, err)
}

func TestStartRejections(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	_, err := svc.StartMatch(alice, "no-such-match")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)

	// Only player one may start a match that is still waiting.
	_, err = svc.StartMatch(bob, m.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)

	_, err = svc.StartMatch(carol, m.ID)
	assert.ErrorIs(t, err, ErrNotAPlayer)

	_, err = svc.StartMatch(alice, m.ID)
	require.NoError(t, err)

	_, err = svc.StartMatch(bob, m.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStartConcurrentMintsInstancesOnce(t *testing.T) {
	gen := &stubGen{answer: "x"}
	svc, store, _ := newTestService(gen)
	fixedClock(svc, baseTime)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)

	// Both starts must observe the ready state before either activates.
	barrierClock(svc, 2, baseTime)

	var wg sync.WaitGroup
	results := make([]*StartResult, 2)
	startErrs := make([]error, 2)
	for i, player := range []int64{alice, bob} {
		wg.Add(1)
		go func(i int, player int64) {
			defer wg.Done()
			results[i], startErrs[i] = svc.StartMatch(player, m.ID)
		}(i, player)
	}
	wg.Wait()

	require.NoError(t, startErrs[0])
	require.NoError(t, startErrs[1])

	// Whoever lost the activation race discarded its freshly generated
	// instances and read back the persisted ones.
	instA, err := store.GetInstance(m.ID, alice)
	require.NoError(t, err)
	instB, err := store.GetInstance(m.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, instA.InputData, results[0].InputData)
	assert.Equal(t, instB.InputData, results[1].InputData)
	require.NotNil(t, results[0].Match.StartedAt)
	require.NotNil(t, results[1].Match.StartedAt)
	assert.Equal(t, *results[0].Match.StartedAt, *results[1].Match.StartedAt)
}

func TestGenerationFailureLeavesNothingPersisted(t *testing.T) {
	gen := &stubGen{err: errors.New("boom")}
	svc, store, _ := newTestService(gen)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)

	_, err = svc.StartMatch(alice, m.ID)
	assert.ErrorIs(t, err, ErrGeneration)

	current, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, current.Status)
	assert.Nil(t, current.StartedAt)

	_, err = store.GetInstance(m.ID, alice)
	assert.ErrorIs(t, err, ErrNoInstance)
	_, err = store.GetInstance(m.ID, bob)
	assert.ErrorIs(t, err, ErrNoInstance)
}

// startDuel creates, joins and starts a two-player match.
func startDuel(t *testing.T, svc *Service) *Match {
	t.Helper()
	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)
	result, err := svc.StartMatch(alice, m.ID)
	require.NoError(t, err)
	return result.Match
}

func TestSubmitFirstCorrectAnswerWins(t *testing.T) {
	svc, store, pub := newTestService(&stubGen{answer: "42"})
	advance := fixedClock(svc, baseTime)

	m := startDuel(t, svc)
	advance(12 * time.Second)

	result, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, StatusCompleted, result.MatchStatus)
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, alice, *result.WinnerID)
	require.NotNil(t, result.TimeTakenSeconds)
	assert.Equal(t, 12, *result.TimeTakenSeconds)
	assert.Equal(t, "Correct! You win!", result.Message)

	assert.Equal(t, []string{
		events.TypeMatchStarted,
		events.TypeAnswerSubmitted,
		events.TypeMatchCompleted,
	}, pub.types())

	winnerStats, err := store.UserStats(alice)
	require.NoError(t, err)
	assert.Equal(t, 1, winnerStats.MatchesWon)
	assert.Equal(t, 1, winnerStats.TotalMatches)
	assert.Equal(t, 1, winnerStats.TotalPuzzlesSolved)
	require.NotNil(t, winnerStats.FastestSolveSeconds)
	assert.Equal(t, 12, *winnerStats.FastestSolveSeconds)
	assert.Equal(t, 1, winnerStats.CurrentStreak)

	loserStats, err := store.UserStats(bob)
	require.NoError(t, err)
	assert.Equal(t, 1, loserStats.MatchesLost)
	assert.Equal(t, 1, loserStats.TotalMatches)
	assert.Equal(t, 0, loserStats.MatchesWon)
}

func TestSubmitCorrectButTooLate(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "42"})
	advance := fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	advance(12 * time.Second)
	first, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)
	require.NotNil(t, first.WinnerID)
	assert.Equal(t, alice, *first.WinnerID)

	advance(3 * time.Second)
	second, err := svc.SubmitAnswer(bob, m.ID, "42")
	require.NoError(t, err)
	assert.True(t, second.IsCorrect)
	assert.Equal(t, StatusCompleted, second.MatchStatus)
	require.NotNil(t, second.WinnerID)
	assert.Equal(t, alice, *second.WinnerID, "bob did not win")
	assert.Equal(t, "Correct, but your opponent solved it first!", second.Message)
}

func TestSubmitIncorrect(t *testing.T) {
	svc, _, pub := newTestService(&stubGen{answer: "42"})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	result, err := svc.SubmitAnswer(alice, m.ID, "41")
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, StatusActive, result.MatchStatus)
	assert.Nil(t, result.WinnerID)
	assert.Equal(t, "Incorrect answer, try again!", result.Message)

	types := pub.types()
	assert.Equal(t, events.TypeAnswerSubmitted, types[len(types)-1])
}

func TestSubmitIdempotentWhileStillActive(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "42"})
	advance := fixedClock(svc, baseTime)

	m := startDuel(t, svc)
	advance(12 * time.Second)

	// A duplicate submission can race in between the answer row landing and
	// the winner being stamped. Seed that window: the correct answer is
	// logged but the match has not completed yet.
	elapsed := 12
	require.NoError(t, store.RecordAnswer(&Answer{
		MatchID:          m.ID,
		PlayerID:         alice,
		PuzzleID:         testPuzzleID,
		SubmittedAnswer:  "42",
		IsCorrect:        true,
		TimeTakenSeconds: &elapsed,
		SubmittedAt:      baseTime.Add(12 * time.Second),
	}))
	answersBefore := len(store.answers)

	result, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, "You already submitted the correct answer", result.Message)

	// No new log row, no stats effect, no winner stamped by the duplicate.
	assert.Equal(t, answersBefore, len(store.answers))
	stats, err := store.UserStats(alice)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MatchesWon)
	current, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Nil(t, current.WinnerID)
}

func TestSubmitAfterCompletionStillResolves(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "42"})
	advance := fixedClock(svc, baseTime)

	m := startDuel(t, svc)
	advance(12 * time.Second)

	_, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)

	// The winner's resubmission returns the decided outcome, not an error,
	// and leaves no trace.
	statsBefore, err := store.UserStats(alice)
	require.NoError(t, err)
	answersBefore := len(store.answers)

	again, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)
	assert.True(t, again.IsCorrect)
	assert.Equal(t, StatusCompleted, again.MatchStatus)
	require.NotNil(t, again.WinnerID)
	assert.Equal(t, alice, *again.WinnerID)
	assert.Equal(t, "You already submitted the correct answer", again.Message)
	assert.Equal(t, answersBefore, len(store.answers))

	statsAfter, err := store.UserStats(alice)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)

	// The other player's wrong answer after completion is adjudicated and
	// logged, not rejected as stale.
	wrong, err := svc.SubmitAnswer(bob, m.ID, "41")
	require.NoError(t, err)
	assert.False(t, wrong.IsCorrect)
	assert.Equal(t, StatusCompleted, wrong.MatchStatus)
	assert.Equal(t, answersBefore+1, len(store.answers))
}

func TestSubmitRejections(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "42"})
	fixedClock(svc, baseTime)

	_, err := svc.SubmitAnswer(alice, "no-such-match", "42")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	_, err = svc.JoinMatch(bob, m.ID, "")
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(alice, m.ID, "42")
	assert.ErrorIs(t, err, ErrInvalidState)

	// Activate with only player one's instance to expose the missing-instance
	// bug signal for player two.
	_, err = store.ActivateMatch(m.ID, StatusReady, baseTime, []PuzzleInstance{{
		MatchID:        m.ID,
		PlayerID:       alice,
		PuzzleID:       testPuzzleID,
		InputData:      "in",
		ExpectedAnswer: "42",
	}})
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(carol, m.ID, "42")
	assert.ErrorIs(t, err, ErrNotAPlayer)

	_, err = svc.SubmitAnswer(bob, m.ID, "42")
	assert.ErrorIs(t, err, ErrNoInstance)

	// An abandoned match accepts no submissions at all.
	_, err = svc.AbandonMatch(alice, m.ID)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(alice, m.ID, "42")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAnswerNormalization(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "  SeCrEt42  "})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	result, err := svc.SubmitAnswer(alice, m.ID, "\tsecret42 \n")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect, "whitespace and case differences are ignored")
}

func TestEmptyExpectedAnswerNeverCorrect(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "   "})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	result, err := svc.SubmitAnswer(alice, m.ID, "   ")
	require.NoError(t, err)
	assert.False(t, result.IsCorrect, "empty-after-normalization is never correct")
	assert.Equal(t, StatusActive, result.MatchStatus)
}

func TestConcurrentCorrectSubmissionsExactlyOneWinner(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "42"})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	// Both submissions must observe the active, winnerless state before
	// either one reaches the winner compare-and-set.
	barrierClock(svc, 2, baseTime.Add(10*time.Second))

	results := make(map[int64]*SubmitResult, 2)
	submitErrs := make(map[int64]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, player := range []int64{alice, bob} {
		wg.Add(1)
		go func(player int64) {
			defer wg.Done()
			r, err := svc.SubmitAnswer(player, m.ID, "42")
			mu.Lock()
			results[player] = r
			submitErrs[player] = err
			mu.Unlock()
		}(player)
	}
	wg.Wait()

	for player, err := range submitErrs {
		require.NoError(t, err, "player %d", player)
	}

	current, err := store.GetMatch(m.ID)
	require.NoError(t, err)
	require.NotNil(t, current.WinnerID)
	winner := *current.WinnerID

	for player, r := range results {
		assert.True(t, r.IsCorrect, "player %d", player)
		assert.Equal(t, StatusCompleted, r.MatchStatus, "player %d", player)
		require.NotNil(t, r.WinnerID, "player %d", player)
		assert.Equal(t, winner, *r.WinnerID, "both responses agree on the winner")
	}

	winnerStats, err := store.UserStats(winner)
	require.NoError(t, err)
	assert.Equal(t, 1, winnerStats.MatchesWon)

	loser := alice
	if winner == alice {
		loser = bob
	}
	loserStats, err := store.UserStats(loser)
	require.NoError(t, err)
	assert.Equal(t, 0, loserStats.MatchesWon)
	assert.Equal(t, 1, loserStats.MatchesLost)
}

func TestStatsSurviveConcurrentCompletions(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "w"})
	advance := fixedClock(svc, baseTime)

	const wins = 10
	matchIDs := make([]string, wins)
	for i := 0; i < wins; i++ {
		m, err := svc.CreateMatch(alice, testPuzzleID, nil)
		require.NoError(t, err)
		_, err = svc.StartMatch(alice, m.ID)
		require.NoError(t, err)
		matchIDs[i] = m.ID
	}
	advance(12 * time.Second)

	submitErrs := make([]error, wins)
	var wg sync.WaitGroup
	for i, id := range matchIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			r, err := svc.SubmitAnswer(alice, id, "w")
			if err == nil && !r.IsCorrect {
				err = fmt.Errorf("submission for match %s judged incorrect", id)
			}
			submitErrs[i] = err
		}(i, id)
	}
	wg.Wait()

	for _, err := range submitErrs {
		require.NoError(t, err)
	}

	stats, err := store.UserStats(alice)
	require.NoError(t, err)
	assert.Equal(t, wins, stats.MatchesWon, "no completion lost")
	assert.Equal(t, wins, stats.TotalMatches)
	assert.Equal(t, wins, stats.TotalPuzzlesSolved)
	require.NotNil(t, stats.FastestSolveSeconds)
	assert.Equal(t, 12, *stats.FastestSolveSeconds)
	assert.Equal(t, wins, stats.BestStreak)
}

func TestFastestAndAverageSolveTimes(t *testing.T) {
	svc, store, _ := newTestService(&stubGen{answer: "w"})

	current := baseTime
	svc.now = func() time.Time { return current }

	for _, elapsed := range []int{30, 12, 20} {
		m, err := svc.CreateMatch(alice, testPuzzleID, nil)
		require.NoError(t, err)
		_, err = svc.StartMatch(alice, m.ID)
		require.NoError(t, err)
		current = current.Add(time.Duration(elapsed) * time.Second)
		r, err := svc.SubmitAnswer(alice, m.ID, "w")
		require.NoError(t, err)
		require.NotNil(t, r.TimeTakenSeconds)
		require.Equal(t, elapsed, *r.TimeTakenSeconds)
	}

	stats, err := store.UserStats(alice)
	require.NoError(t, err)
	require.NotNil(t, stats.FastestSolveSeconds)
	assert.Equal(t, 12, *stats.FastestSolveSeconds)
	require.NotNil(t, stats.AverageSolveSeconds)
	assert.InDelta(t, (30.0+12.0+20.0)/3.0, *stats.AverageSolveSeconds, 1e-9)
}

func TestRaceScenarioWinnerThenLateCorrect(t *testing.T) {
	// User A creates a public match, B joins via auto-match, A starts. A
	// submits the correct answer at t=12s and wins; B's correct answer at
	// t=15s reports completed with A as winner.
	svc, store, _ := newTestService(&stubGen{answer: "777"})
	advance := fixedClock(svc, baseTime)

	created, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	joined, err := svc.JoinMatch(bob, "", "")
	require.NoError(t, err)
	require.Equal(t, created.ID, joined.ID)

	startA, err := svc.StartMatch(alice, created.ID)
	require.NoError(t, err)
	instB, err := store.GetInstance(created.ID, bob)
	require.NoError(t, err)
	assert.NotEqual(t, startA.InputData, instB.InputData, "players receive distinct inputs")

	advance(12 * time.Second)
	resA, err := svc.SubmitAnswer(alice, created.ID, "777")
	require.NoError(t, err)
	assert.True(t, resA.IsCorrect)
	assert.Equal(t, StatusCompleted, resA.MatchStatus)
	assert.Equal(t, alice, *resA.WinnerID)
	assert.Equal(t, 12, *resA.TimeTakenSeconds)

	advance(3 * time.Second)
	resB, err := svc.SubmitAnswer(bob, created.ID, "777")
	require.NoError(t, err)
	assert.True(t, resB.IsCorrect)
	assert.Equal(t, StatusCompleted, resB.MatchStatus)
	assert.Equal(t, alice, *resB.WinnerID)
}

func TestAbandonMatch(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	_, err := svc.AbandonMatch(carol, m.ID)
	assert.ErrorIs(t, err, ErrNotAPlayer)

	abandoned, err := svc.AbandonMatch(bob, m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, abandoned.Status)

	_, err = svc.AbandonMatch(alice, m.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMatchDetailsWithholdExpectedAnswer(t *testing.T) {
	const secret = "classified-answer-token"
	svc, _, _ := newTestService(&stubGen{answer: secret})
	fixedClock(svc, baseTime)

	m := startDuel(t, svc)

	d, err := svc.GetMatchDetails(alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", d.Player1Username)
	assert.Equal(t, "bob", d.Player2Username)
	assert.NotEmpty(t, d.InputData)

	payload, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), secret)
}

func TestStartResponseWithholdsExpectedAnswer(t *testing.T) {
	const secret = "classified-answer-token"
	svc, _, _ := newTestService(&stubGen{answer: secret})
	fixedClock(svc, baseTime)

	m, err := svc.CreateMatch(alice, testPuzzleID, nil)
	require.NoError(t, err)
	result, err := svc.StartMatch(alice, m.ID)
	require.NoError(t, err)

	payload, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), secret)
}

func TestUserHistoryAndLeaderboard(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "42"})
	advance := fixedClock(svc, baseTime)

	m := startDuel(t, svc)
	advance(12 * time.Second)
	_, err := svc.SubmitAnswer(alice, m.ID, "42")
	require.NoError(t, err)

	history, err := svc.UserHistory(alice, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Won)
	assert.Equal(t, "bob", history[0].OpponentUsername)
	require.NotNil(t, history[0].TimeTakenSeconds)
	assert.Equal(t, 12, *history[0].TimeTakenSeconds)

	bobHistory, err := svc.UserHistory(bob, 0)
	require.NoError(t, err)
	require.Len(t, bobHistory, 1)
	assert.False(t, bobHistory[0].Won)
	assert.Equal(t, "alice", bobHistory[0].OpponentUsername)

	board, err := svc.Leaderboard(0)
	require.NoError(t, err)
	require.NotEmpty(t, board)
	assert.Equal(t, alice, board[0].UserID)
	assert.Equal(t, 1, board[0].MatchesWon)

	stats, err := svc.UserStats(alice)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, stats.WinRate(), 1e-9)
}

func TestUserStatsZeroValueForUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(&stubGen{answer: "x"})

	stats, err := svc.UserStats(999)
	require.NoError(t, err)
	assert.Equal(t, int64(999), stats.UserID)
	assert.Equal(t, 0, stats.TotalMatches)
	assert.Zero(t, stats.WinRate())
}
