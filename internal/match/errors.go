package match

import "errors"

// Operation errors reported to the caller. All of them describe why a
// requested transition was rejected; none of them corrupt match state.
var (
	// ErrNotFound: the match or puzzle is absent or inactive.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the operation is not legal for the match's status.
	ErrInvalidState = errors.New("match is not in a valid state for this operation")

	// ErrNotAPlayer: the requester is not bound to this match.
	ErrNotAPlayer = errors.New("you are not a player in this match")

	// ErrSelfJoin: a player cannot join their own match.
	ErrSelfJoin = errors.New("cannot join your own match")

	// ErrMatchFull: the second seat is already taken.
	ErrMatchFull = errors.New("match is full")

	// ErrNoInstance: the requester has no puzzle instance. This indicates a
	// prior partial failure and is a server-side bug signal, not user error.
	ErrNoInstance = errors.New("no puzzle input found for player")

	// ErrGeneration: a generator invocation failed. The whole start attempt
	// is rolled back; no instance is persisted.
	ErrGeneration = errors.New("puzzle generation failed")
)
