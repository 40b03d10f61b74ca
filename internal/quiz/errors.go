package quiz

import "errors"

var (
	// ErrNotHosting is returned when an operation requires an open session.
	ErrNotHosting = errors.New("not hosting a session")
	// ErrAlreadyHosting is returned when startHosting is called twice.
	ErrAlreadyHosting = errors.New("already hosting a session")
	// ErrNoPlayers is returned when a game is started with an empty roster.
	ErrNoPlayers = errors.New("no players in roster")
	// ErrNoQuestions is returned when the bank has no questions matching
	// the requested categories.
	ErrNoQuestions = errors.New("no questions available")
	// ErrGameInProgress is returned when a game is started outside the lobby.
	ErrGameInProgress = errors.New("game already in progress")
)

var (
	errNameTooShort = errors.New("name too short")
	errNameTooLong  = errors.New("name too long")
)
