package domain

import "errors"

var (
	// ErrNotFound indicates the game or participant is missing or mismatched.
	ErrNotFound = errors.New("game or participant not found")
	// ErrGameCompleted indicates the game accepts no further sentences.
	ErrGameCompleted = errors.New("game is already completed")
	// ErrNotYourTurn indicates another participant holds the current turn.
	ErrNotYourTurn = errors.New("not this participant's turn")
	// ErrInvalidSentence indicates the submitted text is empty or too long.
	ErrInvalidSentence = errors.New("sentence is empty or exceeds the length bound")
	// ErrInvalidGameState indicates a loaded game violates the turn-counter
	// invariant and must not be coordinated against.
	ErrInvalidGameState = errors.New("game turn counter is outside its bounds")
	// ErrInvalidInput indicates game creation input failed validation.
	ErrInvalidInput = errors.New("invalid game creation input")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("game store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("game id generator is not configured")
)
