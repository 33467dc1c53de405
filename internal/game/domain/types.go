// Package domain implements turn coordination for collaborative writing
// games: whose turn it is, idempotent sentence submission, game advancement,
// and notification hand-off.
package domain

import (
	"context"
	"time"
)

// GameStatus identifies one game lifecycle state.
type GameStatus string

const (
	// GameStatusActive means the game is collecting sentences.
	GameStatusActive GameStatus = "active"
	// GameStatusCompleted means the sentence for the final turn was accepted.
	GameStatusCompleted GameStatus = "completed"
	// GameStatusExpired means maintenance closed the game before completion.
	GameStatusExpired GameStatus = "expired"
)

// Terminal reports whether the status accepts no further sentences.
func (s GameStatus) Terminal() bool {
	return s == GameStatusCompleted || s == GameStatusExpired
}

// Game captures one collaborative writing game.
//
// CurrentTurn stays within [1, MaxParticipants] for the whole game lifetime;
// the final accepted sentence completes the game without advancing the
// counter past its terminal value.
type Game struct {
	ID              string
	Title           string
	MaxParticipants int
	CurrentTurn     int
	Status          GameStatus
	HostEmail       string
	ThemeID         string
	CreatedAt       time.Time
	CompletedAt     *time.Time
	ExpiresAt       *time.Time
}

// Participant captures one writer holding a fixed turn slot in a game.
type Participant struct {
	ID           string
	GameID       string
	Email        string
	TurnOrder    int
	HasCompleted bool
	CreatedAt    time.Time
}

// Sentence captures one accepted story contribution.
type Sentence struct {
	ID          string
	GameID      string
	TurnNumber  int
	AuthorEmail string
	Text        string
	CreatedAt   time.Time
}

// Theme is one catalog entry of starting prompts for new stories.
type Theme struct {
	ID              string
	Name            string
	Description     string
	StartingPrompts []string
}

// TurnCommit describes the paired sentence-insert and game-advance write.
type TurnCommit struct {
	Sentence      Sentence
	ParticipantID string
	// NextTurn is the advanced turn counter; ignored when Complete is set.
	NextTurn int
	// Complete marks the game completed instead of advancing the turn.
	Complete    bool
	CompletedAt time.Time
}

// Store is the domain persistence boundary for turn coordination.
type Store interface {
	GetGame(ctx context.Context, gameID string) (Game, error)
	GetParticipant(ctx context.Context, gameID string, participantID string) (Participant, error)
	GetParticipantByTurn(ctx context.Context, gameID string, turnOrder int) (Participant, error)
	GetSentenceByTurn(ctx context.Context, gameID string, turnNumber int) (Sentence, error)
	// InsertSentenceIfAbsent atomically claims the sentence slot for
	// (game, turn). A lost race reports created=false with the winning row;
	// the store's uniqueness constraint is the arbiter, never the caller.
	InsertSentenceIfAbsent(ctx context.Context, sentence Sentence) (created bool, persisted Sentence, err error)
	MarkParticipantCompleted(ctx context.Context, participantID string) error
	AdvanceGameTurn(ctx context.Context, gameID string, nextTurn int) error
	CompleteGame(ctx context.Context, gameID string, completedAt time.Time) error
	ListSentences(ctx context.Context, gameID string) ([]Sentence, error)
	ListParticipants(ctx context.Context, gameID string) ([]Participant, error)
}

// TurnCommitter is an optional Store upgrade that applies a TurnCommit in
// one transaction so the sentence insert and the game advance can never be
// observed apart.
type TurnCommitter interface {
	CommitTurn(ctx context.Context, commit TurnCommit) (created bool, persisted Sentence, err error)
}

// BootstrapStore persists new games atomically: the game row, the full
// participant set, and the optional opening sentence.
type BootstrapStore interface {
	CreateGame(ctx context.Context, game Game, participants []Participant, opening *Sentence) error
	GetTheme(ctx context.Context, themeID string) (Theme, error)
}

// GrantIssuer mints capability tokens for participant play links.
type GrantIssuer interface {
	IssueParticipantGrant(gameID string, participantID string) (string, error)
}

// validateGame asserts the loaded game invariants before coordination
// decisions are based on them.
func validateGame(game Game) error {
	if game.MaxParticipants < 1 {
		return ErrInvalidGameState
	}
	if game.CurrentTurn < 1 || game.CurrentTurn > game.MaxParticipants {
		return ErrInvalidGameState
	}
	return nil
}
