// Package storage defines the persistence boundary for game state.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested game, participant, or sentence record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
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

// GameRecord stores one collaborative writing game.
type GameRecord struct {
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

// ParticipantRecord stores one game participant with a fixed turn slot.
type ParticipantRecord struct {
	ID           string
	GameID       string
	Email        string
	TurnOrder    int
	HasCompleted bool
	CreatedAt    time.Time
}

// SentenceRecord stores one accepted story sentence.
type SentenceRecord struct {
	ID          string
	GameID      string
	TurnNumber  int
	AuthorEmail string
	Text        string
	CreatedAt   time.Time
}

// ThemeRecord stores one story theme with optional starting prompts.
type ThemeRecord struct {
	ID              string
	Name            string
	Description     string
	StartingPrompts []string
	CreatedAt       time.Time
}

// GameUpdate describes a partial game progress update.
// Nil fields are left unchanged.
type GameUpdate struct {
	CurrentTurn *int
	Status      *GameStatus
	CompletedAt *time.Time
}

// Store persists and queries turn-coordination state.
type Store interface {
	GetGame(ctx context.Context, gameID string) (GameRecord, error)
	GetParticipant(ctx context.Context, gameID string, participantID string) (ParticipantRecord, error)
	GetParticipantByTurn(ctx context.Context, gameID string, turnOrder int) (ParticipantRecord, error)
	GetSentenceByTurn(ctx context.Context, gameID string, turnNumber int) (SentenceRecord, error)
	// InsertSentenceIfAbsent atomically creates the sentence for its
	// (game_id, turn_number) slot. When the slot is already taken it reports
	// created=false and returns the existing row instead of an error; the
	// uniqueness constraint is the arbiter under concurrent submissions.
	InsertSentenceIfAbsent(ctx context.Context, record SentenceRecord) (created bool, persisted SentenceRecord, err error)
	UpdateParticipantCompleted(ctx context.Context, participantID string, hasCompleted bool) error
	UpdateGameProgress(ctx context.Context, gameID string, update GameUpdate) error
	ListSentences(ctx context.Context, gameID string) ([]SentenceRecord, error)
	ListParticipants(ctx context.Context, gameID string) ([]ParticipantRecord, error)
}

// CommitTurnInput describes the paired sentence-insert and game-advance write.
type CommitTurnInput struct {
	Sentence      SentenceRecord
	ParticipantID string
	// NextTurn is the advanced turn counter; ignored when Complete is set.
	NextTurn int
	// Complete marks the game completed instead of advancing the turn.
	Complete    bool
	CompletedAt time.Time
}

// CommitTurnResult reports the outcome of one turn commit.
type CommitTurnResult struct {
	Created  bool
	Sentence SentenceRecord
}

// TurnCommitStore is an optional Store upgrade that runs the sentence insert,
// participant completion, and game advance as one transaction so a crash can
// never leave a sentence committed without its turn update.
type TurnCommitStore interface {
	CommitTurn(ctx context.Context, input CommitTurnInput) (CommitTurnResult, error)
}

// GameBootstrap describes the atomic creation of a game, its full
// participant set, and the optional opening sentence.
type GameBootstrap struct {
	Game         GameRecord
	Participants []ParticipantRecord
	Opening      *SentenceRecord
}

// BootstrapStore persists new games atomically.
type BootstrapStore interface {
	CreateGame(ctx context.Context, bootstrap GameBootstrap) error
}

// ThemeStore reads the theme catalog.
type ThemeStore interface {
	GetTheme(ctx context.Context, themeID string) (ThemeRecord, error)
	ListThemes(ctx context.Context) ([]ThemeRecord, error)
}

// MaintenanceStore supports the stale-game expiry command.
type MaintenanceStore interface {
	// ListExpirableGames returns active games whose expiry passed at now.
	ListExpirableGames(ctx context.Context, now time.Time) ([]GameRecord, error)
	// ExpireGames marks active games whose expiry passed at now as expired
	// and returns the number of games transitioned.
	ExpireGames(ctx context.Context, now time.Time) (int, error)
}
