package domain

import (
	"context"
	"errors"
	"strings"
)

// ViewState tags what a participant should see for the current turn.
type ViewState string

const (
	// StateReadyToWrite means it is this participant's turn and no sentence
	// exists yet for it.
	StateReadyToWrite ViewState = "ready_to_write"
	// StateWaitingForTurn means another participant holds the current turn.
	StateWaitingForTurn ViewState = "waiting_for_turn"
	// StateAlreadySubmitted means this participant's sentence for the current
	// turn is already stored.
	StateAlreadySubmitted ViewState = "already_submitted"
)

// View answers "what should this participant see right now?".
type View struct {
	State           ViewState
	GameID          string
	GameTitle       string
	CurrentTurn     int
	MaxParticipants int
	TurnOrder       int
	// PreviousText carries the immediately preceding sentence for
	// StateReadyToWrite; HasPrevious is false on turn 1 of a game created
	// without an opening sentence.
	PreviousText string
	HasPrevious  bool
	// SubmittedText carries the stored sentence for StateAlreadySubmitted.
	SubmittedText string
}

// StoryView is the full ordered story for one game.
type StoryView struct {
	GameID    string
	GameTitle string
	Status    GameStatus
	Sentences []Sentence
}

// HostSummary aggregates game progress for the host.
type HostSummary struct {
	GameID                string
	GameTitle             string
	Status                GameStatus
	CurrentTurn           int
	MaxParticipants       int
	TotalParticipants     int
	CompletedParticipants int
	SentencesWritten      int
}

// Reader answers read-only turn-state queries for the presentation layer.
type Reader struct {
	store Store
}

// NewReader constructs game read-side queries.
func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// ResolveView computes what one participant should see for the current turn.
// It performs no writes.
func (r *Reader) ResolveView(ctx context.Context, gameID string, participantID string) (View, error) {
	if r == nil || r.store == nil {
		return View{}, ErrStoreNotConfigured
	}
	gameID = strings.TrimSpace(gameID)
	participantID = strings.TrimSpace(participantID)
	if gameID == "" || participantID == "" {
		return View{}, ErrNotFound
	}

	game, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return View{}, err
	}
	if err := validateGame(game); err != nil {
		return View{}, err
	}
	participant, err := r.store.GetParticipant(ctx, gameID, participantID)
	if err != nil {
		return View{}, err
	}
	if game.Status.Terminal() {
		return View{}, ErrGameCompleted
	}

	view := View{
		GameID:          game.ID,
		GameTitle:       game.Title,
		CurrentTurn:     game.CurrentTurn,
		MaxParticipants: game.MaxParticipants,
		TurnOrder:       participant.TurnOrder,
	}

	existing, err := r.store.GetSentenceByTurn(ctx, gameID, game.CurrentTurn)
	switch {
	case err == nil:
		if strings.EqualFold(existing.AuthorEmail, participant.Email) {
			view.State = StateAlreadySubmitted
			view.SubmittedText = existing.Text
			return view, nil
		}
	case !errors.Is(err, ErrNotFound):
		return View{}, err
	}

	if participant.TurnOrder != game.CurrentTurn {
		view.State = StateWaitingForTurn
		return view, nil
	}

	view.State = StateReadyToWrite
	previous, err := r.previousSentence(ctx, gameID, game.CurrentTurn)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return view, nil
		}
		return View{}, err
	}
	view.PreviousText = previous.Text
	view.HasPrevious = true
	return view, nil
}

// Story returns the full ordered story for one game.
func (r *Reader) Story(ctx context.Context, gameID string) (StoryView, error) {
	if r == nil || r.store == nil {
		return StoryView{}, ErrStoreNotConfigured
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return StoryView{}, ErrNotFound
	}

	game, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return StoryView{}, err
	}
	sentences, err := r.store.ListSentences(ctx, gameID)
	if err != nil {
		return StoryView{}, err
	}
	return StoryView{
		GameID:    game.ID,
		GameTitle: game.Title,
		Status:    game.Status,
		Sentences: sentences,
	}, nil
}

// HostSummary aggregates participant and sentence progress for one game.
func (r *Reader) HostSummary(ctx context.Context, gameID string) (HostSummary, error) {
	if r == nil || r.store == nil {
		return HostSummary{}, ErrStoreNotConfigured
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return HostSummary{}, ErrNotFound
	}

	game, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return HostSummary{}, err
	}
	participants, err := r.store.ListParticipants(ctx, gameID)
	if err != nil {
		return HostSummary{}, err
	}
	sentences, err := r.store.ListSentences(ctx, gameID)
	if err != nil {
		return HostSummary{}, err
	}

	completed := 0
	for _, participant := range participants {
		if participant.HasCompleted {
			completed++
		}
	}
	return HostSummary{
		GameID:                game.ID,
		GameTitle:             game.Title,
		Status:                game.Status,
		CurrentTurn:           game.CurrentTurn,
		MaxParticipants:       game.MaxParticipants,
		TotalParticipants:     len(participants),
		CompletedParticipants: completed,
		SentencesWritten:      len(sentences),
	}, nil
}

func (r *Reader) previousSentence(ctx context.Context, gameID string, currentTurn int) (Sentence, error) {
	for turn := currentTurn - 1; turn >= 1; turn-- {
		sentence, err := r.store.GetSentenceByTurn(ctx, gameID, turn)
		if err == nil {
			return sentence, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Sentence{}, err
		}
	}
	return Sentence{}, ErrNotFound
}
