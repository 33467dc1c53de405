package domain

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/louisbranch/exquisite/internal/notify"
	"github.com/louisbranch/exquisite/internal/platform/id"
)

// MaxSentenceRunes bounds accepted sentence length, counted in runes.
const MaxSentenceRunes = 200

// SubmissionResult reports one accepted or replayed sentence submission.
type SubmissionResult struct {
	// Sentence is the persisted row for this turn. On a replay it is the
	// winning row, which may not carry the caller's text.
	Sentence Sentence
	// AlreadySubmitted is set when the slot was claimed before this call.
	AlreadySubmitted bool
	// GameCompleted is set when this submission filled the final turn.
	GameCompleted bool
	// NextTurn is the turn counter after this submission.
	NextTurn int
}

// Coordinator applies sentence submissions: turn checks, the idempotent
// insert, game advancement, and notification hand-off.
type Coordinator struct {
	store      Store
	dispatcher notify.Dispatcher
	grants     GrantIssuer
	clock      func() time.Time
	newID      func() (string, error)
	logf       func(format string, args ...any)
}

// CoordinatorOption customizes Coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithDispatcher sets the notification collaborator.
func WithDispatcher(dispatcher notify.Dispatcher) CoordinatorOption {
	return func(c *Coordinator) {
		if dispatcher != nil {
			c.dispatcher = dispatcher
		}
	}
}

// WithGrantIssuer sets the capability-token issuer for play links.
func WithGrantIssuer(grants GrantIssuer) CoordinatorOption {
	return func(c *Coordinator) {
		c.grants = grants
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator overrides sentence ID generation.
func WithIDGenerator(newID func() (string, error)) CoordinatorOption {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithLogger overrides the dispatch-failure logger.
func WithLogger(logf func(format string, args ...any)) CoordinatorOption {
	return func(c *Coordinator) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewCoordinator constructs the submission coordinator.
func NewCoordinator(store Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:      store,
		dispatcher: notify.NopDispatcher{},
		clock:      time.Now,
		newID:      id.NewID,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Submit records one participant's sentence for the game's current turn.
//
// The store's uniqueness constraint on (game, turn) is the concurrency
// arbiter: when two submissions race, exactly one insert succeeds and the
// loser receives the winning row as an AlreadySubmitted result with no error.
// Notifications fire only for the genuine first insert, and a dispatch
// failure never rolls back the accepted sentence.
func (c *Coordinator) Submit(ctx context.Context, gameID string, participantID string, text string) (SubmissionResult, error) {
	if c == nil || c.store == nil {
		return SubmissionResult{}, ErrStoreNotConfigured
	}
	if c.newID == nil {
		return SubmissionResult{}, ErrIDGeneratorNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return SubmissionResult{}, err
	}

	gameID = strings.TrimSpace(gameID)
	participantID = strings.TrimSpace(participantID)
	if gameID == "" || participantID == "" {
		return SubmissionResult{}, ErrNotFound
	}

	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := validateGame(game); err != nil {
		return SubmissionResult{}, err
	}
	participant, err := c.store.GetParticipant(ctx, gameID, participantID)
	if err != nil {
		return SubmissionResult{}, err
	}
	if game.Status.Terminal() {
		return SubmissionResult{}, ErrGameCompleted
	}
	if participant.TurnOrder != game.CurrentTurn {
		// A participant whose sentence is already stored sees the replay
		// result instead of a turn rejection.
		if existing, lookupErr := c.store.GetSentenceByTurn(ctx, gameID, participant.TurnOrder); lookupErr == nil {
			if strings.EqualFold(existing.AuthorEmail, participant.Email) {
				return SubmissionResult{
					Sentence:         existing,
					AlreadySubmitted: true,
					GameCompleted:    false,
					NextTurn:         game.CurrentTurn,
				}, nil
			}
		} else if !errors.Is(lookupErr, ErrNotFound) {
			return SubmissionResult{}, lookupErr
		}
		return SubmissionResult{}, ErrNotYourTurn
	}

	// Validated only once the participant holds the turn, so a missing or
	// finished game reports its own condition ahead of a bad sentence.
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxSentenceRunes {
		return SubmissionResult{}, ErrInvalidSentence
	}

	// Cheap pre-check; the insert below remains the source of truth.
	if existing, lookupErr := c.store.GetSentenceByTurn(ctx, gameID, game.CurrentTurn); lookupErr == nil {
		return SubmissionResult{
			Sentence:         existing,
			AlreadySubmitted: true,
			NextTurn:         game.CurrentTurn,
		}, nil
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return SubmissionResult{}, lookupErr
	}

	sentenceID, err := c.newID()
	if err != nil {
		return SubmissionResult{}, err
	}
	now := c.clock().UTC()
	isLastTurn := game.CurrentTurn == game.MaxParticipants
	commit := TurnCommit{
		Sentence: Sentence{
			ID:          sentenceID,
			GameID:      game.ID,
			TurnNumber:  game.CurrentTurn,
			AuthorEmail: participant.Email,
			Text:        text,
			CreatedAt:   now,
		},
		ParticipantID: participant.ID,
		NextTurn:      game.CurrentTurn + 1,
		Complete:      isLastTurn,
		CompletedAt:   now,
	}

	created, persisted, err := c.commitTurn(ctx, commit)
	if err != nil {
		return SubmissionResult{}, err
	}
	if !created {
		return SubmissionResult{
			Sentence:         persisted,
			AlreadySubmitted: true,
			NextTurn:         game.CurrentTurn,
		}, nil
	}

	result := SubmissionResult{
		Sentence:      persisted,
		GameCompleted: isLastTurn,
		NextTurn:      game.CurrentTurn,
	}
	if !isLastTurn {
		result.NextTurn = commit.NextTurn
	}

	if isLastTurn {
		c.dispatchStoryComplete(ctx, game)
	} else {
		c.dispatchTurnNotification(ctx, game, persisted, commit.NextTurn)
	}
	return result, nil
}

// commitTurn prefers the store's transactional upgrade so the sentence insert
// and the game advance can never be observed apart. Stores without the
// upgrade get the sequential fallback; its partial-failure window is bounded
// by the uniqueness constraint, which still admits at most one sentence per
// turn.
func (c *Coordinator) commitTurn(ctx context.Context, commit TurnCommit) (bool, Sentence, error) {
	if committer, ok := c.store.(TurnCommitter); ok {
		return committer.CommitTurn(ctx, commit)
	}

	created, persisted, err := c.store.InsertSentenceIfAbsent(ctx, commit.Sentence)
	if err != nil || !created {
		return created, persisted, err
	}
	if err := c.store.MarkParticipantCompleted(ctx, commit.ParticipantID); err != nil {
		return true, persisted, err
	}
	if commit.Complete {
		err = c.store.CompleteGame(ctx, commit.Sentence.GameID, commit.CompletedAt)
	} else {
		err = c.store.AdvanceGameTurn(ctx, commit.Sentence.GameID, commit.NextTurn)
	}
	if err != nil {
		return true, persisted, err
	}
	return true, persisted, nil
}

func (c *Coordinator) dispatchTurnNotification(ctx context.Context, game Game, accepted Sentence, nextTurn int) {
	next, err := c.store.GetParticipantByTurn(ctx, game.ID, nextTurn)
	if err != nil {
		c.logf("game %s: resolve participant for turn %d: %v", game.ID, nextTurn, err)
		return
	}

	event := notify.TurnNotification{
		GameID:           game.ID,
		GameTitle:        game.Title,
		ParticipantID:    next.ID,
		ParticipantEmail: next.Email,
		PreviousText:     accepted.Text,
		TurnNumber:       nextTurn,
		MaxParticipants:  game.MaxParticipants,
	}
	if c.grants != nil {
		grant, err := c.grants.IssueParticipantGrant(game.ID, next.ID)
		if err != nil {
			c.logf("game %s: issue grant for participant %s: %v", game.ID, next.ID, err)
		} else {
			event.AccessGrant = grant
		}
	}
	if err := c.dispatcher.SendTurnNotification(ctx, event); err != nil {
		c.logf("game %s: send turn notification for turn %d: %v", game.ID, nextTurn, err)
	}
}

func (c *Coordinator) dispatchStoryComplete(ctx context.Context, game Game) {
	sentences, err := c.store.ListSentences(ctx, game.ID)
	if err != nil {
		c.logf("game %s: list sentences for completion: %v", game.ID, err)
		return
	}
	participants, err := c.store.ListParticipants(ctx, game.ID)
	if err != nil {
		c.logf("game %s: list participants for completion: %v", game.ID, err)
		return
	}

	event := notify.StoryComplete{
		GameID:    game.ID,
		GameTitle: game.Title,
	}
	for _, sentence := range sentences {
		event.Sentences = append(event.Sentences, notify.StorySentence{
			TurnNumber:  sentence.TurnNumber,
			AuthorEmail: sentence.AuthorEmail,
			Text:        sentence.Text,
		})
	}
	for _, participant := range participants {
		event.ParticipantEmails = append(event.ParticipantEmails, participant.Email)
	}
	if err := c.dispatcher.SendStoryComplete(ctx, event); err != nil {
		c.logf("game %s: send story complete: %v", game.ID, err)
	}
}
