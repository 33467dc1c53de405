package domain

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/louisbranch/exquisite/internal/notify"
	"github.com/louisbranch/exquisite/internal/platform/id"
)

const (
	// MinGameParticipants is the smallest playable round, host included.
	MinGameParticipants = 2
	// MaxGameParticipants caps the round size, host included.
	MaxGameParticipants = 12
	// MaxGameTitleRunes bounds accepted titles, counted in runes.
	MaxGameTitleRunes = 100
)

// CreateGameInput describes one new game request.
type CreateGameInput struct {
	Title     string
	HostEmail string
	// InviteeEmails lists the writers after the host, in turn order.
	InviteeEmails []string
	// OpeningSentence optionally seeds turn 1, authored by the host.
	OpeningSentence string
	// ThemeID optionally selects a starting prompt used when
	// OpeningSentence is empty.
	ThemeID string
	// ExpiresIn optionally schedules the game for maintenance expiry.
	ExpiresIn time.Duration
}

// CreatedGame reports one bootstrapped game.
type CreatedGame struct {
	Game         Game
	Participants []Participant
	// Grants maps participant IDs to capability tokens, present only when a
	// grant issuer is configured.
	Grants map[string]string
}

// Creator bootstraps new games: validation, turn ordering, theme prompts,
// and the atomic initial write.
type Creator struct {
	store      BootstrapStore
	dispatcher notify.Dispatcher
	grants     GrantIssuer
	clock      func() time.Time
	newID      func() (string, error)
	pick       func(n int) int
	logf       func(format string, args ...any)
}

// CreatorOption customizes Creator construction.
type CreatorOption func(*Creator)

// WithCreatorDispatcher sets the notification collaborator.
func WithCreatorDispatcher(dispatcher notify.Dispatcher) CreatorOption {
	return func(c *Creator) {
		if dispatcher != nil {
			c.dispatcher = dispatcher
		}
	}
}

// WithCreatorGrantIssuer sets the capability-token issuer for play links.
func WithCreatorGrantIssuer(grants GrantIssuer) CreatorOption {
	return func(c *Creator) {
		c.grants = grants
	}
}

// WithCreatorClock overrides the time source.
func WithCreatorClock(clock func() time.Time) CreatorOption {
	return func(c *Creator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCreatorIDGenerator overrides ID generation.
func WithCreatorIDGenerator(newID func() (string, error)) CreatorOption {
	return func(c *Creator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithPromptPicker overrides theme prompt selection. The picker receives the
// prompt count and returns an index within it.
func WithPromptPicker(pick func(n int) int) CreatorOption {
	return func(c *Creator) {
		if pick != nil {
			c.pick = pick
		}
	}
}

// WithCreatorLogger overrides the dispatch-failure logger.
func WithCreatorLogger(logf func(format string, args ...any)) CreatorOption {
	return func(c *Creator) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewCreator constructs the game bootstrapper.
func NewCreator(store BootstrapStore, opts ...CreatorOption) *Creator {
	c := &Creator{
		store:      store,
		dispatcher: notify.NopDispatcher{},
		clock:      time.Now,
		newID:      id.NewID,
		pick:       rand.Intn,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Create validates and persists one new game atomically. The host always
// holds turn 1; invitees follow in the order given. An opening sentence
// fills turn 1 immediately, so the game starts on turn 2 with the host
// already completed.
func (c *Creator) Create(ctx context.Context, input CreateGameInput) (CreatedGame, error) {
	if c == nil || c.store == nil {
		return CreatedGame{}, ErrStoreNotConfigured
	}
	if c.newID == nil {
		return CreatedGame{}, ErrIDGeneratorNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return CreatedGame{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || utf8.RuneCountInString(title) > MaxGameTitleRunes {
		return CreatedGame{}, ErrInvalidInput
	}
	hostEmail := strings.TrimSpace(input.HostEmail)
	if hostEmail == "" {
		return CreatedGame{}, ErrInvalidInput
	}
	emails, err := dedupeEmails(hostEmail, input.InviteeEmails)
	if err != nil {
		return CreatedGame{}, err
	}
	if len(emails) < MinGameParticipants || len(emails) > MaxGameParticipants {
		return CreatedGame{}, ErrInvalidInput
	}

	opening := strings.TrimSpace(input.OpeningSentence)
	if utf8.RuneCountInString(opening) > MaxSentenceRunes {
		return CreatedGame{}, ErrInvalidSentence
	}
	themeID := strings.TrimSpace(input.ThemeID)
	if opening == "" && themeID != "" {
		opening, err = c.themePrompt(ctx, themeID)
		if err != nil {
			return CreatedGame{}, err
		}
	}

	gameID, err := c.newID()
	if err != nil {
		return CreatedGame{}, err
	}
	now := c.clock().UTC()
	game := Game{
		ID:              gameID,
		Title:           title,
		MaxParticipants: len(emails),
		CurrentTurn:     1,
		Status:          GameStatusActive,
		HostEmail:       hostEmail,
		ThemeID:         themeID,
		CreatedAt:       now,
	}
	if input.ExpiresIn > 0 {
		expiresAt := now.Add(input.ExpiresIn)
		game.ExpiresAt = &expiresAt
	}

	participants := make([]Participant, 0, len(emails))
	for i, email := range emails {
		participantID, err := c.newID()
		if err != nil {
			return CreatedGame{}, err
		}
		participants = append(participants, Participant{
			ID:        participantID,
			GameID:    gameID,
			Email:     email,
			TurnOrder: i + 1,
			CreatedAt: now,
		})
	}

	var openingSentence *Sentence
	if opening != "" {
		sentenceID, err := c.newID()
		if err != nil {
			return CreatedGame{}, err
		}
		openingSentence = &Sentence{
			ID:          sentenceID,
			GameID:      gameID,
			TurnNumber:  1,
			AuthorEmail: hostEmail,
			Text:        opening,
			CreatedAt:   now,
		}
		game.CurrentTurn = 2
		participants[0].HasCompleted = true
	}

	if err := c.store.CreateGame(ctx, game, participants, openingSentence); err != nil {
		return CreatedGame{}, err
	}

	created := CreatedGame{Game: game, Participants: participants}
	if c.grants != nil {
		created.Grants = make(map[string]string, len(participants))
		for _, participant := range participants {
			grant, err := c.grants.IssueParticipantGrant(gameID, participant.ID)
			if err != nil {
				c.logf("game %s: issue grant for participant %s: %v", gameID, participant.ID, err)
				continue
			}
			created.Grants[participant.ID] = grant
		}
	}

	c.dispatchFirstTurn(ctx, created, openingSentence)
	return created, nil
}

// dispatchFirstTurn notifies whoever holds the opening turn, unless that is
// the host, who just created the game and needs no email.
func (c *Creator) dispatchFirstTurn(ctx context.Context, created CreatedGame, opening *Sentence) {
	var first Participant
	found := false
	for _, participant := range created.Participants {
		if participant.TurnOrder == created.Game.CurrentTurn {
			first = participant
			found = true
			break
		}
	}
	if !found || strings.EqualFold(first.Email, created.Game.HostEmail) {
		return
	}

	event := notify.TurnNotification{
		GameID:           created.Game.ID,
		GameTitle:        created.Game.Title,
		ParticipantID:    first.ID,
		ParticipantEmail: first.Email,
		TurnNumber:       created.Game.CurrentTurn,
		MaxParticipants:  created.Game.MaxParticipants,
		AccessGrant:      created.Grants[first.ID],
	}
	if opening != nil {
		event.PreviousText = opening.Text
	}
	if err := c.dispatcher.SendTurnNotification(ctx, event); err != nil {
		c.logf("game %s: send first turn notification: %v", created.Game.ID, err)
	}
}

func (c *Creator) themePrompt(ctx context.Context, themeID string) (string, error) {
	theme, err := c.store.GetTheme(ctx, themeID)
	if err != nil {
		return "", err
	}
	if len(theme.StartingPrompts) == 0 {
		return "", nil
	}
	return theme.StartingPrompts[c.pick(len(theme.StartingPrompts))], nil
}

// dedupeEmails normalizes and orders the full writer list, host first.
// Duplicate addresses, compared case-insensitively, reject the input.
func dedupeEmails(hostEmail string, invitees []string) ([]string, error) {
	emails := make([]string, 0, len(invitees)+1)
	seen := make(map[string]struct{}, len(invitees)+1)

	add := func(email string) error {
		email = strings.TrimSpace(email)
		if email == "" || !strings.Contains(email, "@") {
			return ErrInvalidInput
		}
		key := strings.ToLower(email)
		if _, dup := seen[key]; dup {
			return ErrInvalidInput
		}
		seen[key] = struct{}{}
		emails = append(emails, email)
		return nil
	}

	if err := add(hostEmail); err != nil {
		return nil, err
	}
	for _, email := range invitees {
		if err := add(email); err != nil {
			return nil, err
		}
	}
	return emails, nil
}
