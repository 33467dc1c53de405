package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/exquisite/internal/notify"
)

var errIDGeneratorExhausted = errors.New("id generator exhausted")

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	queue := append([]string(nil), ids...)
	index := 0
	return func() (string, error) {
		if index >= len(queue) {
			return "", errIDGeneratorExhausted
		}
		value := queue[index]
		index++
		return value, nil
	}
}

func lockedSequentialIDGenerator(ids ...string) func() (string, error) {
	queue := append([]string(nil), ids...)
	index := 0
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if index >= len(queue) {
			return "", errIDGeneratorExhausted
		}
		value := queue[index]
		index++
		return value, nil
	}
}

func discardLogf(string, ...any) {}

type fakeStore struct {
	mu           sync.Mutex
	games        map[string]Game
	participants map[string]Participant
	// sentences is keyed by gameID plus turn number, mirroring the
	// uniqueness constraint real storage enforces.
	sentences map[string]Sentence
	themes    map[string]Theme

	insertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:        make(map[string]Game),
		participants: make(map[string]Participant),
		sentences:    make(map[string]Sentence),
		themes:       make(map[string]Theme),
	}
}

func sentenceSlotKey(gameID string, turnNumber int) string {
	return fmt.Sprintf("%s|%d", gameID, turnNumber)
}

func (s *fakeStore) putGame(game Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *fakeStore) putParticipant(participant Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[participant.ID] = participant
}

func (s *fakeStore) putSentence(sentence Sentence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentences[sentenceSlotKey(sentence.GameID, sentence.TurnNumber)] = sentence
}

func (s *fakeStore) putTheme(theme Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes[theme.ID] = theme
}

func (s *fakeStore) game(gameID string) Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[gameID]
}

func (s *fakeStore) participant(participantID string) Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants[participantID]
}

func (s *fakeStore) sentenceCount(gameID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sentence := range s.sentences {
		if sentence.GameID == gameID {
			count++
		}
	}
	return count
}

func (s *fakeStore) GetGame(_ context.Context, gameID string) (Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return Game{}, ErrNotFound
	}
	return game, nil
}

func (s *fakeStore) GetParticipant(_ context.Context, gameID string, participantID string) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantID]
	if !ok || participant.GameID != gameID {
		return Participant{}, ErrNotFound
	}
	return participant, nil
}

func (s *fakeStore) GetParticipantByTurn(_ context.Context, gameID string, turnOrder int) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, participant := range s.participants {
		if participant.GameID == gameID && participant.TurnOrder == turnOrder {
			return participant, nil
		}
	}
	return Participant{}, ErrNotFound
}

func (s *fakeStore) GetSentenceByTurn(_ context.Context, gameID string, turnNumber int) (Sentence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sentence, ok := s.sentences[sentenceSlotKey(gameID, turnNumber)]
	if !ok {
		return Sentence{}, ErrNotFound
	}
	return sentence, nil
}

func (s *fakeStore) InsertSentenceIfAbsent(_ context.Context, sentence Sentence) (bool, Sentence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	key := sentenceSlotKey(sentence.GameID, sentence.TurnNumber)
	if existing, ok := s.sentences[key]; ok {
		return false, existing, nil
	}
	s.sentences[key] = sentence
	return true, sentence, nil
}

func (s *fakeStore) MarkParticipantCompleted(_ context.Context, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantID]
	if !ok {
		return ErrNotFound
	}
	participant.HasCompleted = true
	s.participants[participantID] = participant
	return nil
}

func (s *fakeStore) AdvanceGameTurn(_ context.Context, gameID string, nextTurn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return ErrNotFound
	}
	game.CurrentTurn = nextTurn
	s.games[gameID] = game
	return nil
}

func (s *fakeStore) CompleteGame(_ context.Context, gameID string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return ErrNotFound
	}
	game.Status = GameStatusCompleted
	game.CompletedAt = &completedAt
	s.games[gameID] = game
	return nil
}

func (s *fakeStore) ListSentences(_ context.Context, gameID string) ([]Sentence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sentences []Sentence
	for _, sentence := range s.sentences {
		if sentence.GameID == gameID {
			sentences = append(sentences, sentence)
		}
	}
	sort.Slice(sentences, func(i, j int) bool {
		return sentences[i].TurnNumber < sentences[j].TurnNumber
	})
	return sentences, nil
}

func (s *fakeStore) ListParticipants(_ context.Context, gameID string) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var participants []Participant
	for _, participant := range s.participants {
		if participant.GameID == gameID {
			participants = append(participants, participant)
		}
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].TurnOrder < participants[j].TurnOrder
	})
	return participants, nil
}

func (s *fakeStore) CreateGame(_ context.Context, game Game, participants []Participant, opening *Sentence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[game.ID]; exists {
		return ErrInvalidInput
	}
	s.games[game.ID] = game
	for _, participant := range participants {
		s.participants[participant.ID] = participant
	}
	if opening != nil {
		s.sentences[sentenceSlotKey(opening.GameID, opening.TurnNumber)] = *opening
	}
	return nil
}

func (s *fakeStore) GetTheme(_ context.Context, themeID string) (Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	theme, ok := s.themes[themeID]
	if !ok {
		return Theme{}, ErrNotFound
	}
	return theme, nil
}

// committerStore layers a transactional turn commit over the fake store so
// the upgrade path gets exercised.
type committerStore struct {
	*fakeStore
	commitCalls int
}

func (s *committerStore) CommitTurn(ctx context.Context, commit TurnCommit) (bool, Sentence, error) {
	s.mu.Lock()
	s.commitCalls++
	key := sentenceSlotKey(commit.Sentence.GameID, commit.Sentence.TurnNumber)
	if existing, ok := s.sentences[key]; ok {
		s.mu.Unlock()
		return false, existing, nil
	}
	s.sentences[key] = commit.Sentence
	if participant, ok := s.participants[commit.ParticipantID]; ok {
		participant.HasCompleted = true
		s.participants[commit.ParticipantID] = participant
	}
	game := s.games[commit.Sentence.GameID]
	if commit.Complete {
		game.Status = GameStatusCompleted
		completedAt := commit.CompletedAt
		game.CompletedAt = &completedAt
	} else {
		game.CurrentTurn = commit.NextTurn
	}
	s.games[commit.Sentence.GameID] = game
	s.mu.Unlock()
	return true, commit.Sentence, nil
}

// recorderDispatcher captures dispatched events and can simulate failures.
type recorderDispatcher struct {
	mu            sync.Mutex
	turns         []notify.TurnNotification
	completions   []notify.StoryComplete
	turnErr       error
	completionErr error
}

func (d *recorderDispatcher) SendTurnNotification(_ context.Context, event notify.TurnNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.turnErr != nil {
		return d.turnErr
	}
	d.turns = append(d.turns, event)
	return nil
}

func (d *recorderDispatcher) SendStoryComplete(_ context.Context, event notify.StoryComplete) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.completionErr != nil {
		return d.completionErr
	}
	d.completions = append(d.completions, event)
	return nil
}

func (d *recorderDispatcher) turnCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.turns)
}

func (d *recorderDispatcher) completionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.completions)
}

type staticGrantIssuer struct{}

func (staticGrantIssuer) IssueParticipantGrant(gameID string, participantID string) (string, error) {
	return "grant:" + gameID + ":" + participantID, nil
}

// seedGame installs an active three-writer game on its second turn, with
// turn 1 already written by the host.
func seedGame(store *fakeStore) (Game, []Participant) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	game := Game{
		ID:              "game-1",
		Title:           "The Midnight Train",
		MaxParticipants: 3,
		CurrentTurn:     2,
		Status:          GameStatusActive,
		HostEmail:       "host@example.com",
		CreatedAt:       now,
	}
	participants := []Participant{
		{ID: "part-1", GameID: game.ID, Email: "host@example.com", TurnOrder: 1, HasCompleted: true, CreatedAt: now},
		{ID: "part-2", GameID: game.ID, Email: "second@example.com", TurnOrder: 2, CreatedAt: now},
		{ID: "part-3", GameID: game.ID, Email: "third@example.com", TurnOrder: 3, CreatedAt: now},
	}
	store.putGame(game)
	for _, participant := range participants {
		store.putParticipant(participant)
	}
	store.putSentence(Sentence{
		ID:          "sent-1",
		GameID:      game.ID,
		TurnNumber:  1,
		AuthorEmail: "host@example.com",
		Text:        "The train left the station with no one at the controls.",
		CreatedAt:   now,
	})
	return game, participants
}
