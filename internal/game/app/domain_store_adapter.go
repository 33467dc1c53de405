package server

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/exquisite/internal/game/domain"
	"github.com/louisbranch/exquisite/internal/game/storage"
)

// domainStoreAdapter bridges the storage records to the domain types. It
// implements domain.Store.
type domainStoreAdapter struct {
	store storage.Store
}

// turnCommitAdapter adds the transactional turn commit on top of the base
// adapter when the underlying store supports it.
type turnCommitAdapter struct {
	*domainStoreAdapter
	committer storage.TurnCommitStore
}

// newDomainStoreAdapter wraps a storage.Store for the domain. Stores that
// implement storage.TurnCommitStore keep that capability through the
// returned adapter.
func newDomainStoreAdapter(store storage.Store) domain.Store {
	adapter := &domainStoreAdapter{store: store}
	if committer, ok := store.(storage.TurnCommitStore); ok {
		return &turnCommitAdapter{domainStoreAdapter: adapter, committer: committer}
	}
	return adapter
}

func (a *domainStoreAdapter) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	if a == nil || a.store == nil {
		return domain.Game{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetGame(ctx, gameID)
	if err != nil {
		return domain.Game{}, mapStorageError(err)
	}
	return toDomainGame(record), nil
}

func (a *domainStoreAdapter) GetParticipant(ctx context.Context, gameID string, participantID string) (domain.Participant, error) {
	if a == nil || a.store == nil {
		return domain.Participant{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetParticipant(ctx, gameID, participantID)
	if err != nil {
		return domain.Participant{}, mapStorageError(err)
	}
	return toDomainParticipant(record), nil
}

func (a *domainStoreAdapter) GetParticipantByTurn(ctx context.Context, gameID string, turnOrder int) (domain.Participant, error) {
	if a == nil || a.store == nil {
		return domain.Participant{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetParticipantByTurn(ctx, gameID, turnOrder)
	if err != nil {
		return domain.Participant{}, mapStorageError(err)
	}
	return toDomainParticipant(record), nil
}

func (a *domainStoreAdapter) GetSentenceByTurn(ctx context.Context, gameID string, turnNumber int) (domain.Sentence, error) {
	if a == nil || a.store == nil {
		return domain.Sentence{}, domain.ErrStoreNotConfigured
	}
	record, err := a.store.GetSentenceByTurn(ctx, gameID, turnNumber)
	if err != nil {
		return domain.Sentence{}, mapStorageError(err)
	}
	return toDomainSentence(record), nil
}

func (a *domainStoreAdapter) InsertSentenceIfAbsent(ctx context.Context, sentence domain.Sentence) (bool, domain.Sentence, error) {
	if a == nil || a.store == nil {
		return false, domain.Sentence{}, domain.ErrStoreNotConfigured
	}
	created, persisted, err := a.store.InsertSentenceIfAbsent(ctx, toStorageSentence(sentence))
	if err != nil {
		return false, domain.Sentence{}, mapStorageError(err)
	}
	return created, toDomainSentence(persisted), nil
}

func (a *domainStoreAdapter) MarkParticipantCompleted(ctx context.Context, participantID string) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.store.UpdateParticipantCompleted(ctx, participantID, true))
}

func (a *domainStoreAdapter) AdvanceGameTurn(ctx context.Context, gameID string, nextTurn int) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.store.UpdateGameProgress(ctx, gameID, storage.GameUpdate{
		CurrentTurn: &nextTurn,
	}))
}

func (a *domainStoreAdapter) CompleteGame(ctx context.Context, gameID string, completedAt time.Time) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	status := storage.GameStatusCompleted
	return mapStorageError(a.store.UpdateGameProgress(ctx, gameID, storage.GameUpdate{
		Status:      &status,
		CompletedAt: &completedAt,
	}))
}

func (a *domainStoreAdapter) ListSentences(ctx context.Context, gameID string) ([]domain.Sentence, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListSentences(ctx, gameID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	sentences := make([]domain.Sentence, 0, len(records))
	for _, record := range records {
		sentences = append(sentences, toDomainSentence(record))
	}
	return sentences, nil
}

func (a *domainStoreAdapter) ListParticipants(ctx context.Context, gameID string) ([]domain.Participant, error) {
	if a == nil || a.store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.store.ListParticipants(ctx, gameID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	participants := make([]domain.Participant, 0, len(records))
	for _, record := range records {
		participants = append(participants, toDomainParticipant(record))
	}
	return participants, nil
}

func (a *turnCommitAdapter) CommitTurn(ctx context.Context, commit domain.TurnCommit) (bool, domain.Sentence, error) {
	if a == nil || a.committer == nil {
		return false, domain.Sentence{}, domain.ErrStoreNotConfigured
	}
	result, err := a.committer.CommitTurn(ctx, storage.CommitTurnInput{
		Sentence:      toStorageSentence(commit.Sentence),
		ParticipantID: commit.ParticipantID,
		NextTurn:      commit.NextTurn,
		Complete:      commit.Complete,
		CompletedAt:   commit.CompletedAt,
	})
	if err != nil {
		return false, domain.Sentence{}, mapStorageError(err)
	}
	return result.Created, toDomainSentence(result.Sentence), nil
}

// bootstrapStoreAdapter bridges game creation to storage. It implements
// domain.BootstrapStore.
type bootstrapStoreAdapter struct {
	store  storage.BootstrapStore
	themes storage.ThemeStore
}

func newBootstrapStoreAdapter(store storage.BootstrapStore, themes storage.ThemeStore) *bootstrapStoreAdapter {
	return &bootstrapStoreAdapter{store: store, themes: themes}
}

func (a *bootstrapStoreAdapter) CreateGame(ctx context.Context, game domain.Game, participants []domain.Participant, opening *domain.Sentence) error {
	if a == nil || a.store == nil {
		return domain.ErrStoreNotConfigured
	}
	bootstrap := storage.GameBootstrap{
		Game:         toStorageGame(game),
		Participants: make([]storage.ParticipantRecord, 0, len(participants)),
	}
	for _, participant := range participants {
		bootstrap.Participants = append(bootstrap.Participants, toStorageParticipant(participant))
	}
	if opening != nil {
		record := toStorageSentence(*opening)
		bootstrap.Opening = &record
	}
	return mapStorageError(a.store.CreateGame(ctx, bootstrap))
}

func (a *bootstrapStoreAdapter) GetTheme(ctx context.Context, themeID string) (domain.Theme, error) {
	if a == nil || a.themes == nil {
		return domain.Theme{}, domain.ErrStoreNotConfigured
	}
	record, err := a.themes.GetTheme(ctx, themeID)
	if err != nil {
		return domain.Theme{}, mapStorageError(err)
	}
	return toDomainTheme(record), nil
}

func toDomainGame(record storage.GameRecord) domain.Game {
	return domain.Game{
		ID:              record.ID,
		Title:           record.Title,
		MaxParticipants: record.MaxParticipants,
		CurrentTurn:     record.CurrentTurn,
		Status:          domain.GameStatus(record.Status),
		HostEmail:       record.HostEmail,
		ThemeID:         record.ThemeID,
		CreatedAt:       record.CreatedAt,
		CompletedAt:     record.CompletedAt,
		ExpiresAt:       record.ExpiresAt,
	}
}

func toStorageGame(game domain.Game) storage.GameRecord {
	return storage.GameRecord{
		ID:              game.ID,
		Title:           game.Title,
		MaxParticipants: game.MaxParticipants,
		CurrentTurn:     game.CurrentTurn,
		Status:          storage.GameStatus(game.Status),
		HostEmail:       game.HostEmail,
		ThemeID:         game.ThemeID,
		CreatedAt:       game.CreatedAt,
		CompletedAt:     game.CompletedAt,
		ExpiresAt:       game.ExpiresAt,
	}
}

func toDomainParticipant(record storage.ParticipantRecord) domain.Participant {
	return domain.Participant{
		ID:           record.ID,
		GameID:       record.GameID,
		Email:        record.Email,
		TurnOrder:    record.TurnOrder,
		HasCompleted: record.HasCompleted,
		CreatedAt:    record.CreatedAt,
	}
}

func toStorageParticipant(participant domain.Participant) storage.ParticipantRecord {
	return storage.ParticipantRecord{
		ID:           participant.ID,
		GameID:       participant.GameID,
		Email:        participant.Email,
		TurnOrder:    participant.TurnOrder,
		HasCompleted: participant.HasCompleted,
		CreatedAt:    participant.CreatedAt,
	}
}

func toDomainSentence(record storage.SentenceRecord) domain.Sentence {
	return domain.Sentence{
		ID:          record.ID,
		GameID:      record.GameID,
		TurnNumber:  record.TurnNumber,
		AuthorEmail: record.AuthorEmail,
		Text:        record.Text,
		CreatedAt:   record.CreatedAt,
	}
}

func toStorageSentence(sentence domain.Sentence) storage.SentenceRecord {
	return storage.SentenceRecord{
		ID:          sentence.ID,
		GameID:      sentence.GameID,
		TurnNumber:  sentence.TurnNumber,
		AuthorEmail: sentence.AuthorEmail,
		Text:        sentence.Text,
		CreatedAt:   sentence.CreatedAt,
	}
}

func toDomainTheme(record storage.ThemeRecord) domain.Theme {
	return domain.Theme{
		ID:              record.ID,
		Name:            record.Name,
		Description:     record.Description,
		StartingPrompts: append([]string(nil), record.StartingPrompts...),
	}
}

func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	default:
		return err
	}
}
