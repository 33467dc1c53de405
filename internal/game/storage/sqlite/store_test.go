package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/exquisite/internal/game/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "games.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}

func testBootstrap(now time.Time) storage.GameBootstrap {
	return storage.GameBootstrap{
		Game: storage.GameRecord{
			ID:              "game-1",
			Title:           "The Midnight Train",
			MaxParticipants: 3,
			CurrentTurn:     2,
			Status:          storage.GameStatusActive,
			HostEmail:       "host@example.com",
			CreatedAt:       now,
		},
		Participants: []storage.ParticipantRecord{
			{ID: "part-1", GameID: "game-1", Email: "host@example.com", TurnOrder: 1, HasCompleted: true, CreatedAt: now},
			{ID: "part-2", GameID: "game-1", Email: "second@example.com", TurnOrder: 2, CreatedAt: now},
			{ID: "part-3", GameID: "game-1", Email: "third@example.com", TurnOrder: 3, CreatedAt: now},
		},
		Opening: &storage.SentenceRecord{
			ID:          "sent-1",
			GameID:      "game-1",
			TurnNumber:  1,
			AuthorEmail: "host@example.com",
			Text:        "The train left the station with no one at the controls.",
			CreatedAt:   now,
		},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGameAndReadBack(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	if err := store.CreateGame(context.Background(), testBootstrap(now)); err != nil {
		t.Fatalf("create game: %v", err)
	}

	game, err := store.GetGame(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if game.Title != "The Midnight Train" || game.CurrentTurn != 2 || game.Status != storage.GameStatusActive {
		t.Fatalf("unexpected game: %+v", game)
	}
	if !game.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", game.CreatedAt, now)
	}

	participant, err := store.GetParticipant(context.Background(), "game-1", "part-2")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if participant.Email != "second@example.com" || participant.TurnOrder != 2 || participant.HasCompleted {
		t.Fatalf("unexpected participant: %+v", participant)
	}

	byTurn, err := store.GetParticipantByTurn(context.Background(), "game-1", 3)
	if err != nil {
		t.Fatalf("get participant by turn: %v", err)
	}
	if byTurn.ID != "part-3" {
		t.Fatalf("participant by turn = %+v", byTurn)
	}

	participants, err := store.ListParticipants(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 3 || participants[0].TurnOrder != 1 || participants[2].TurnOrder != 3 {
		t.Fatalf("unexpected participants: %+v", participants)
	}

	opening, err := store.GetSentenceByTurn(context.Background(), "game-1", 1)
	if err != nil {
		t.Fatalf("get opening: %v", err)
	}
	if opening.ID != "sent-1" || opening.AuthorEmail != "host@example.com" {
		t.Fatalf("unexpected opening: %+v", opening)
	}
}

func TestCreateGameRejectsDuplicateEmails(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	bootstrap := testBootstrap(now)
	// Same address with different casing collides on the unique index.
	bootstrap.Participants[2].Email = "Host@Example.com"

	err := store.CreateGame(context.Background(), bootstrap)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := store.GetGame(context.Background(), "game-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("partial create leaked: %v", err)
	}
}

func TestGetGameNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetGame(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetParticipant(context.Background(), "missing", "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("participant err = %v, want ErrNotFound", err)
	}
}

func TestUpdateParticipantAndGameProgress(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	if err := store.CreateGame(context.Background(), testBootstrap(now)); err != nil {
		t.Fatalf("create game: %v", err)
	}

	if err := store.UpdateParticipantCompleted(context.Background(), "part-2", true); err != nil {
		t.Fatalf("update participant: %v", err)
	}
	participant, err := store.GetParticipant(context.Background(), "game-1", "part-2")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if !participant.HasCompleted {
		t.Fatal("expected completed participant")
	}

	nextTurn := 3
	if err := store.UpdateGameProgress(context.Background(), "game-1", storage.GameUpdate{CurrentTurn: &nextTurn}); err != nil {
		t.Fatalf("advance turn: %v", err)
	}
	completedAt := now.Add(time.Hour)
	status := storage.GameStatusCompleted
	if err := store.UpdateGameProgress(context.Background(), "game-1", storage.GameUpdate{
		Status:      &status,
		CompletedAt: &completedAt,
	}); err != nil {
		t.Fatalf("complete game: %v", err)
	}

	game, err := store.GetGame(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if game.CurrentTurn != 3 || game.Status != storage.GameStatusCompleted {
		t.Fatalf("unexpected game: %+v", game)
	}
	if game.CompletedAt == nil || !game.CompletedAt.Equal(completedAt) {
		t.Fatalf("CompletedAt = %v, want %v", game.CompletedAt, completedAt)
	}
}

func TestUpdateGameProgressNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	nextTurn := 2
	err := store.UpdateGameProgress(context.Background(), "missing", storage.GameUpdate{CurrentTurn: &nextTurn})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSeededThemes(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	themes, err := store.ListThemes(context.Background())
	if err != nil {
		t.Fatalf("list themes: %v", err)
	}
	if len(themes) == 0 {
		t.Fatal("expected seeded themes")
	}

	theme, err := store.GetTheme(context.Background(), themes[0].ID)
	if err != nil {
		t.Fatalf("get theme: %v", err)
	}
	if len(theme.StartingPrompts) == 0 {
		t.Fatalf("theme %q has no starting prompts", theme.ID)
	}

	if _, err := store.GetTheme(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing theme err = %v, want ErrNotFound", err)
	}
}
