package expire

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/exquisite/internal/game/storage"
)

type fakeMaintenanceStore struct {
	games       []storage.GameRecord
	expireCalls int
}

func (s *fakeMaintenanceStore) ListExpirableGames(_ context.Context, _ time.Time) ([]storage.GameRecord, error) {
	return s.games, nil
}

func (s *fakeMaintenanceStore) ExpireGames(_ context.Context, _ time.Time) (int, error) {
	s.expireCalls++
	return len(s.games), nil
}

func expirableGame() storage.GameRecord {
	expiresAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return storage.GameRecord{
		ID:              "game-1",
		Title:           "Stalled Story",
		MaxParticipants: 4,
		CurrentTurn:     2,
		Status:          storage.GameStatusActive,
		ExpiresAt:       &expiresAt,
	}
}

func TestParseConfig_Flags(t *testing.T) {
	fs := flag.NewFlagSet("expire", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "custom.db", "-dry-run"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "custom.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if !cfg.DryRun {
		t.Fatal("expected dry run")
	}
}

func TestParseConfig_RejectsPositionalArgs(t *testing.T) {
	fs := flag.NewFlagSet("expire", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"extra"}); err == nil {
		t.Fatal("expected error for positional arguments")
	}
}

func TestRun_DryRunListsWithoutExpiring(t *testing.T) {
	store := &fakeMaintenanceStore{games: []storage.GameRecord{expirableGame()}}
	var out bytes.Buffer

	err := runWithStore(context.Background(), Config{DryRun: true}, store, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.expireCalls != 0 {
		t.Fatalf("expire calls = %d, want 0", store.expireCalls)
	}
	if !strings.Contains(out.String(), "game-1") {
		t.Fatalf("output missing game: %q", out.String())
	}
	if !strings.Contains(out.String(), "dry run: 1 game(s)") {
		t.Fatalf("output missing dry run summary: %q", out.String())
	}
}

func TestRun_ExpiresGames(t *testing.T) {
	store := &fakeMaintenanceStore{games: []storage.GameRecord{expirableGame()}}
	var out bytes.Buffer

	err := runWithStore(context.Background(), Config{}, store, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.expireCalls != 1 {
		t.Fatalf("expire calls = %d, want 1", store.expireCalls)
	}
	if !strings.Contains(out.String(), "expired 1 game(s)") {
		t.Fatalf("output missing summary: %q", out.String())
	}
}
