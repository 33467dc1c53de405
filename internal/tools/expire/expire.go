// Package expire closes active games whose expiry window has passed.
package expire

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/exquisite/internal/game/storage"
	"github.com/louisbranch/exquisite/internal/game/storage/sqlite"
	"github.com/louisbranch/exquisite/internal/platform/timeouts"
)

// Config holds expiry command configuration.
type Config struct {
	DBPath  string        `env:"EXQUISITE_DB_PATH"             envDefault:"exquisite.db"`
	Timeout time.Duration `env:"EXQUISITE_MAINTENANCE_TIMEOUT" envDefault:"5m"`
	DryRun  bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite database (default: EXQUISITE_DB_PATH or exquisite.db)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "list expirable games without closing them")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

// Run executes the expiry pass against the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open game store: %w", err)
	}
	defer store.Close()

	return runWithStore(ctx, cfg, store, out)
}

func runWithStore(ctx context.Context, cfg Config, store storage.MaintenanceStore, out io.Writer) error {
	if store == nil {
		return errors.New("maintenance store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	now := time.Now().UTC()
	games, err := store.ListExpirableGames(ctx, now)
	if err != nil {
		return fmt.Errorf("list expirable games: %w", err)
	}
	for _, game := range games {
		fmt.Fprintf(out, "expirable: %s %q (turn %d/%d, expired %s)\n",
			game.ID, game.Title, game.CurrentTurn, game.MaxParticipants,
			game.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if cfg.DryRun {
		fmt.Fprintf(out, "dry run: %d game(s) would be expired\n", len(games))
		return nil
	}

	expired, err := store.ExpireGames(ctx, now)
	if err != nil {
		return fmt.Errorf("expire games: %w", err)
	}
	fmt.Fprintf(out, "expired %d game(s)\n", expired)
	return nil
}
