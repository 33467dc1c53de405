// Package server parses game server flags and launches the service.
package server

import (
	"context"
	"flag"
	"time"

	app "github.com/louisbranch/exquisite/internal/game/app"
	entrypoint "github.com/louisbranch/exquisite/internal/platform/cmd"
)

// Config holds game server command configuration.
type Config struct {
	Addr          string        `env:"EXQUISITE_SERVER_ADDR"     envDefault:":8080"`
	DBPath        string        `env:"EXQUISITE_DB_PATH"         envDefault:"exquisite.db"`
	PublicBaseURL string        `env:"EXQUISITE_PUBLIC_BASE_URL"`
	EmailAPIKey   string        `env:"EXQUISITE_EMAIL_API_KEY"`
	EmailFrom     string        `env:"EXQUISITE_EMAIL_FROM"`
	GrantsEnabled bool          `env:"EXQUISITE_GRANTS_ENABLED"  envDefault:"false"`
	DefaultExpiry time.Duration `env:"EXQUISITE_GAME_EXPIRY"     envDefault:"168h"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		return app.Run(ctx, app.Config{
			HTTPAddr:      cfg.Addr,
			DBPath:        cfg.DBPath,
			PublicBaseURL: cfg.PublicBaseURL,
			EmailAPIKey:   cfg.EmailAPIKey,
			EmailFrom:     cfg.EmailFrom,
			GrantsEnabled: cfg.GrantsEnabled,
			DefaultExpiry: cfg.DefaultExpiry,
		})
	})
}
