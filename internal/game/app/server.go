// Package server hosts the HTTP surface for collaborative writing games.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/louisbranch/exquisite/internal/game/access"
	"github.com/louisbranch/exquisite/internal/game/domain"
	"github.com/louisbranch/exquisite/internal/game/storage"
	"github.com/louisbranch/exquisite/internal/game/storage/sqlite"
	"github.com/louisbranch/exquisite/internal/notify"
	"github.com/louisbranch/exquisite/internal/notify/email"
	"github.com/louisbranch/exquisite/internal/platform/timeouts"
)

// Config defines the inputs for the game HTTP surface.
type Config struct {
	HTTPAddr string
	// DBPath locates the SQLite database file.
	DBPath string
	// PublicBaseURL prefixes play and story links in outgoing email.
	PublicBaseURL string
	// EmailAPIKey enables email delivery when set.
	EmailAPIKey string
	// EmailFrom is the sender address for outgoing email.
	EmailFrom string
	// GrantsEnabled turns on capability-token issuing and verification,
	// configured through the EXQUISITE_GRANT_* environment.
	GrantsEnabled bool
	// DefaultExpiry schedules new games for maintenance expiry when positive.
	DefaultExpiry     time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the game HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// NewServer opens storage and wires the domain services behind the router.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		return nil, errors.New("database path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open game store: %w", err)
	}

	dispatcher, err := buildDispatcher(config)
	if err != nil {
		store.Close()
		return nil, err
	}

	var grantIssuer domain.GrantIssuer
	var grantVerifier *access.Verifier
	if config.GrantsEnabled {
		signerCfg, err := access.LoadSignerConfigFromEnv()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load grant signer: %w", err)
		}
		verifierCfg, err := access.LoadVerifierConfigFromEnv(nil)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load grant verifier: %w", err)
		}
		grantIssuer = access.NewSigner(signerCfg)
		grantVerifier = access.NewVerifier(verifierCfg)
	}

	domainStore := newDomainStoreAdapter(store)
	coordinatorOpts := []domain.CoordinatorOption{domain.WithDispatcher(dispatcher)}
	creatorOpts := []domain.CreatorOption{domain.WithCreatorDispatcher(dispatcher)}
	if grantIssuer != nil {
		coordinatorOpts = append(coordinatorOpts, domain.WithGrantIssuer(grantIssuer))
		creatorOpts = append(creatorOpts, domain.WithCreatorGrantIssuer(grantIssuer))
	}

	handler := newHandler(handlerDeps{
		coordinator:   domain.NewCoordinator(domainStore, coordinatorOpts...),
		creator:       domain.NewCreator(newBootstrapStoreAdapter(store, store), creatorOpts...),
		reader:        domain.NewReader(domainStore),
		themes:        store,
		verifier:      grantVerifier,
		defaultExpiry: config.DefaultExpiry,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a game server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init game server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve games: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("game server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("game server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close game store: %v", err)
		}
	}
}

func buildDispatcher(config Config) (notify.Dispatcher, error) {
	if strings.TrimSpace(config.EmailAPIKey) == "" {
		log.Printf("email delivery disabled, notifications are dropped")
		return notify.NopDispatcher{}, nil
	}
	if strings.TrimSpace(config.EmailFrom) == "" {
		return nil, errors.New("email sender address is required when delivery is enabled")
	}
	mailer := email.NewAPIMailer(email.APIConfig{
		APIKey: config.EmailAPIKey,
		From:   config.EmailFrom,
	}, nil)
	return email.NewDispatcher(mailer, email.WithBaseURL(config.PublicBaseURL)), nil
}

// handlerDeps carries the wired collaborators into the router.
type handlerDeps struct {
	coordinator   *domain.Coordinator
	creator       *domain.Creator
	reader        *domain.Reader
	themes        storage.ThemeStore
	verifier      *access.Verifier
	defaultExpiry time.Duration
}

func newHandler(deps handlerDeps) http.Handler {
	router := httprouter.New()

	h := &gameHandler{deps: deps}
	router.GET("/healthz", h.health)
	router.GET("/themes", h.listThemes)
	router.POST("/games", h.createGame)
	router.GET("/games/:game_id/participants/:participant_id", h.participantView)
	router.POST("/games/:game_id/participants/:participant_id/sentences", h.submitSentence)
	router.GET("/games/:game_id/story", h.story)
	router.GET("/games/:game_id/summary", h.hostSummary)

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, _ any) {
		writeError(w, http.StatusInternalServerError, "internal", "an unexpected error occurred")
	}
	return router
}
