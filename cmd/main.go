package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/OktayBayram/nyx-game/internal/api/passages"
	"github.com/OktayBayram/nyx-game/internal/api/rooms"
	"github.com/OktayBayram/nyx-game/internal/api/sessions"
	"github.com/OktayBayram/nyx-game/internal/config"
	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/lobby"
	"github.com/OktayBayram/nyx-game/internal/logging"
	"github.com/OktayBayram/nyx-game/internal/middleware"
	"github.com/OktayBayram/nyx-game/internal/storage"
	"github.com/OktayBayram/nyx-game/internal/storage/memory"
	"github.com/OktayBayram/nyx-game/internal/storage/valkeystore"
	"github.com/OktayBayram/nyx-game/internal/story"
	"github.com/OktayBayram/nyx-game/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "console")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// server is everything run starts and later shuts down.
type server struct {
	http     *http.Server
	rooms    *lobby.Registry
	sessions storage.SessionStore
}

func newServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*server, error) {
	graph, err := story.Load(cfg.StoryPath, story.Options{Start: cfg.StoryStart})
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.StoryPath).Str("start", graph.Start()).Int("passages", graph.Len()).Msg("story loaded")

	store, err := openSessions(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	tokens, err := rooms.NewTokens(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.TokenSecret == "" {
		log.Warn().Msg("NYX_TOKEN_SECRET not set; resume tokens will not survive a restart")
	}

	hub := ws.NewHub(log)
	registry := lobby.New(graph, hub, store, lobby.Options{
		Room: game.Options{
			CountdownSeconds: cfg.CountdownSeconds,
			RequireReady:     cfg.RequireReady,
			MinCapacity:      cfg.MinCapacity,
			MaxCapacity:      cfg.MaxCapacity,
		},
		CodeLength:        cfg.CodeLength,
		CountdownInterval: cfg.CountdownInterval,
	}, log)

	roomHandler := &rooms.Handler{
		Rooms:           registry,
		Hub:             hub,
		Tokens:          tokens,
		Graph:           graph,
		Origins:         cfg.AllowedOrigins,
		EventsPerSecond: cfg.EventsPerSecond,
		EventBurst:      cfg.EventBurst,
		Log:             log.With().Str("component", "rooms").Logger(),
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log))
	rooms.RegisterRoomRoutes(router, roomHandler)
	sessions.RegisterSessionRoutes(router, sessions.NewSessionHandler(store, log.With().Str("component", "sessions").Logger()))
	passages.RegisterPassageRoutes(router, passages.NewPassageHandler(graph, log.With().Str("component", "passages").Logger()))

	return &server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           middleware.CORS(cfg.AllowedOrigins, log)(router),
			ReadHeaderTimeout: 5 * time.Second,
		},
		rooms:    registry,
		sessions: store,
	}, nil
}

// run serves until ctx is cancelled and then shuts down gracefully.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	s, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.sessions.Close()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server started")
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// rooms first so members hear roomClosed before their sockets go away
	if err := s.rooms.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("rooms shutdown")
	}
	return s.http.Shutdown(shutdownCtx)
}

func openSessions(ctx context.Context, cfg config.Config, log zerolog.Logger) (storage.SessionStore, error) {
	if cfg.ValkeyAddr == "" {
		log.Info().Int("size", cfg.ArchiveSize).Msg("archiving sessions in memory")
		return memory.NewSessionStore(cfg.ArchiveSize), nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := valkeystore.Dial(dialCtx, cfg.ValkeyAddr, valkeystore.Options{Size: cfg.ArchiveSize})
	if err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.ValkeyAddr).Msg("archiving sessions in valkey")
	return store, nil
}
