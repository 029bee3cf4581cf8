// Package sessions serves the archive of finished games.
package sessions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/OktayBayram/nyx-game/internal/api/respond"
	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/storage"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type SessionHandler struct {
	Store storage.SessionStore
	Log   zerolog.Logger
}

func NewSessionHandler(store storage.SessionStore, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{Store: store, Log: log}
}

// ListSessions returns the most recent sessions, newest first. The optional
// limit query parameter is capped at maxLimit.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.Error(w, http.StatusBadRequest, game.Errorf(game.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxLimit)
	}
	sessions, err := h.Store.Recent(r.Context(), limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("list sessions")
		respond.Error(w, http.StatusInternalServerError, game.Errorf(game.CodeInternal, "Could not load sessions"))
		return
	}
	respond.JSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Store.Get(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, game.Errorf(game.CodeNotFound, "Session not found"))
	case err != nil:
		h.Log.Error().Err(err).Msg("get session")
		respond.Error(w, http.StatusInternalServerError, game.Errorf(game.CodeInternal, "Could not load session"))
	default:
		respond.JSON(w, http.StatusOK, session)
	}
}
