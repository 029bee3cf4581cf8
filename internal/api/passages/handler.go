// Package passages serves read-only lookups into the loaded story.
package passages

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/OktayBayram/nyx-game/internal/api/respond"
	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/story"
)

type PassageHandler struct {
	Graph *story.Graph
	Log   zerolog.Logger
}

func NewPassageHandler(graph *story.Graph, log zerolog.Logger) *PassageHandler {
	return &PassageHandler{Graph: graph, Log: log}
}

// GetPassage returns the passage with the given id. Declared endings without
// authored text resolve to a synthetic terminal passage.
func (h *PassageHandler) GetPassage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.Graph.Resolve(id)
	if errors.Is(err, story.ErrPassageNotFound) {
		respond.Error(w, http.StatusNotFound, game.Errorf(game.CodeNotFound, "Passage not found"))
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("passage", id).Msg("resolve passage")
		respond.Error(w, http.StatusInternalServerError, game.Errorf(game.CodeInternal, "Could not load passage"))
		return
	}
	respond.JSON(w, http.StatusOK, p)
}
