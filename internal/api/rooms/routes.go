package rooms

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/OktayBayram/nyx-game/internal/api/respond"
	"github.com/OktayBayram/nyx-game/internal/game"
)

// RegisterRoomRoutes mounts the websocket endpoint, the health check and
// room lookups.
func RegisterRoomRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rooms/{code}", h.GetRoom).Methods(http.MethodGet)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       h.Rooms.Len(),
		"connections": h.Hub.Len(),
		"passages":    h.Graph.Len(),
	})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.Rooms.View(mux.Vars(r)["code"])
	if err != nil {
		respond.Error(w, http.StatusNotFound, game.ErrRoomNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, view)
}
