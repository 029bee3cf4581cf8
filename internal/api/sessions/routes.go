package sessions

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSessionRoutes registers the read-only session archive routes.
func RegisterSessionRoutes(r *mux.Router, h *SessionHandler) {
	r.HandleFunc("/api/v1/sessions", h.ListSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sessions/{id}", h.GetSession).Methods(http.MethodGet)
}
