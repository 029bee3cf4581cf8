package passages

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterPassageRoutes registers the story lookup route.
func RegisterPassageRoutes(r *mux.Router, h *PassageHandler) {
	r.HandleFunc("/api/v1/story/{id}", h.GetPassage).Methods(http.MethodGet)
}
