// Package respond writes JSON bodies for the REST handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/OktayBayram/nyx-game/internal/game"
)

// ErrorBody is the shape of every error, on the socket and over HTTP.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func Body(err *game.Error) ErrorBody {
	return ErrorBody{Message: err.Message, Code: string(err.Code)}
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, err *game.Error) {
	JSON(w, status, Body(err))
}
