package rooms

import "github.com/OktayBayram/nyx-game/internal/models"

// Client to server events.
const (
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventResume      = "resume"
	EventLeaveRoom   = "leaveRoom"
	EventKick        = "kick"
	EventReady       = "ready"
	EventStartGame   = "startGame"
	EventVote        = "vote"
	EventSkipText    = "skipText"
	EventLobbyChat   = "lobbyChat"
	EventRestartGame = "restartGame"
	EventCloseRoom   = "closeRoom"
)

// Replies sent only to the requesting connection.
const (
	EventRoomCreated = "roomCreated"
	EventRoomJoined  = "roomJoined"
	EventRoomState   = "roomState"
	EventRoomLeft    = "roomLeft"
	EventError       = "error"
)

type createRoomRequest struct {
	Username string `json:"username"`
	Capacity int    `json:"capacity"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type resumeRequest struct {
	Token string `json:"token"`
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

type kickRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
}

type readyRequest struct {
	RoomCode string `json:"roomCode"`
	Ready    bool   `json:"ready"`
}

type voteRequest struct {
	RoomCode string `json:"roomCode"`
	Choice   string `json:"choice"`
}

type skipTextRequest struct {
	RoomCode       string `json:"roomCode"`
	CurrentPassage string `json:"currentPassage"`
}

// User is accepted for compatibility and ignored; the relay always uses
// the sender's registered name.
type lobbyChatRequest struct {
	RoomCode string `json:"roomCode"`
	User     string `json:"user"`
	Text     string `json:"text"`
	Time     string `json:"time"`
}

type roomCreatedPayload struct {
	RoomCode string          `json:"roomCode"`
	PlayerID string          `json:"playerId"`
	Token    string          `json:"token"`
	Room     models.RoomView `json:"room"`
}

type roomJoinedPayload struct {
	PlayerID string          `json:"playerId"`
	Token    string          `json:"token"`
	Room     models.RoomView `json:"room"`
}
