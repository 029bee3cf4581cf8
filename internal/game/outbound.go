package game

import "github.com/OktayBayram/nyx-game/internal/models"

// Server-to-client event names.
const (
	EventPlayerJoined       = "playerJoined"
	EventPlayerLeft         = "playerLeft"
	EventKicked             = "kicked"
	EventHostChanged        = "hostChanged"
	EventReadyUpdate        = "readyUpdate"
	EventCountdown          = "countdown"
	EventCountdownCancelled = "countdownCancelled"
	EventGameStarted        = "gameStarted"
	EventPassage            = "passage"
	EventVoteUpdate         = "voteUpdate"
	EventVoteResult         = "voteResult"
	EventGameEnded          = "gameEnded"
	EventGameRestarted      = "gameRestarted"
	EventTextSkipped        = "textSkipped"
	EventLobbyChat          = "lobbyChat"
	EventRoomClosed         = "roomClosed"
)

// Outbound is one message a room wants delivered. To holds the recipient
// player ids, resolved at the time the message was produced. Room is filled
// in by the registry with the code of the room that produced it.
type Outbound struct {
	Room    string
	To      []string
	Event   string
	Payload any
}

type RoomPayload struct {
	Room models.RoomView `json:"room"`
}

type HostChangedPayload struct {
	HostPlayerID string `json:"hostPlayerId"`
}

type ReadyPayload struct {
	Ready int `json:"ready"`
	Total int `json:"total"`
}

type CountdownPayload struct {
	Seconds int `json:"seconds"`
}

type PassagePayload struct {
	Passage models.Passage `json:"passage"`
	Round   int            `json:"round"`
}

type GameEndedPayload struct {
	Passage models.Passage `json:"passage"`
	Path    []string       `json:"path"`
}

type TextSkippedPayload struct {
	Passage string `json:"passage"`
}

type ChatPayload struct {
	User string `json:"user"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// StatePayload is the full view a player needs to render the room from
// scratch, sent on join and resume.
type StatePayload struct {
	Room    models.RoomView `json:"room"`
	Passage *models.Passage `json:"passage,omitempty"`
	Tally   *models.Tally   `json:"tally,omitempty"`
	Voted   bool            `json:"voted"`
	Skipped bool            `json:"skipped"`
}

type empty struct{}
