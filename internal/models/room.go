package models

// PlayerView is the public projection of a room member.
type PlayerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsHost    bool   `json:"isHost"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

// RoomView is the full room state sent to clients on join, resume and every
// membership change.
type RoomView struct {
	Code             string       `json:"code"`
	Capacity         int          `json:"capacity"`
	State            string       `json:"state"`
	HostPlayerID     string       `json:"hostPlayerId"`
	Players          []PlayerView `json:"players"`
	CurrentPassageID string       `json:"currentPassageId,omitempty"`
	Round            int          `json:"round"`
	GameStarted      bool         `json:"gameStarted"`
}

// Tally is the live vote count of an open round.
type Tally struct {
	Votes          int                 `json:"votes"`
	Total          int                 `json:"total"`
	VotersByChoice map[string][]string `json:"votersByChoice"`
}

// Achievement is awarded to every member when the room reaches an ending.
type Achievement struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// VoteResult is the final, already decided outcome of a round.
type VoteResult struct {
	Choice         string              `json:"choice"`
	VoteCounts     map[string]int      `json:"voteCounts"`
	VotersByChoice map[string][]string `json:"votersByChoice"`
	NextPassage    string              `json:"nextPassage"`
	Tie            bool                `json:"tie"`
	Achievement    *Achievement        `json:"achievement,omitempty"`
}
