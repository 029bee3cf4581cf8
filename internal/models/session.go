package models

import "time"

// Session is the archived record of a room that reached an ending.
type Session struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Ending    string    `json:"ending"`
	Path      []string  `json:"path"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}
