package game

import "fmt"

// Event is one inbound operation against a room. Every event carries the id
// of the player that issued it.
type Event interface {
	Actor() string
}

type (
	JoinEvent struct {
		PlayerID string
		Username string
	}
	LeaveEvent struct {
		PlayerID string
	}
	DisconnectEvent struct {
		PlayerID string
	}
	ResumeEvent struct {
		PlayerID string
	}
	KickEvent struct {
		PlayerID string
		TargetID string
	}
	ReadyEvent struct {
		PlayerID string
		Ready    bool
	}
	StartEvent struct {
		PlayerID string
	}
	TickEvent struct{}
	VoteEvent struct {
		PlayerID string
		Choice   string
	}
	SkipTextEvent struct {
		PlayerID  string
		PassageID string
	}
	ChatEvent struct {
		PlayerID string
		Text     string
		Time     string
	}
	RestartEvent struct {
		PlayerID string
	}
	CloseEvent struct {
		PlayerID string
	}
)

func (e JoinEvent) Actor() string       { return e.PlayerID }
func (e LeaveEvent) Actor() string      { return e.PlayerID }
func (e DisconnectEvent) Actor() string { return e.PlayerID }
func (e ResumeEvent) Actor() string     { return e.PlayerID }
func (e KickEvent) Actor() string       { return e.PlayerID }
func (e ReadyEvent) Actor() string      { return e.PlayerID }
func (e StartEvent) Actor() string      { return e.PlayerID }
func (TickEvent) Actor() string         { return "" }
func (e VoteEvent) Actor() string       { return e.PlayerID }
func (e SkipTextEvent) Actor() string   { return e.PlayerID }
func (e ChatEvent) Actor() string       { return e.PlayerID }
func (e RestartEvent) Actor() string    { return e.PlayerID }
func (e CloseEvent) Actor() string      { return e.PlayerID }

// Apply reduces ev into the room and returns the messages to deliver. On
// error the room is left unchanged.
func (r *Room) Apply(ev Event) ([]Outbound, error) {
	switch e := ev.(type) {
	case JoinEvent:
		return r.Join(e.PlayerID, e.Username)
	case LeaveEvent:
		return r.Leave(e.PlayerID)
	case DisconnectEvent:
		return r.Disconnect(e.PlayerID), nil
	case ResumeEvent:
		return r.Resume(e.PlayerID)
	case KickEvent:
		return r.Kick(e.PlayerID, e.TargetID)
	case ReadyEvent:
		return r.SetReady(e.PlayerID, e.Ready)
	case StartEvent:
		return r.Start(e.PlayerID)
	case TickEvent:
		return r.Tick(), nil
	case VoteEvent:
		return r.Vote(e.PlayerID, e.Choice)
	case SkipTextEvent:
		return r.SkipText(e.PlayerID, e.PassageID)
	case ChatEvent:
		return r.Chat(e.PlayerID, e.Text, e.Time)
	case RestartEvent:
		return r.Restart(e.PlayerID)
	case CloseEvent:
		return r.Close(e.PlayerID)
	default:
		return nil, Errorf(CodeBadRequest, "unsupported event %T", ev)
	}
}

// EventName names ev for logs.
func EventName(ev Event) string {
	switch ev.(type) {
	case JoinEvent:
		return "join"
	case LeaveEvent:
		return "leave"
	case DisconnectEvent:
		return "disconnect"
	case ResumeEvent:
		return "resume"
	case KickEvent:
		return "kick"
	case ReadyEvent:
		return "ready"
	case StartEvent:
		return "start"
	case TickEvent:
		return "tick"
	case VoteEvent:
		return "vote"
	case SkipTextEvent:
		return "skipText"
	case ChatEvent:
		return "chat"
	case RestartEvent:
		return "restart"
	case CloseEvent:
		return "close"
	}
	return fmt.Sprintf("%T", ev)
}
