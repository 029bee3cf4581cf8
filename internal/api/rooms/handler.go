// Package rooms serves the room socket protocol and room introspection.
package rooms

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/OktayBayram/nyx-game/internal/api/respond"
	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/lobby"
	"github.com/OktayBayram/nyx-game/internal/middleware"
	"github.com/OktayBayram/nyx-game/internal/story"
	"github.com/OktayBayram/nyx-game/internal/ws"
)

// Handler serves the room websocket protocol.
type Handler struct {
	Rooms   *lobby.Registry
	Hub     *ws.Hub
	Tokens  *Tokens
	Graph   *story.Graph
	Origins middleware.Origins

	EventsPerSecond float64
	EventBurst      int
	Log             zerolog.Logger
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.Origins.Allowed(r.Header.Get("Origin"))
		},
	}
}

func (h *Handler) limiter() *rate.Limiter {
	if h.EventsPerSecond <= 0 {
		return nil
	}
	burst := h.EventBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.EventsPerSecond), burst)
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), conn, h.limiter())
	h.Hub.Register(client)
	h.Log.Info().Str("player", client.ID()).Str("remote", r.RemoteAddr).Msg("connected")

	go client.WritePump()
	err = client.ReadPump(func(data []byte) { h.handle(client, data) })
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		h.Log.Debug().Err(err).Str("player", client.ID()).Msg("read")
	}

	// unregister first so a resume on a new connection cannot be undone
	h.Hub.Unregister(client)
	if code := client.Room(); code != "" {
		h.Rooms.Disconnect(code, client.ID())
	}
	h.Log.Info().Str("player", client.ID()).Msg("disconnected")
}

func (h *Handler) handle(c *ws.Client, data []byte) {
	if !c.Allow() {
		h.reply(c, EventError, respond.Body(game.ErrRateLimited))
		return
	}
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		h.reply(c, EventError, respond.Body(game.Errorf(game.CodeBadRequest, "Malformed message")))
		return
	}
	if err := h.dispatch(c, env); err != nil {
		h.fail(c, env.Event, err)
	}
}

func (h *Handler) reply(c *ws.Client, event string, payload any) {
	h.Hub.Send(c.ID(), event, payload)
}

// fail reports err to c only. Votes arriving after their round closed are
// dropped without a reply.
func (h *Handler) fail(c *ws.Client, event string, err error) {
	if event == EventVote && errors.Is(err, game.ErrNotInRound) {
		return
	}
	var gerr *game.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, lobby.ErrClosed) {
			gerr = game.Errorf(game.CodeUnavailable, "Server is shutting down")
		} else {
			h.Log.Error().Err(err).Str("player", c.ID()).Str("event", event).Msg("dispatch")
			gerr = game.Errorf(game.CodeInternal, "Something went wrong")
		}
	}
	h.Log.Debug().Str("player", c.ID()).Str("event", event).Str("code", string(gerr.Code)).Msg("rejected")
	h.reply(c, EventError, respond.Body(gerr))
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return game.Errorf(game.CodeBadRequest, "Malformed message")
	}
	return nil
}

// roomFor resolves the room an event targets. A connection only ever acts
// on the room it is in.
func roomFor(c *ws.Client, requested string) (string, error) {
	code := c.Room()
	if code == "" {
		return "", game.ErrNotInRoom
	}
	if requested != "" && !sameCode(requested, code) {
		return "", game.ErrNotInRoom
	}
	return code, nil
}

func (h *Handler) dispatch(c *ws.Client, env ws.Envelope) error {
	switch env.Event {
	case EventCreateRoom:
		var req createRoomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.createRoom(c, req)
	case EventJoinRoom:
		var req joinRoomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.joinRoom(c, req)
	case EventResume:
		var req resumeRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.resume(c, req)
	case EventLeaveRoom:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		code, err := roomFor(c, req.RoomCode)
		if err != nil {
			return err
		}
		if err := h.Rooms.Leave(code, c.ID()); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
			return err
		}
		c.SetRoom("")
		h.reply(c, EventRoomLeft, struct{}{})
		return nil
	case EventKick:
		var req kickRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		code, err := roomFor(c, req.RoomCode)
		if err != nil {
			return err
		}
		return h.Rooms.Kick(code, c.ID(), req.TargetID)
	case EventReady:
		var req readyRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.ReadyEvent{PlayerID: c.ID(), Ready: req.Ready})
	case EventStartGame:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.StartEvent{PlayerID: c.ID()})
	case EventVote:
		var req voteRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.VoteEvent{PlayerID: c.ID(), Choice: req.Choice})
	case EventSkipText:
		var req skipTextRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.SkipTextEvent{PlayerID: c.ID(), PassageID: req.CurrentPassage})
	case EventLobbyChat:
		var req lobbyChatRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		if req.Time == "" {
			req.Time = time.Now().UTC().Format(time.RFC3339)
		}
		return h.apply(c, req.RoomCode, game.ChatEvent{PlayerID: c.ID(), Text: req.Text, Time: req.Time})
	case EventRestartGame:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.RestartEvent{PlayerID: c.ID()})
	case EventCloseRoom:
		var req roomRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		return h.apply(c, req.RoomCode, game.CloseEvent{PlayerID: c.ID()})
	default:
		return game.Errorf(game.CodeBadRequest, "Unknown event %q", env.Event)
	}
}

func (h *Handler) apply(c *ws.Client, requested string, ev game.Event) error {
	code, err := roomFor(c, requested)
	if err != nil {
		return err
	}
	h.Log.Debug().Str("room", code).Str("player", c.ID()).Str("event", game.EventName(ev)).Msg("apply")
	return h.Rooms.Apply(code, ev)
}

// leaveCurrent takes c out of the room it is in before it enters another.
func (h *Handler) leaveCurrent(c *ws.Client) {
	code := c.Room()
	if code == "" {
		return
	}
	if err := h.Rooms.Leave(code, c.ID()); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		h.Log.Warn().Err(err).Str("room", code).Str("player", c.ID()).Msg("leave previous room")
	}
	c.SetRoom("")
}

func (h *Handler) createRoom(c *ws.Client, req createRoomRequest) error {
	h.leaveCurrent(c)
	snap, err := h.Rooms.Create(c.ID(), req.Username, req.Capacity)
	if err != nil {
		return err
	}
	code := snap.Room.Code
	c.SetRoom(code)

	token, err := h.Tokens.Issue(code, c.ID())
	if err != nil {
		return err
	}
	h.reply(c, EventRoomCreated, roomCreatedPayload{RoomCode: code, PlayerID: c.ID(), Token: token, Room: snap.Room})
	return nil
}

func (h *Handler) joinRoom(c *ws.Client, req joinRoomRequest) error {
	if !lobby.ValidCode(normalizeCode(req.RoomCode)) {
		return game.ErrRoomNotFound
	}
	if sameCode(req.RoomCode, c.Room()) {
		return game.Errorf(game.CodeBadRequest, "Already in this room")
	}
	h.leaveCurrent(c)
	snap, err := h.Rooms.Join(req.RoomCode, c.ID(), req.Username)
	if err != nil {
		return err
	}
	code := snap.Room.Code
	c.SetRoom(code)

	token, err := h.Tokens.Issue(code, c.ID())
	if err != nil {
		return err
	}
	h.reply(c, EventRoomJoined, roomJoinedPayload{PlayerID: c.ID(), Token: token, Room: snap.Room})
	return nil
}

func (h *Handler) resume(c *ws.Client, req resumeRequest) error {
	code, playerID, err := h.Tokens.Parse(req.Token)
	if err != nil {
		return err
	}
	if c.Room() != "" {
		return game.Errorf(game.CodeBadRequest, "Leave your current room first")
	}

	previous := c.ID()
	if err := h.Hub.Rebind(c, playerID); err != nil {
		return err
	}
	snap, err := h.Rooms.Resume(code, playerID)
	if err != nil {
		if rerr := h.Hub.Rebind(c, previous); rerr != nil {
			h.Log.Warn().Err(rerr).Str("player", previous).Msg("restore connection id")
		}
		return err
	}
	c.SetRoom(code)
	h.Log.Info().Str("room", code).Str("player", playerID).Msg("resumed")
	h.reply(c, EventRoomState, snap)
	return nil
}
