package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OktayBayram/nyx-game/internal/api/respond"
	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/lobby"
	"github.com/OktayBayram/nyx-game/internal/models"
	"github.com/OktayBayram/nyx-game/internal/storage/memory"
	"github.com/OktayBayram/nyx-game/internal/story"
	"github.com/OktayBayram/nyx-game/internal/ws"
)

type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

type testServer struct {
	*httptest.Server
	handler  *Handler
	sessions *memory.SessionStore
}

func newTestServer(t *testing.T, configure func(*Handler)) *testServer {
	t.Helper()
	log := zerolog.Nop()

	graph, err := story.Load("../../../stories/default.json", story.Options{})
	require.NoError(t, err)

	hub := ws.NewHub(log)
	sessions := memory.NewSessionStore(10)
	rooms := lobby.New(graph, hub, sessions, lobby.Options{
		Room:              game.Options{CountdownSeconds: 3},
		CountdownInterval: 10 * time.Millisecond,
		NewRand:           func() game.Rand { return firstRand{} },
	}, log)
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	h := &Handler{
		Rooms:           rooms,
		Hub:             hub,
		Tokens:          tokens,
		Graph:           graph,
		Origins:         []string{"*"},
		EventsPerSecond: 1000,
		EventBurst:      1000,
		Log:             log,
	}
	if configure != nil {
		configure(h)
	}
	r := mux.NewRouter()
	RegisterRoomRoutes(r, h)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		_ = rooms.Shutdown(sctx)
	})
	return &testServer{Server: srv, handler: h, sessions: sessions}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(ws.Envelope{Event: event, Data: raw}))
}

func (c *wsClient) next() ws.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env ws.Envelope
	require.NoError(c.t, c.conn.ReadJSON(&env))
	return env
}

// expect reads until event arrives, skipping everything else, and decodes
// its payload into v when v is not nil.
func (c *wsClient) expect(event string, v any) {
	c.t.Helper()
	for {
		env := c.next()
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, v))
		}
		return
	}
}

func (c *wsClient) expectError(code game.Code) respond.ErrorBody {
	c.t.Helper()
	var e respond.ErrorBody
	c.expect(EventError, &e)
	assert.Equal(c.t, string(code), e.Code)
	assert.NotEmpty(c.t, e.Message)
	return e
}

// lobbyOfTwo creates a room as Alice and joins Bob.
func lobbyOfTwo(t *testing.T, s *testServer) (alice, bob *wsClient, created roomCreatedPayload, joined roomJoinedPayload) {
	t.Helper()
	alice = s.dial(t)
	bob = s.dial(t)

	alice.send(EventCreateRoom, createRoomRequest{Username: "Alice", Capacity: 2})
	alice.expect(EventRoomCreated, &created)

	bob.send(EventJoinRoom, joinRoomRequest{RoomCode: created.RoomCode, Username: "Bob"})
	bob.expect(EventRoomJoined, &joined)
	return alice, bob, created, joined
}

func TestEndToEnd_TwoPlayersVoteTogether(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, joined := lobbyOfTwo(t, s)

	assert.Len(t, created.RoomCode, lobby.DefaultCodeLength)
	assert.Equal(t, "lobby", created.Room.State)
	assert.NotEmpty(t, created.Token)
	assert.Len(t, joined.Room.Players, 2)

	var update game.RoomPayload
	alice.expect(game.EventPlayerJoined, &update)
	assert.Len(t, update.Room.Players, 2)

	alice.send(EventStartGame, roomRequest{RoomCode: created.RoomCode})
	for _, c := range []*wsClient{alice, bob} {
		var seconds []int
		for {
			env := c.next()
			if env.Event == game.EventCountdown {
				var p game.CountdownPayload
				require.NoError(t, json.Unmarshal(env.Data, &p))
				seconds = append(seconds, p.Seconds)
				continue
			}
			if env.Event == game.EventGameStarted {
				break
			}
		}
		assert.Equal(t, []int{3, 2, 1}, seconds)

		var p game.PassagePayload
		c.expect(game.EventPassage, &p)
		assert.Equal(t, "Awakening", p.Passage.ID)
		assert.Equal(t, 1, p.Round)
	}

	alice.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "forest"})
	bob.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "forest"})

	for _, c := range []*wsClient{alice, bob} {
		var res models.VoteResult
		c.expect(game.EventVoteResult, &res)
		assert.Equal(t, "forest", res.Choice)
		assert.Equal(t, "ForestEntry", res.NextPassage)
		assert.Equal(t, map[string]int{"ForestEntry": 2}, res.VoteCounts)
		assert.ElementsMatch(t, []string{"Alice", "Bob"}, res.VotersByChoice["ForestEntry"])
	}
}

func TestErrors_GoOnlyToSender(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, _ := lobbyOfTwo(t, s)

	bob.send(EventStartGame, roomRequest{RoomCode: created.RoomCode})
	bob.expectError(game.CodeNotHost)

	carol := s.dial(t)
	carol.send(EventJoinRoom, joinRoomRequest{RoomCode: created.RoomCode, Username: "Carol"})
	carol.expectError(game.CodeRoomFull)
	carol.send(EventJoinRoom, joinRoomRequest{RoomCode: "ZZZZZZ", Username: "Carol"})
	carol.expectError(game.CodeRoomNotFound)
	carol.send(EventVote, voteRequest{Choice: "forest"})
	carol.expectError(game.CodeNotInRoom)
	carol.send("dance", nil)
	carol.expectError(game.CodeBadRequest)

	// alice sees the chat but none of bob's or carol's errors
	bob.send(EventLobbyChat, lobbyChatRequest{RoomCode: created.RoomCode, User: "Mallory", Text: "hi", Time: "10:00"})
	for {
		env := alice.next()
		require.NotEqual(t, EventError, env.Event)
		if env.Event == game.EventLobbyChat {
			var chat game.ChatPayload
			require.NoError(t, json.Unmarshal(env.Data, &chat))
			assert.Equal(t, game.ChatPayload{User: "Bob", Text: "hi", Time: "10:00"}, chat)
			break
		}
	}
}

func TestMalformedFrame(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.dial(t)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	c.expectError(game.CodeBadRequest)

	c.send(EventCreateRoom, map[string]any{"username": "Alice", "capacity": "two"})
	c.expectError(game.CodeBadRequest)
}

func TestRateLimited(t *testing.T) {
	s := newTestServer(t, func(h *Handler) {
		h.EventsPerSecond = 0.001
		h.EventBurst = 1
	})
	c := s.dial(t)
	c.send("dance", nil)
	c.expectError(game.CodeBadRequest)
	c.send("dance", nil)
	c.expectError(game.CodeRateLimited)
}

func TestKick_TargetIsDetached(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, joined := lobbyOfTwo(t, s)

	alice.send(EventKick, kickRequest{RoomCode: created.RoomCode, TargetID: joined.PlayerID})
	bob.expect(game.EventKicked, nil)

	var left game.RoomPayload
	alice.expect(game.EventPlayerLeft, &left)
	assert.Len(t, left.Room.Players, 1)

	bob.send(EventReady, readyRequest{RoomCode: created.RoomCode, Ready: true})
	bob.expectError(game.CodeNotInRoom)
}

func TestLeaveAndHostTransfer(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, joined := lobbyOfTwo(t, s)

	alice.send(EventLeaveRoom, roomRequest{RoomCode: created.RoomCode})
	alice.expect(EventRoomLeft, nil)

	var host game.HostChangedPayload
	bob.expect(game.EventHostChanged, &host)
	assert.Equal(t, joined.PlayerID, host.HostPlayerID)

	res, err := http.Get(s.URL + "/api/v1/rooms/" + created.RoomCode)
	require.NoError(t, err)
	defer res.Body.Close()
	var view models.RoomView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&view))
	assert.Equal(t, joined.PlayerID, view.HostPlayerID)
	assert.Len(t, view.Players, 1)
}

func TestDisconnectDestroysEmptyRoom(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t)
	var created roomCreatedPayload
	alice.send(EventCreateRoom, createRoomRequest{Username: "Alice", Capacity: 2})
	alice.expect(EventRoomCreated, &created)
	require.Equal(t, 1, s.handler.Rooms.Len())

	alice.conn.Close()
	require.Eventually(t, func() bool { return s.handler.Rooms.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestResumeMidGame(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, joined := lobbyOfTwo(t, s)

	alice.send(EventStartGame, roomRequest{RoomCode: created.RoomCode})
	bob.expect(game.EventPassage, nil)
	alice.expect(game.EventPassage, nil)

	alice.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "river"})
	bob.expect(game.EventVoteUpdate, nil)

	bob.conn.Close()
	alice.expect(game.EventPlayerLeft, nil)
	// bob's departure completes the round with alice's ballot alone
	var res models.VoteResult
	alice.expect(game.EventVoteResult, &res)
	assert.Equal(t, "RiverBank", res.NextPassage)

	again := s.dial(t)
	again.send(EventResume, resumeRequest{Token: joined.Token})
	var state game.StatePayload
	again.expect(EventRoomState, &state)
	require.NotNil(t, state.Passage)
	assert.Equal(t, "RiverBank", state.Passage.ID)
	assert.Equal(t, "playing", state.Room.State)

	var back game.RoomPayload
	alice.expect(game.EventPlayerJoined, &back)
	for _, p := range back.Room.Players {
		assert.True(t, p.Connected, p.Username)
	}

	bogus := s.dial(t)
	bogus.send(EventResume, resumeRequest{Token: "garbage"})
	bogus.expectError(game.CodeInvalidToken)
}

func TestVoteAfterEndingIsIgnored(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t)
	var created roomCreatedPayload
	alice.send(EventCreateRoom, createRoomRequest{Username: "Alice", Capacity: 1})
	alice.expect(EventRoomCreated, &created)

	alice.send(EventStartGame, roomRequest{RoomCode: created.RoomCode})
	alice.expect(game.EventPassage, nil)
	alice.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "forest"})
	alice.expect(game.EventPassage, nil)
	alice.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "enter the oak"})

	var ended game.GameEndedPayload
	alice.expect(game.EventGameEnded, &ended)
	assert.Equal(t, "HollowOak", ended.Passage.ID)
	assert.Equal(t, []string{"Awakening", "ForestEntry", "HollowOak"}, ended.Path)

	alice.send(EventVote, voteRequest{RoomCode: created.RoomCode, Choice: "forest"})
	alice.send("dance", nil)
	alice.expectError(game.CodeBadRequest)

	require.Eventually(t, func() bool {
		sessions, err := s.sessions.Recent(context.Background(), 1)
		return err == nil && len(sessions) == 1 && sessions[0].Ending == "HollowOak"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestKickedPlayerCanHostNewRoom(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob, created, joined := lobbyOfTwo(t, s)

	alice.send(EventKick, kickRequest{RoomCode: created.RoomCode, TargetID: joined.PlayerID})
	bob.expect(game.EventKicked, nil)

	var mine roomCreatedPayload
	bob.send(EventCreateRoom, createRoomRequest{Username: "Bob", Capacity: 1})
	bob.expect(EventRoomCreated, &mine)
	require.NotEqual(t, created.RoomCode, mine.RoomCode)
	require.Equal(t, 2, s.handler.Rooms.Len())

	bob.send(EventStartGame, roomRequest{RoomCode: mine.RoomCode})
	bob.expect(game.EventGameStarted, nil)

	// the new seat is freed with the connection
	bob.conn.Close()
	require.Eventually(t, func() bool {
		_, err := s.handler.Rooms.View(mine.RoomCode)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.handler.Rooms.Len())
}

func TestREST(t *testing.T) {
	s := newTestServer(t, nil)

	res, err := http.Get(s.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	res.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["rooms"])

	res, err = http.Get(s.URL + "/api/v1/rooms/ZZZZ")
	require.NoError(t, err)
	var body respond.ErrorBody
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, string(game.CodeRoomNotFound), body.Code)
}
