package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OktayBayram/nyx-game/internal/config"
	"github.com/OktayBayram/nyx-game/internal/ws"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("NYX_ADDR", "127.0.0.1:0")
	t.Setenv("NYX_STORY_PATH", "../stories/default.json")
	t.Setenv("NYX_VALKEY_ADDR", "")
	t.Setenv("NYX_TOKEN_SECRET", "test-secret")
	t.Setenv("NYX_SHUTDOWN_TIMEOUT", "2s")
	cfg, err := config.Load("testdata/missing.env")
	require.NoError(t, err)
	return cfg
}

func TestNewServer_WiresRoutes(t *testing.T) {
	s, err := newServer(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.sessions.Close() })

	srv := httptest.NewServer(s.http.Handler)
	t.Cleanup(srv.Close)

	for path, status := range map[string]int{
		"/healthz":                 http.StatusOK,
		"/api/v1/story/Awakening":  http.StatusOK,
		"/api/v1/sessions":         http.StatusOK,
		"/api/v1/rooms/ZZZZ":       http.StatusNotFound,
		"/api/v1/sessions/missing": http.StatusNotFound,
	} {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, status, res.StatusCode, path)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(ws.Envelope{Event: "createRoom", Data: json.RawMessage(`{"username":"Alice","capacity":2}`)}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env ws.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "roomCreated", env.Event)
	assert.Equal(t, 1, s.rooms.Len())
}

func TestNewServer_BadStory(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoryPath = "testdata/nope.json"
	_, err := newServer(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg, zerolog.Nop()) }()

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
