package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-hub/internal/testutil"
	"github.com/rocketscienceinc/tictactoe-hub/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
)

func newTestServer(t *testing.T) string {
	t.Helper()

	logger := testutil.NopLogger()
	router := usecase.NewRouter(logger)
	registry := tictactoe.NewRegistry(logger, router, 0)
	auth := testutil.NewStaticAuth(map[string]string{"alice": "secret", "bob": "secret"})
	dispatcher := usecase.NewDispatcher(logger, auth, registry, router, usecase.Limits{MaxViolations: 2})

	srv := httptest.NewServer(New(logger, dispatcher).Handler())
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	data, err := json.Marshal(protocol.Message{Action: action, Payload: raw})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func receive(t *testing.T, conn *websocket.Conn) entity.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg protocol.Message
	require.NoError(t, json.Unmarshal(data, &msg))

	var event entity.Event
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	require.Equal(t, string(event.Type), msg.Action)

	return event
}

func receiveTypes(t *testing.T, conn *websocket.Conn, n int) []entity.Event {
	t.Helper()

	events := make([]entity.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, receive(t, conn))
	}

	return events
}

func login(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()

	send(t, conn, "auth:login", map[string]string{"username": username, "password": "secret"})
	require.Equal(t, entity.EventAuthenticated, receive(t, conn).Type)
}

func TestServer_Game(t *testing.T) {
	url := newTestServer(t)

	// Given: alice created a room and bob joined it
	alice := dial(t, url)
	login(t, alice, "alice")
	send(t, alice, "room:create", map[string]string{"room": "lobby"})
	assert.Equal(t,
		[]entity.EventType{entity.EventRoomCreated, entity.EventPlayerJoined},
		testutil.Types(receiveTypes(t, alice, 2)),
	)

	bob := dial(t, url)
	login(t, bob, "bob")
	send(t, bob, "room:join", map[string]string{"room": "lobby"})

	started := []entity.EventType{entity.EventPlayerJoined, entity.EventGameStarted, entity.EventBoardUpdated}
	assert.Equal(t, started, testutil.Types(receiveTypes(t, bob, 3)))
	assert.Equal(t, started, testutil.Types(receiveTypes(t, alice, 3)))

	// When: alice takes the centre
	send(t, alice, "game:turn", map[string]int{"position": 4})

	// Then: both see the same board
	for _, conn := range []*websocket.Conn{alice, bob} {
		event := receive(t, conn)
		assert.Equal(t, entity.EventBoardUpdated, event.Type)
		assert.Equal(t, entity.MarkX, event.Board[4])
		assert.Equal(t, entity.MarkO, event.Turn)
		assert.Equal(t, uint64(5), event.Seq)
	}

	// When: bob disconnects
	require.NoError(t, bob.Close(websocket.StatusNormalClosure, ""))

	// Then: alice wins by forfeit
	ended := receive(t, alice)
	assert.Equal(t, entity.EventGameEnded, ended.Type)
	assert.Equal(t, "alice", ended.Outcome.Winner)
	assert.True(t, ended.Outcome.Forfeit)
}

func TestServer_ProtocolViolations(t *testing.T) {
	url := newTestServer(t)
	conn := dial(t, url)

	// When: the client sends garbage
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("hello")))

	// Then: it is told why
	notice := receive(t, conn)
	require.NotNil(t, notice.Error)
	assert.Equal(t, apperror.KindProtocolViolation, notice.Error.Kind)

	// When: it keeps misbehaving
	send(t, conn, "room:create", map[string]string{"room": "lobby"})

	// Then: the last notice arrives before the connection is closed
	last := receive(t, conn)
	require.NotNil(t, last.Error)
	assert.Equal(t, apperror.KindProtocolViolation, last.Error.Kind)

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestServer_FlushesEveryNoticeBeforeClose(t *testing.T) {
	url := newTestServer(t)

	for i := 0; i < 20; i++ {
		conn := dial(t, url)

		// Given: a client that sends two undecodable frames back to back
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))

		// Then: both notices are delivered ahead of the close frame
		notices := 0
		var err error
		for {
			var data []byte
			if _, data, err = conn.Read(ctx); err != nil {
				break
			}

			var msg protocol.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Action == string(entity.EventErrorNotice) {
				notices++
			}
		}
		cancel()

		assert.Equal(t, 2, notices, "run %d", i)
		assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err), "run %d", i)
	}
}

func TestCloseFrame(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status websocket.StatusCode
		reason string
	}{
		{
			name:   "too many violations",
			err:    fmt.Errorf("%w: 5 violations", apperror.ErrTooManyViolations),
			status: websocket.StatusPolicyViolation,
			reason: apperror.ErrTooManyViolations.Error() + ": 5 violations",
		},
		{
			name:   "session closed",
			err:    apperror.ErrSessionClosed,
			status: websocket.StatusGoingAway,
			reason: apperror.ErrSessionClosed.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := closeFrame(tt.err)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, reason)
		})
	}

	_, reason := closeFrame(errors.New(strings.Repeat("x", 200)))
	assert.Len(t, reason, maxCloseReason)
}

func TestServer_ServeWaitsForSessions(t *testing.T) {
	// Given: a server with a logged in client sitting in a room
	logger := testutil.NopLogger()
	router := usecase.NewRouter(logger)
	registry := tictactoe.NewRegistry(logger, router, 0)
	auth := testutil.NewStaticAuth(map[string]string{"alice": "secret"})
	dispatcher := usecase.NewDispatcher(logger, auth, registry, router, usecase.Limits{})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- New(logger, dispatcher).Serve(ctx, listener) }()

	conn := dial(t, "ws://"+listener.Addr().String()+"/ws")
	login(t, conn, "alice")
	send(t, conn, "room:create", map[string]string{"room": "lobby"})
	receiveTypes(t, conn, 2)

	// When: the server is stopped
	cancel()

	// Then: Serve returns only after the session left its room and released its identity
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Zero(t, router.Len())
	assert.Zero(t, registry.Len())
}
