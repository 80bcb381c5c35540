package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-hub/internal/testutil"
	"github.com/rocketscienceinc/tictactoe-hub/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
)

type client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func startServer(t *testing.T) string {
	t.Helper()

	logger := testutil.NopLogger()
	router := usecase.NewRouter(logger)
	registry := tictactoe.NewRegistry(logger, router, 0)
	auth := testutil.NewStaticAuth(map[string]string{"alice": "secret", "bob": "secret"})
	dispatcher := usecase.NewDispatcher(logger, auth, registry, router, usecase.Limits{MaxViolations: 3})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(logger, dispatcher).Serve(ctx, listener) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	return listener.Addr().String()
}

func connect(t *testing.T, addr string) *client {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &client{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (that *client) send(line string) {
	that.t.Helper()

	_, err := fmt.Fprintln(that.conn, line)
	require.NoError(that.t, err)
}

func (that *client) receive() entity.Event {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	line, err := that.reader.ReadBytes('\n')
	require.NoError(that.t, err)

	var msg protocol.Message
	require.NoError(that.t, json.Unmarshal(line, &msg))

	var event entity.Event
	require.NoError(that.t, json.Unmarshal(msg.Payload, &event))

	return event
}

func TestServer_Session(t *testing.T) {
	addr := startServer(t)

	// Given: two logged in clients
	alice := connect(t, addr)
	alice.send(`{"action":"auth:login","payload":{"username":"alice","password":"secret"}}`)
	require.Equal(t, entity.EventAuthenticated, alice.receive().Type)

	bob := connect(t, addr)
	bob.send(`{"action":"auth:login","payload":{"username":"bob","password":"wrong"}}`)
	assert.Equal(t, apperror.KindAuthenticationFailed, bob.receive().Error.Kind)
	bob.send(`{"action":"auth:login","payload":{"username":"bob","password":"secret"}}`)
	require.Equal(t, entity.EventAuthenticated, bob.receive().Type)

	// When: alice creates a room and bob lists the open ones
	alice.send(`{"action":"room:create","payload":{"room":"lobby"}}`)
	require.Equal(t, entity.EventRoomCreated, alice.receive().Type)
	require.Equal(t, entity.EventPlayerJoined, alice.receive().Type)

	bob.send("")
	bob.send(`{"action":"room:list","payload":{"mode":"player"}}`)

	// Then: the room is listed with its free seat
	list := bob.receive()
	require.Equal(t, entity.EventRoomList, list.Type)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "lobby", list.Rooms[0].Name)
	assert.True(t, list.Rooms[0].HasOpenSeat())

	// When: bob joins and moves out of turn
	bob.send(`{"action":"room:join","payload":{"room":"lobby"}}`)
	for _, expected := range []entity.EventType{entity.EventPlayerJoined, entity.EventGameStarted, entity.EventBoardUpdated} {
		require.Equal(t, expected, bob.receive().Type)
	}
	bob.send(`{"action":"game:turn","payload":{"position":0}}`)

	// Then: only bob is told
	assert.Equal(t, apperror.KindNotYourTurn, bob.receive().Error.Kind)
}

func TestServer_ClosesAfterViolations(t *testing.T) {
	addr := startServer(t)
	c := connect(t, addr)

	for i := 0; i < 3; i++ {
		c.send(`{not json`)
	}

	// Then: every line is answered with a notice before the server hangs up
	for i := 0; i < 3; i++ {
		assert.Equal(t, apperror.KindProtocolViolation, c.receive().Error.Kind)
	}

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := c.reader.ReadBytes('\n')
	assert.ErrorIs(t, err, io.EOF)
}
