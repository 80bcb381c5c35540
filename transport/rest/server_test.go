package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-hub/internal/testutil"
	"github.com/rocketscienceinc/tictactoe-hub/internal/tictactoe"
)

func newTestServer(t *testing.T) (*httptest.Server, *tictactoe.Registry) {
	t.Helper()

	registry := tictactoe.NewRegistry(testutil.NopLogger(), testutil.NewRecorder(), 0)
	srv := httptest.NewServer(New(testutil.NopLogger(), registry).Handler())
	t.Cleanup(srv.Close)

	return srv, registry
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestServer_Ping(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv.URL+"/ping")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body)
}

func TestServer_Rooms(t *testing.T) {
	srv, registry := newTestServer(t)

	// Given: one full room and one waiting for an opponent
	full, err := registry.Create("full", "alice")
	require.NoError(t, err)
	_, err = full.Join("bob")
	require.NoError(t, err)

	_, err = registry.Create("open", "carol")
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "all rooms", query: "", expected: []string{"full", "open"}},
		{name: "viewer mode", query: "?mode=viewer", expected: []string{"full", "open"}},
		{name: "player mode", query: "?mode=player", expected: []string{"open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := get(t, srv.URL+"/rooms"+tt.query)
			require.Equal(t, http.StatusOK, status)

			var resp roomsResponse
			require.NoError(t, json.Unmarshal([]byte(body), &resp))

			names := make([]string, 0, len(resp.Rooms))
			for _, room := range resp.Rooms {
				names = append(names, room.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}

	status, _ := get(t, srv.URL+"/rooms?mode=bogus")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Metrics(t *testing.T) {
	srv, registry := newTestServer(t)

	_, err := registry.Create("lobby", "alice")
	require.NoError(t, err)

	status, body := get(t, srv.URL+"/metrics")

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, "tictactoe_hub_rooms_active"))
}
