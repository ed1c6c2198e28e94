package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-trail/pkg/db"
	"audit-trail/pkg/logging"
)

type feedMessage struct {
	Type     string        `json:"type"`
	ID       string        `json:"id"`
	Version  *db.Version   `json:"version"`
	Versions []*db.Version `json:"versions"`
}

func setupFeed(t *testing.T, snapshot SnapshotFunc) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(snapshot, logging.Discard())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, server, cancel
}

func dialFeed(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFeed(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg feedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	stored := []*db.Version{
		{ID: "v2", Content: "newer", AddedWords: []string{"newer"}, RemovedWords: []string{}},
		{ID: "v1", Content: "older", AddedWords: []string{"older"}, RemovedWords: []string{}},
	}
	_, server, _ := setupFeed(t, func(ctx context.Context) ([]*db.Version, error) {
		return stored, nil
	})

	conn := dialFeed(t, server)
	msg := readFeed(t, conn)

	assert.Equal(t, TypeSnapshot, msg.Type)
	require.Len(t, msg.Versions, 2)
	assert.Equal(t, "v2", msg.Versions[0].ID)
	assert.Empty(t, msg.Versions[0].Content, "snapshot must not carry content")
}

func TestHubSnapshotErrorSendsEmptyList(t *testing.T) {
	_, server, _ := setupFeed(t, func(ctx context.Context) ([]*db.Version, error) {
		return nil, errors.New("store down")
	})

	conn := dialFeed(t, server)
	msg := readFeed(t, conn)

	assert.Equal(t, TypeSnapshot, msg.Type)
	assert.NotNil(t, msg.Versions)
	assert.Empty(t, msg.Versions)
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, server, _ := setupFeed(t, nil)

	first := dialFeed(t, server)
	second := dialFeed(t, server)
	readFeed(t, first)
	readFeed(t, second)
	waitForClients(t, hub, 2)

	hub.PublishSaved(&db.Version{ID: "v9", Content: "text", AddedWords: []string{"text"}, RemovedWords: []string{}})
	hub.PublishDeleted("v3")

	for _, conn := range []*websocket.Conn{first, second} {
		saved := readFeed(t, conn)
		assert.Equal(t, TypeVersionSaved, saved.Type)
		require.NotNil(t, saved.Version)
		assert.Equal(t, "v9", saved.Version.ID)
		assert.Empty(t, saved.Version.Content)

		deleted := readFeed(t, conn)
		assert.Equal(t, TypeVersionDeleted, deleted.Type)
		assert.Equal(t, "v3", deleted.ID)
	}
}

func TestHubAnswersPing(t *testing.T) {
	_, server, _ := setupFeed(t, nil)

	conn := dialFeed(t, server)
	readFeed(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypePing}))
	assert.Equal(t, TypePong, readFeed(t, conn).Type)
}

func TestHubRemovesClosedClients(t *testing.T) {
	hub, server, _ := setupFeed(t, nil)

	conn := dialFeed(t, server)
	readFeed(t, conn)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	hub, server, cancel := setupFeed(t, nil)

	conn := dialFeed(t, server)
	readFeed(t, conn)
	waitForClients(t, hub, 1)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after shutdown must not block.
	hub.PublishDeleted("late")
}
