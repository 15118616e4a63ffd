package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// connect registers a server-side Connection for playerID and returns the
// client end of the socket.
func connect(t *testing.T, hub *Hub, playerID uuid.UUID) (*websocket.Conn, *Connection) {
	t.Helper()
	registered := make(chan *Connection, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewConnection(conn, zerolog.Nop())
		hub.RegisterConnection(playerID, c)
		registered <- c
		go c.WritePump()
		c.ReadPump(func(Message) error { return nil })
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-registered:
		return client, c
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
		return nil, nil
	}
}

func readMessage(t *testing.T, client *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, client.ReadJSON(&msg))
	return msg
}

func TestSendToPlayer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	playerID := uuid.New()
	client, _ := connect(t, hub, playerID)

	msg, err := NewMessage(TypeTimerTick, TimerTickPayload{SessionID: "s1", RemainingSeconds: 7})
	require.NoError(t, err)
	require.NoError(t, hub.SendToPlayer(playerID, msg))

	got := readMessage(t, client)
	assert.Equal(t, TypeTimerTick, got.Type)
	assert.JSONEq(t, `{"session_id":"s1","question_index":0,"remaining_seconds":7}`, string(got.Payload))

	assert.ErrorIs(t, hub.SendToPlayer(uuid.New(), msg), ErrConnectionNotFound)
}

func TestBroadcastToQuizWatchers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	quizID := uuid.New()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	aliceConn, _ := connect(t, hub, alice)
	bobConn, _ := connect(t, hub, bob)
	connect(t, hub, carol)

	hub.WatchQuiz(quizID, alice)
	hub.WatchQuiz(quizID, bob)
	assert.Equal(t, 2, hub.Watchers(quizID))

	msg, err := NewMessage(TypeLeaderboardUpdate, LeaderboardUpdatePayload{QuizID: quizID.String()})
	require.NoError(t, err)
	require.NoError(t, hub.BroadcastToQuiz(quizID, msg))

	assert.Equal(t, TypeLeaderboardUpdate, readMessage(t, aliceConn).Type)
	assert.Equal(t, TypeLeaderboardUpdate, readMessage(t, bobConn).Type)

	hub.UnwatchQuiz(quizID, bob)
	assert.Equal(t, 1, hub.Watchers(quizID))
}

func TestUnregisterOnlyRemovesCurrentConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	playerID, quizID := uuid.New(), uuid.New()

	_, first := connect(t, hub, playerID)
	_, second := connect(t, hub, playerID)
	hub.WatchQuiz(quizID, playerID)

	// the first connection was replaced, so its cleanup is a no-op
	assert.ErrorIs(t, first.Send(Message{Type: TypeTimerTick}), ErrConnectionClosed)
	hub.UnregisterConnection(playerID, first)
	assert.True(t, hub.Connected(playerID))
	assert.Equal(t, 1, hub.Watchers(quizID))

	hub.UnregisterConnection(playerID, second)
	assert.False(t, hub.Connected(playerID))
	assert.Equal(t, 0, hub.Watchers(quizID))
}
