package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgp/crowdplay/internal/protocol"
)

const wsReadWait = 2 * time.Second

// dialWS connects to path on the test server and registers cleanup.
func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads and decodes one protocol message within wsReadWait.
func readFrame(t *testing.T, conn *websocket.Conn) interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func pushState(turn int) protocol.StatePush {
	return protocol.StatePush{
		TickID: turn,
		GameID: "g",
		State: &protocol.GameState{
			Turn:             turn,
			Phase:            protocol.PhaseOverworld,
			AvailableActions: protocol.AvailableActions(),
			Overworld:        &protocol.Overworld{MapID: 1},
		},
	}
}

func TestHomeConnectRejectsBadSecret(t *testing.T) {
	s := newTestServer(testConfig())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dialWS(t, srv, "/home/connect")
	require.NoError(t, conn.WriteJSON(protocol.HomeAuth{Secret: "wrong-secret"}))

	msg := readFrame(t, conn)
	errMsg, ok := msg.(protocol.ErrorMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, protocol.CodeAuthFailed, errMsg.Code)

	// The error frame is followed by a 1008 close.
	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.False(t, s.home.Connected())
}

func TestHomeConnectDisabledWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Relay.Secret = ""
	s := newTestServer(cfg)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/home/connect"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

// authHome authenticates a home connection and confirms it is adopted by
// pushing a state and waiting for the echo.
func authHome(t *testing.T, conn *websocket.Conn, turn int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.HomeAuth{Secret: "relay-secret-0123456789"}))
	data, err := protocol.Encode(pushState(turn))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	msg := readFrame(t, conn)
	update, ok := msg.(protocol.StateUpdate)
	require.True(t, ok, "got %T", msg)
	require.Equal(t, turn, update.TickID)
}

func TestHomeConnectEvictsPreviousConnection(t *testing.T) {
	s := newTestServer(testConfig())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	first := dialWS(t, srv, "/home/connect")
	authHome(t, first, 1)
	assert.True(t, s.home.Connected())

	second := dialWS(t, srv, "/home/connect")
	authHome(t, second, 2)

	// The older connection is closed by the newer one.
	first.SetReadDeadline(time.Now().Add(wsReadWait))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// The newer connection stays live.
	assert.True(t, s.home.Connected())
}

func TestStatePushFlushesBufferedVotes(t *testing.T) {
	s := newTestServer(testConfig())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx := context.Background()
	require.NoError(t, s.buffer.Put(ctx, "g", "alice", "up", 100))
	require.NoError(t, s.buffer.Put(ctx, "g", "bob", "down", 200))

	conn := dialWS(t, srv, "/home/connect")
	require.NoError(t, conn.WriteJSON(protocol.HomeAuth{Secret: "relay-secret-0123456789"}))
	data, err := protocol.Encode(pushState(5))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	// Echo first, then the drained batch.
	msg := readFrame(t, conn)
	update, ok := msg.(protocol.StateUpdate)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 5, update.TickID)

	msg = readFrame(t, conn)
	batch, ok := msg.(protocol.VoteBatch)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 5, batch.TickID)
	assert.Equal(t, "g", batch.GameID)
	require.Len(t, batch.Votes, 2)

	size, err := s.buffer.Size(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestAgentStreamSendsCachedStateOnConnect(t *testing.T) {
	s := newTestServer(testConfig())
	s.handleBroadcast(broadcastState(3))
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dialWS(t, srv, "/agent/stream")
	msg := readFrame(t, conn)
	update, ok := msg.(protocol.StateUpdate)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 3, update.TickID)
	assert.Equal(t, 3, update.State.Turn)
}

func TestAgentStreamIsReadOnly(t *testing.T) {
	s := newTestServer(testConfig())
	s.handleBroadcast(broadcastState(1))
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dialWS(t, srv, "/agent/stream")
	readFrame(t, conn) // cached state

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote"}`)))

	msg := readFrame(t, conn)
	errMsg, ok := msg.(protocol.ErrorMessage)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, protocol.CodeNotSupported, errMsg.Code)
}

func TestAgentStreamBroadcast(t *testing.T) {
	s := newTestServer(testConfig())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn := dialWS(t, srv, "/agent/stream")

	// No cached state yet, so the first frame is the broadcast itself.
	require.Eventually(t, func() bool { return s.hub.Count() == 1 },
		wsReadWait, 10*time.Millisecond)
	s.handleBroadcast(broadcastState(9))

	msg := readFrame(t, conn)
	update, ok := msg.(protocol.StateUpdate)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 9, update.TickID)
}
