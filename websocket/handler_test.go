package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/ws-gateway/auth"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()

	m := NewManager()
	h := NewHandler(m, nil, auth.NewVerifier(testSecret))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		m.CloseAll("test over")
		srv.Close()
	})
	return m, srv
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	token, err := auth.Issue(testSecret, userID, time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandshakeRegistersConnection(t *testing.T) {
	m, srv := newTestServer(t)
	user := uuid.New()
	conn := dial(t, srv, user)

	require.Eventually(t, func() bool {
		return m.CountConnections() == 1
	}, waitFor, tick)
	require.Len(t, m.ConnectionIDsForUser(user), 1)

	m.SendTradeUpdate(user, map[string]interface{}{"trade_id": "t-9"})

	conn.SetReadDeadline(time.Now().Add(waitFor))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeTradeUpdate, msg.Type)
}

func TestClientDisconnectCleansUp(t *testing.T) {
	m, srv := newTestServer(t)
	conn := dial(t, srv, uuid.New())

	require.Eventually(t, func() bool {
		return m.CountConnections() == 1
	}, waitFor, tick)

	conn.Close()

	require.Eventually(t, func() bool {
		return m.CountConnections() == 0
	}, waitFor, tick)
}

func TestInboundFramesAreIgnored(t *testing.T) {
	m, srv := newTestServer(t)
	user := uuid.New()
	conn := dial(t, srv, user)

	require.Eventually(t, func() bool {
		return m.CountConnections() == 1
	}, waitFor, tick)

	// No command protocol exists; the connection must survive chatter.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"server"}`)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.CountConnections())

	m.SendSystemNotification(map[string]interface{}{"text": "still here"})
	conn.SetReadDeadline(time.Now().Add(waitFor))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeSystemNotification, msg.Type)
}

func TestCloseAllSendsGoingAwayFrame(t *testing.T) {
	m, srv := newTestServer(t)
	conn := dial(t, srv, uuid.New())

	require.Eventually(t, func() bool {
		return m.CountConnections() == 1
	}, waitFor, tick)

	m.CloseAll("maintenance")

	conn.SetReadDeadline(time.Now().Add(waitFor))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
	assert.Equal(t, "maintenance", closeErr.Text)
}

func TestRejectsMissingToken(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRejectsForgedToken(t *testing.T) {
	m, srv := newTestServer(t)

	token, err := auth.Issue([]byte("wrong-secret"), uuid.New(), time.Hour)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, m.CountConnections())
}

func TestRejectsNonUUIDSubject(t *testing.T) {
	m, srv := newTestServer(t)

	// Valid signature, but the subject is not a user id.
	verifierErrToken := mintTokenWithSubject(t, "not-a-uuid")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, verifierErrToken), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, m.CountConnections())
}
