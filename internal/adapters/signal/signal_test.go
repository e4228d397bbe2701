package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/app/orch"
	"github.com/dkeye/Hangout/internal/auth"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/store"
)

type testServer struct {
	srv    *httptest.Server
	tokens *auth.JWTManager
	orch   *orch.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(app.SimplePolicy{})
	tokens := auth.NewJWTManager("test-secret", time.Hour)
	o := &orch.Orchestrator{
		Rooms:         app.NewRoomRegistry(store.NewMemoryStore()),
		Sessions:      app.NewSessionRegistry(),
		Transport:     hub,
		MaxRoomSize:   16,
		MaxMessageLen: 500,
	}
	ctrl := &SignalWSController{Orch: o, Hub: hub, Verifier: tokens, SendBuffer: 64}

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("test-secret"))))
	r.GET("/ws", func(c *gin.Context) { ctrl.HandleSignal(ctx, c) })

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, tokens: tokens, orch: o}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T, name string) *client {
	t.Helper()
	id, err := domain.NewIdentity(name, name+"@example.com")
	require.NoError(t, err)
	token, err := s.tokens.Issue(id)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(typ string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(core.Envelope{Type: typ, Data: raw}))
}

// expect reads frames until one of type typ arrives and returns its data.
func (c *client) expect(typ string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, msg, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", typ)
		var env core.Envelope
		require.NoError(c.t, json.Unmarshal(msg, &env))
		if env.Type == typ {
			return env.Data
		}
	}
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRejectsUnauthenticatedUpgrade(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomFlowOverWebSocket(t *testing.T) {
	s := newTestServer(t)
	host := s.dial(t, "host")
	guest := s.dial(t, "guest")

	host.send(core.EvWhoAmI, struct{}{})
	who := decodeAs[core.WhoAmI](t, host.expect(core.EvWhoAmI))
	assert.Equal(t, "host", who.User.Name)
	assert.Equal(t, "authenticated", who.State)

	host.send(core.EvCreateRoom, struct{}{})
	created := decodeAs[core.RoomCreated](t, host.expect(core.EvRoomCreated))
	code := string(created.RoomCode)
	assert.Len(t, code, domain.RoomCodeLen)

	guest.send(core.EvJoinRoom, core.JoinRoomPayload{RoomCode: strings.ToLower(code)})
	guest.expect(core.EvWaitingForAdmission)
	req := decodeAs[core.AdmissionRequest](t, host.expect(core.EvAdmissionRequest))
	assert.Equal(t, 1, req.WaitingCount)
	guestID := req.User.ID

	host.send(core.EvAdmitUser, core.AdmitUserPayload{RoomCode: code, ConnectionID: guestID, Admit: true})
	joined := decodeAs[core.RoomJoined](t, guest.expect(core.EvRoomJoined))
	require.Len(t, joined.Participants, 1)
	hostID := joined.Participants[0].ID
	arrived := decodeAs[core.UserView](t, host.expect(core.EvUserJoined))
	assert.Equal(t, guestID, arrived.ID)

	guest.send(core.EvSendMessage, core.SendMessagePayload{RoomCode: code, Text: "hi all"})
	for _, c := range []*client{host, guest} {
		msg := decodeAs[core.NewMessage](t, c.expect(core.EvNewMessage))
		assert.Equal(t, "hi all", msg.Text)
		assert.Equal(t, "guest", msg.Sender)
	}

	// Offer bytes reach the peer untouched.
	offer := `{"type":"offer","sdp":"v=0\r\na=group:BUNDLE 0 <tag> & more"}`
	raw := `{"type":"signal","data":{"to":"` + string(hostID) + `","description":` + offer + `}}`
	require.NoError(t, guest.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
	sig := decodeAs[struct {
		From        domain.ConnID   `json:"from"`
		Description json.RawMessage `json:"description"`
	}](t, host.expect(core.EvSignal))
	assert.Equal(t, guestID, sig.From)
	assert.Equal(t, offer, string(sig.Description))

	require.NoError(t, guest.conn.Close())
	left := decodeAs[core.UserLeft](t, host.expect(core.EvUserLeft))
	assert.Equal(t, guestID, left.ConnectionID)
}

func TestErrorsGoToInitiatorOnly(t *testing.T) {
	s := newTestServer(t)
	host := s.dial(t, "host")
	guest := s.dial(t, "guest")

	host.send(core.EvCreateRoom, struct{}{})
	code := string(decodeAs[core.RoomCreated](t, host.expect(core.EvRoomCreated)).RoomCode)

	guest.send(core.EvJoinRoom, core.JoinRoomPayload{RoomCode: "ABC"})
	e := decodeAs[core.ErrorEvent](t, guest.expect(core.EvError))
	assert.Equal(t, domain.KindValidation, e.Kind)

	guest.send(core.EvJoinRoom, core.JoinRoomPayload{RoomCode: code})
	guest.expect(core.EvWaitingForAdmission)
	host.expect(core.EvAdmissionRequest)

	guest.send(core.EvAdmitAll, core.AdmitAllPayload{RoomCode: code})
	e = decodeAs[core.ErrorEvent](t, guest.expect(core.EvError))
	assert.Equal(t, domain.KindAuthorization, e.Kind)

	require.NoError(t, guest.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e = decodeAs[core.ErrorEvent](t, guest.expect(core.EvError))
	assert.Equal(t, domain.KindValidation, e.Kind)

	guest.send("dance", struct{}{})
	guest.expect(core.EvError)

	// The connection survives every rejection.
	guest.send(core.EvPing, struct{}{})
	guest.expect(core.EvPong)

	// The host saw none of it.
	host.send(core.EvPing, struct{}{})
	require.NoError(t, host.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := host.conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"pong"`)
}
