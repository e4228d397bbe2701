package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Hangout/internal/adapters/rtc"
	"github.com/dkeye/Hangout/internal/adapters/signal"
	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/app/orch"
	"github.com/dkeye/Hangout/internal/auth"
	"github.com/dkeye/Hangout/internal/config"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/store"
	handlers "github.com/dkeye/Hangout/internal/transport/http"
)

type env struct {
	r     *gin.Engine
	h     *handlers.Handlers
	rooms *app.RoomRegistry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "router-secret",
		TokenTTL:   time.Hour,
	}

	db := store.NewMemoryStore()
	rooms := app.NewRoomRegistry(db)
	sessions := app.NewSessionRegistry()
	hub := signal.NewHub(app.SimplePolicy{})
	tokens := auth.NewJWTManager(cfg.Secret, cfg.TokenTTL)
	o := &orch.Orchestrator{Rooms: rooms, Sessions: sessions, Transport: hub}

	h := &handlers.Handlers{
		Rooms:    rooms,
		Sessions: sessions,
		Tokens:   tokens,
		Store:    db,
		WebRTC:   rtc.DefaultWebRTCConfig(),
	}
	ctrl := &signal.SignalWSController{Orch: o, Hub: hub, Verifier: tokens}
	return &env{r: SetupRouter(context.Background(), cfg, h, ctrl), h: h, rooms: rooms}
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *env) login(t *testing.T, name, email string) (string, []*http.Cookie) {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + email + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, w.Result().Cookies()
}

func TestLoginAndCurrentUser(t *testing.T) {
	e := newEnv(t)
	token, cookies := e.login(t, "Ada", "Ada@Example.com")
	require.NotEmpty(t, cookies)

	t.Run("cookie session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := e.do(req)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			User domain.Identity `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Ada", body.User.Name)
		assert.Equal(t, "ada@example.com", body.User.Email)
	})

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/user", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, e.do(req).Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := e.do(httptest.NewRequest(http.MethodGet, "/auth/user", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("same address same id", func(t *testing.T) {
		first, _ := e.login(t, "Ada", "ada@example.com")
		second, _ := e.login(t, "Ada L", "ADA@example.com")
		a, err := e.h.Tokens.Verify(context.Background(), first)
		require.NoError(t, err)
		b, err := e.h.Tokens.Verify(context.Background(), second)
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
	})
}

func TestLoginValidation(t *testing.T) {
	e := newEnv(t)
	for _, body := range []string{`{`, `{"name":"","email":"a@b.c"}`, `{"name":"x","email":"nope"}`} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, e.do(req).Code, body)
	}
}

func TestRoomLookup(t *testing.T) {
	e := newEnv(t)
	token, _ := e.login(t, "Host", "host@example.com")
	host, err := e.h.Tokens.Verify(context.Background(), token)
	require.NoError(t, err)
	room, err := e.rooms.CreateRoom(context.Background(), host, "conn-1")
	require.NoError(t, err)

	get := func(path string, authed bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authed {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return e.do(req)
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/rooms/"+string(room.Code), false).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/rooms/abc", true).Code)
	assert.Equal(t, http.StatusNotFound, get("/api/rooms/ZZZZZZ", true).Code)

	w := get("/api/rooms/"+strings.ToLower(string(room.Code)), true)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Code             string `json:"code"`
		HostName         string `json:"hostName"`
		ParticipantCount int    `json:"participantCount"`
		IsActive         bool   `json:"isActive"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, string(room.Code), view.Code)
	assert.Equal(t, "Host", view.HostName)
	assert.Equal(t, 1, view.ParticipantCount)
	assert.True(t, view.IsActive)

	w = get("/api/rooms/"+string(room.Code)+"/messages", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages":[]`)
}

func TestOperationalEndpoints(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "pass", health.Checks["store"].Status)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/ice-servers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stun:")

	w = e.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hangout_http_requests_total")
}

func TestWithCORS(t *testing.T) {
	e := newEnv(t)
	h := WithCORS(e.r, []string{"https://meet.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://meet.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://meet.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	assert.Same(t, e.r, WithCORS(e.r, nil))
}
