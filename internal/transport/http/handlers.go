package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/auth"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// Handlers serves the REST side of the app: login, room lookups, ICE
// configuration and health.
type Handlers struct {
	Rooms    *app.RoomRegistry
	Sessions *app.SessionRegistry
	Tokens   *auth.JWTManager
	Store    core.RoomStore
	WebRTC   webrtc.Configuration
}

type LoginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

// Login finds or creates the identity for an e-mail address and stores a
// token in the cookie session. The same address always maps to the same id.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	id, err := domain.NewIdentity(req.Name, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.Tokens.Issue(id)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(auth.SessionKey, token)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}
	log.Info().Str("module", "transport.http").Str("user", string(id.ID)).Msg("login")
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: id})
}

// CurrentUser returns the identity behind the request's token.
func (h *Handlers) CurrentUser(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}

func (h *Handlers) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("clear session")
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handlers) room(c *gin.Context) (domain.Room, bool) {
	code, err := domain.ParseRoomCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.Room{}, false
	}
	r, err := h.Rooms.GetRoom(c.Request.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return domain.Room{}, false
	}
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Str("room", string(code)).Msg("get room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": domain.PublicMessage(err)})
		return domain.Room{}, false
	}
	return r, true
}

// GetRoom returns the public summary of a room without its chat log.
func (h *Handlers) GetRoom(c *gin.Context) {
	r, ok := h.room(c)
	if !ok {
		return
	}
	view := core.NewRoomView(r)
	view.Messages = []domain.ChatMessage{}
	c.JSON(http.StatusOK, view)
}

// GetMessages returns a room's chat log in acceptance order.
func (h *Handlers) GetMessages(c *gin.Context) {
	r, ok := h.room(c)
	if !ok {
		return
	}
	msgs := r.Messages
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"roomCode": r.Code, "messages": msgs})
}

func (h *Handlers) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.WebRTC.ICEServers})
}

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status      string           `json:"status"` // "healthy" or "degraded"
	Checks      map[string]Check `json:"checks"`
	Rooms       int              `json:"activeRooms"`
	Connections int              `json:"connections"`
	Timestamp   string           `json:"timestamp"`
}

func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	status, code := "healthy", http.StatusOK

	start := time.Now()
	if err := h.Store.Ping(ctx); err != nil {
		checks["store"] = Check{Status: "fail", Message: "connection failed"}
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		checks["store"] = Check{Status: "pass", Latency: time.Since(start).String()}
	}

	c.JSON(code, HealthResponse{
		Status:      status,
		Checks:      checks,
		Rooms:       h.Rooms.ActiveRooms(),
		Connections: h.Sessions.Count(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
