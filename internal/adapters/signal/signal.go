package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Hangout/internal/app/orch"
	"github.com/dkeye/Hangout/internal/auth"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const (
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	defaultSendBuffer = 32
	writeWait         = 10 * time.Second
)

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Hub      *Hub
	Verifier core.IdentityVerifier

	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func (ctl *SignalWSController) readLimit() int64 {
	if ctl.ReadLimit > 0 {
		return ctl.ReadLimit
	}
	return defaultReadLimit
}

func (ctl *SignalWSController) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return defaultPingPeriod
}

// pongWait must exceed pingPeriod so a healthy peer always answers in time.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.pingPeriod() * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal verifies the caller and upgrades to a signaling socket.
// Unverified requests get 401 and never reach the coordinator.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	identity, err := ctl.Verifier.Verify(c.Request.Context(), auth.CredentialFrom(c))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("ws auth rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sendBuffer := ctl.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	sid := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(identity.ID)).Msg("new WS connection")

	ctl.Hub.Register(sid, conn)
	ctl.Orch.Connect(sid, identity)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sid, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
		ctl.Hub.Unregister(sid)
		// The server context may already be done; cleanup still has to run.
		cleanupCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer done()
		ctl.Orch.Disconnect(cleanupCtx, sid)
	}()
}
