package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.readLimit())
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

// handleSignal decodes one inbound frame and dispatches it. Any error goes
// back to this connection only.
func (ctl *SignalWSController) handleSignal(ctx context.Context, sid domain.ConnID, c *WsSignalConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.fail(sid, c, "", fmt.Errorf("%w: frame is not valid JSON", domain.ErrValidation))
		return
	}
	metrics.EventsReceived.WithLabelValues(env.Type).Inc()

	var err error
	switch env.Type {
	case core.EvCreateRoom:
		err = ctl.handleCreateRoom(ctx, sid)
	case core.EvJoinRoom:
		err = ctl.handleJoin(ctx, sid, env.Data)
	case core.EvLeaveRoom:
		err = ctl.handleLeave(ctx, sid, env.Data)
	case core.EvAdmitUser:
		err = ctl.handleAdmitUser(ctx, sid, env.Data)
	case core.EvAdmitAll:
		err = ctl.handleAdmitAll(ctx, sid, env.Data)
	case core.EvSendMessage:
		err = ctl.handleSendMessage(ctx, sid, env.Data)
	case core.EvSignal:
		err = ctl.handleRelay(sid, env.Data)
	case core.EvPing:
		ctl.handlePing(c)
	case core.EvWhoAmI:
		err = ctl.handleWhoAmI(sid, c)
	default:
		err = fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, env.Type)
	}
	if err != nil {
		ctl.fail(sid, c, env.Type, err)
	}
}

// decode unmarshals an event payload; a malformed one is a validation error.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: bad payload", domain.ErrValidation)
	}
	return nil
}

// fail reports err to the initiator as an error event. Vanished peers are
// an expected race and are not reported.
func (ctl *SignalWSController) fail(sid domain.ConnID, c *WsSignalConn, typ string, err error) {
	if errors.Is(err, domain.ErrTransportGone) {
		return
	}
	kind := domain.KindOf(err)
	metrics.EventErrors.WithLabelValues(string(kind)).Inc()
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", typ).Msg("event failed")
	} else {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", typ).Msg("event rejected")
	}
	ctl.sendEvent(c, core.ErrorEventFor(err))
}

func (ctl *SignalWSController) sendEvent(c *WsSignalConn, ev core.Event) {
	b, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEvent marshal")
		return
	}
	_ = c.TrySend(b)
}
