package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs the per-connection protocol against the room registry.
// Every room change goes through Rooms.Mutate and every broadcast is sent
// from its publish step, so clients see events in mutation order.
type Orchestrator struct {
	Rooms     *app.RoomRegistry
	Sessions  *app.SessionRegistry
	Transport core.Transport
	Limiter   *app.RateLimiter

	// MaxRoomSize bounds roster plus waiting list. Zero means no limit.
	MaxRoomSize   int
	MaxMessageLen int
	Now           func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func group(code domain.RoomCode) core.GroupKey { return core.GroupKey(code) }

// Connect registers a verified connection.
func (o *Orchestrator) Connect(conn domain.ConnID, id domain.Identity) {
	o.Sessions.Bind(conn, id)
	metrics.Connections.Inc()
}

// Disconnect forgets conn and removes it from the room it was part of.
// The session is dropped first so concurrent admissions see it as gone.
func (o *Orchestrator) Disconnect(ctx context.Context, conn domain.ConnID) {
	sess, ok := o.Sessions.Unbind(conn)
	if !ok {
		return
	}
	metrics.Connections.Dec()
	if sess.Room == "" {
		return
	}
	if err := o.removeFromRoom(ctx, conn, sess.Room); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(conn)).Str("room", string(sess.Room)).Msg("cleanup on disconnect")
		return
	}
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(sess.Room)).Msg("disconnected from room")
}

// WhoAmI describes conn as the server sees it.
func (o *Orchestrator) WhoAmI(conn domain.ConnID) (core.WhoAmI, error) {
	sess, ok := o.Sessions.Get(conn)
	if !ok {
		return core.WhoAmI{}, domain.ErrTransportGone
	}
	return core.WhoAmI{
		ConnectionID: conn,
		User:         core.NewUserView(conn, sess.Identity),
		RoomCode:     sess.Room,
		State:        sess.State.String(),
	}, nil
}

func (o *Orchestrator) session(conn domain.ConnID) (app.Session, error) {
	sess, ok := o.Sessions.Get(conn)
	if !ok {
		return app.Session{}, domain.ErrTransportGone
	}
	return sess, nil
}

func (o *Orchestrator) full(r *domain.Room) bool {
	return o.MaxRoomSize > 0 && len(r.Roster)+len(r.Waiting) >= o.MaxRoomSize
}

// enterRoom announces a connection that was just added to the roster.
// user-joined goes to everyone except skip, which defaults to conn.
// Caller holds the room lock through Mutate's publish step.
func (o *Orchestrator) enterRoom(r domain.Room, conn domain.ConnID, id domain.Identity, skip ...domain.ConnID) {
	g := group(r.Code)
	o.Transport.Subscribe(conn, g)
	self := core.NewUserView(conn, id)
	o.unicast(conn, core.Event{Type: core.EvRoomJoined, Data: core.RoomJoined{
		Room:         core.NewRoomView(r),
		User:         self,
		Participants: core.ParticipantViews(r.Roster, conn),
	}})
	if len(skip) == 0 {
		skip = []domain.ConnID{conn}
	}
	o.Transport.Publish(g, core.Event{Type: core.EvUserJoined, Data: self}, skip...)
}

// removeFromRoom takes conn off the roster or waiting list of code and
// tells whoever is left.
func (o *Orchestrator) removeFromRoom(ctx context.Context, conn domain.ConnID, code domain.RoomCode) error {
	var wasMember, wasWaiting bool
	return o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		wasMember = r.RemoveParticipant(conn)
		if !wasMember {
			_, wasWaiting = r.RemoveWaiting(conn)
		}
		r.RefreshActivity()
		return nil
	}, func(r domain.Room) {
		g := group(code)
		if wasMember {
			o.Transport.Unsubscribe(conn, g)
			o.Transport.Publish(g, core.Event{Type: core.EvUserLeft, Data: core.UserLeft{ConnectionID: conn}})
		}
		if wasWaiting {
			o.publishWaitingList(r)
		}
		if (wasMember || wasWaiting) && !r.IsActive {
			log.Info().Str("module", "orch").Str("room", string(code)).Msg("room is now inactive")
		}
	})
}

func (o *Orchestrator) publishWaitingList(r domain.Room) {
	o.Transport.Publish(group(r.Code), core.Event{Type: core.EvWaitingListUpdated, Data: core.WaitingListUpdated{
		Count:       len(r.Waiting),
		WaitingList: core.WaitingViews(r.Waiting),
	}})
}

// unicast sends ev to conn; a vanished target is not an error.
func (o *Orchestrator) unicast(conn domain.ConnID, ev core.Event) {
	if err := o.Transport.Unicast(conn, ev); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(conn)).Str("type", ev.Type).Msg("unicast skipped")
	}
}

func parseCode(raw string) (domain.RoomCode, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: roomCode is required", domain.ErrValidation)
	}
	return domain.ParseRoomCode(raw)
}
