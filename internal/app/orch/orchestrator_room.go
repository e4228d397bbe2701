package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateRoom opens a new room hosted by conn's identity with conn as its
// only member.
func (o *Orchestrator) CreateRoom(ctx context.Context, conn domain.ConnID) (domain.RoomCode, error) {
	sess, err := o.session(conn)
	if err != nil {
		return "", err
	}
	if sess.Room != "" {
		return "", fmt.Errorf("%w: already in room %s", domain.ErrValidation, sess.Room)
	}

	room, err := o.Rooms.CreateRoom(ctx, sess.Identity, conn)
	if err != nil {
		return "", err
	}
	code := room.Code

	if err := o.Sessions.Claim(conn, code, app.StateInRoom); err != nil {
		// conn went away (or raced into another room) before it could own
		// the room; take it back out so the room does not keep a ghost.
		if cerr := o.removeFromRoom(ctx, conn, code); cerr != nil {
			log.Error().Err(cerr).Str("module", "orch").Str("room", string(code)).Msg("undo create")
		}
		return "", err
	}

	err = o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		if !r.InRoster(conn) {
			return domain.ErrTransportGone
		}
		return nil
	}, func(r domain.Room) {
		o.Transport.Subscribe(conn, group(code))
		o.unicast(conn, core.Event{Type: core.EvRoomCreated, Data: core.RoomCreated{
			RoomCode: code,
			Room:     core.NewRoomView(r),
			HostUser: core.NewUserView(conn, sess.Identity),
		}})
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).Msg("created room")
	return code, nil
}

// JoinRoom lets the host straight back in and queues everyone else for
// admission. Host status and activity are checked under the room lock.
func (o *Orchestrator) JoinRoom(ctx context.Context, conn domain.ConnID, rawCode string) error {
	code, err := parseCode(rawCode)
	if err != nil {
		return err
	}
	sess, err := o.session(conn)
	if err != nil {
		return err
	}
	if err := o.Sessions.Claim(conn, code, app.StateWaiting); err != nil {
		return err
	}

	var direct bool
	err = o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		if !o.Sessions.Alive(conn) {
			return domain.ErrTransportGone
		}
		now := o.now()
		if r.IsHost(sess.Identity) || !r.AdmissionRequired {
			if !r.IsActive && !r.IsHost(sess.Identity) {
				return fmt.Errorf("%w: room %s has ended", domain.ErrNotFound, code)
			}
			if o.full(r) {
				return fmt.Errorf("%w: room %s is full", domain.ErrValidation, code)
			}
			r.AddParticipant(domain.Participant{ConnID: conn, Identity: sess.Identity, JoinedAt: now})
			r.IsActive = true
			direct = true
			return nil
		}
		if !r.IsActive {
			return fmt.Errorf("%w: room %s has ended", domain.ErrNotFound, code)
		}
		if o.full(r) {
			return fmt.Errorf("%w: room %s is full", domain.ErrValidation, code)
		}
		r.Enqueue(domain.WaitingEntry{ConnID: conn, Identity: sess.Identity, RequestedAt: now})
		return nil
	}, func(r domain.Room) {
		if direct {
			o.Sessions.SetState(conn, code, app.StateInRoom)
			o.enterRoom(r, conn, sess.Identity)
			return
		}
		o.unicast(conn, core.Event{Type: core.EvWaitingForAdmission, Data: core.WaitingForAdmission{
			RoomCode: code,
			Message:  "Waiting for the host to let you in",
		}})
		o.Transport.Publish(group(code), core.Event{Type: core.EvAdmissionRequest, Data: core.AdmissionRequest{
			RoomCode:     code,
			User:         core.NewUserView(conn, sess.Identity),
			WaitingCount: len(r.Waiting),
		}})
	})
	if err != nil {
		o.Sessions.Release(conn, code)
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).Bool("direct", direct).Msg("join")
	return nil
}

// LeaveRoom removes conn from its room but keeps the connection open.
func (o *Orchestrator) LeaveRoom(ctx context.Context, conn domain.ConnID, rawCode string) error {
	code, err := parseCode(rawCode)
	if err != nil {
		return err
	}
	sess, err := o.session(conn)
	if err != nil {
		return err
	}
	if sess.Room != code {
		return fmt.Errorf("%w: not in room %s", domain.ErrValidation, code)
	}
	if err := o.removeFromRoom(ctx, conn, code); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	o.Sessions.Release(conn, code)
	o.unicast(conn, core.Event{Type: core.EvLeftRoom, Data: core.LeftRoom{RoomCode: code}})
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).Msg("leave")
	return nil
}
