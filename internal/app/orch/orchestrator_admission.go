package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

const rejectedMessage = "The host did not let you in"

// authorizeHost fails unless conn is an admitted member holding the host
// identity of r. Caller holds the room lock.
func (o *Orchestrator) authorizeHost(r *domain.Room, conn domain.ConnID, id domain.Identity) error {
	if !r.InRoster(conn) || !r.IsHost(id) {
		return fmt.Errorf("%w: only the host can admit participants", domain.ErrForbidden)
	}
	return nil
}

// AdmitUser decides on one waiting connection. A target that is no longer
// waiting is reported to the host as not found; one that has disconnected
// meanwhile is rejected instead of admitted.
func (o *Orchestrator) AdmitUser(ctx context.Context, conn domain.ConnID, rawCode string, target domain.ConnID, admit bool) error {
	code, err := parseCode(rawCode)
	if err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: connectionId is required", domain.ErrValidation)
	}
	sess, err := o.session(conn)
	if err != nil {
		return err
	}

	var (
		entry    domain.WaitingEntry
		admitted bool
	)
	err = o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		if err := o.authorizeHost(r, conn, sess.Identity); err != nil {
			return err
		}
		var ok bool
		entry, ok = r.RemoveWaiting(target)
		if !ok {
			return fmt.Errorf("%w: %s is not waiting to join", domain.ErrNotFound, target)
		}
		if admit && o.Sessions.Alive(target) && !o.full(r) {
			r.AddParticipant(domain.Participant{ConnID: target, Identity: entry.Identity, JoinedAt: o.now()})
			admitted = true
		}
		return nil
	}, func(r domain.Room) {
		o.settle(r, entry, admitted)
		o.publishWaitingList(r)
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).
		Str("target", string(target)).Bool("admitted", admitted).Msg("admission decided")
	return nil
}

// AdmitAll drains the waiting list in one mutation and admits every entry
// whose connection is still live, as long as the room has space.
func (o *Orchestrator) AdmitAll(ctx context.Context, conn domain.ConnID, rawCode string) error {
	code, err := parseCode(rawCode)
	if err != nil {
		return err
	}
	sess, err := o.session(conn)
	if err != nil {
		return err
	}

	var (
		drained  []domain.WaitingEntry
		admitted = map[domain.ConnID]bool{}
	)
	err = o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		if err := o.authorizeHost(r, conn, sess.Identity); err != nil {
			return err
		}
		drained = r.DrainWaiting()
		now := o.now()
		for _, e := range drained {
			if !o.Sessions.Alive(e.ConnID) || o.full(r) {
				continue
			}
			r.AddParticipant(domain.Participant{ConnID: e.ConnID, Identity: e.Identity, JoinedAt: now})
			admitted[e.ConnID] = true
		}
		return nil
	}, func(r domain.Room) {
		// Newcomers already see each other in room-joined, so user-joined
		// only goes to the members from before this batch.
		skip := make([]domain.ConnID, 0, len(admitted))
		for c := range admitted {
			skip = append(skip, c)
		}
		for _, e := range drained {
			o.settle(r, e, admitted[e.ConnID], skip...)
		}
		o.publishWaitingList(r)
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).
		Int("drained", len(drained)).Int("admitted", len(admitted)).Msg("admitted all")
	return nil
}

// settle tells a former waiting entry how its request ended.
func (o *Orchestrator) settle(r domain.Room, e domain.WaitingEntry, admitted bool, skip ...domain.ConnID) {
	if admitted {
		metrics.Admissions.WithLabelValues("admitted").Inc()
		o.Sessions.SetState(e.ConnID, r.Code, app.StateInRoom)
		o.enterRoom(r, e.ConnID, e.Identity, skip...)
		return
	}
	metrics.Admissions.WithLabelValues("rejected").Inc()
	o.Sessions.Release(e.ConnID, r.Code)
	o.unicast(e.ConnID, core.Event{Type: core.EvAdmissionRejected, Data: core.AdmissionRejected{
		RoomCode: r.Code,
		Message:  rejectedMessage,
	}})
}
