package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

// SendMessage appends text to the room log and broadcasts it to the whole
// roster, sender included.
func (o *Orchestrator) SendMessage(ctx context.Context, conn domain.ConnID, rawCode, text string) error {
	code, err := parseCode(rawCode)
	if err != nil {
		return err
	}
	sess, err := o.session(conn)
	if err != nil {
		return err
	}
	msg, err := domain.NewChatMessage(conn, sess.Identity, text, o.MaxMessageLen, o.now())
	if err != nil {
		return err
	}
	if !o.Limiter.Allow(sess.Identity.ID) {
		return fmt.Errorf("%w: too many messages, slow down", domain.ErrRateLimited)
	}

	err = o.Rooms.Mutate(ctx, code, func(r *domain.Room) error {
		if !r.InRoster(conn) {
			return fmt.Errorf("%w: not a member of room %s", domain.ErrForbidden, code)
		}
		r.Messages = append(r.Messages, msg)
		return nil
	}, func(r domain.Room) {
		o.Transport.Publish(group(code), core.Event{Type: core.EvNewMessage, Data: core.NewMessage{
			ID:            msg.ID,
			From:          conn,
			Sender:        msg.Sender.Name,
			SenderPicture: msg.Sender.Picture,
			Text:          msg.Text,
			SentAt:        msg.SentAt,
		}})
	})
	if err != nil {
		return err
	}
	metrics.MessagesPosted.Inc()
	log.Debug().Str("module", "orch").Str("sid", string(conn)).Str("room", string(code)).Int("len", len(msg.Text)).Msg("message")
	return nil
}
