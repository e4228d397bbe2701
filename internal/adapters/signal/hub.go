package signal

import (
	"errors"
	"sync"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Hub is the WebSocket implementation of core.Transport. It knows every
// open connection and which groups it is subscribed to.
type Hub struct {
	Policy app.Policy

	mu     sync.RWMutex
	conns  map[domain.ConnID]core.SignalConnection
	groups map[core.GroupKey]map[domain.ConnID]struct{}
}

func NewHub(policy app.Policy) *Hub {
	return &Hub{
		Policy: policy,
		conns:  make(map[domain.ConnID]core.SignalConnection),
		groups: make(map[core.GroupKey]map[domain.ConnID]struct{}),
	}
}

func (h *Hub) Register(sid domain.ConnID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sid] = conn
}

// Unregister drops sid from every group and closes its connection.
func (h *Hub) Unregister(sid domain.ConnID) {
	h.mu.Lock()
	conn, ok := h.conns[sid]
	delete(h.conns, sid)
	for g, members := range h.groups {
		delete(members, sid)
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// Subscribe is ignored for connections that are already gone.
func (h *Hub) Subscribe(sid domain.ConnID, g core.GroupKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[sid]; !ok {
		return
	}
	members, ok := h.groups[g]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		h.groups[g] = members
	}
	members[sid] = struct{}{}
}

func (h *Hub) Unsubscribe(sid domain.ConnID, g core.GroupKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[g]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(h.groups, g)
	}
}

func (h *Hub) Publish(g core.GroupKey, ev core.Event, except ...domain.ConnID) int {
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("type", ev.Type).Msg("encode")
		return 0
	}

	h.mu.RLock()
	targets := make(map[domain.ConnID]core.SignalConnection, len(h.groups[g]))
	for sid := range h.groups[g] {
		if conn, ok := h.conns[sid]; ok {
			targets[sid] = conn
		}
	}
	h.mu.RUnlock()
	for _, sid := range except {
		delete(targets, sid)
	}

	n := 0
	for sid, conn := range targets {
		if h.deliver(sid, conn, frame) == nil {
			n++
		}
	}
	return n
}

func (h *Hub) Unicast(sid domain.ConnID, ev core.Event) error {
	h.mu.RLock()
	conn, ok := h.conns[sid]
	h.mu.RUnlock()
	if !ok {
		metrics.SendDropped.WithLabelValues("gone").Inc()
		return domain.ErrTransportGone
	}
	frame, err := core.Encode(ev)
	if err != nil {
		return err
	}
	return h.deliver(sid, conn, frame)
}

// Members lists the connections subscribed to g.
func (h *Hub) Members(g core.GroupKey) []domain.ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.ConnID, 0, len(h.groups[g]))
	for sid := range h.groups[g] {
		out = append(out, sid)
	}
	return out
}

// deliver hands frame to conn, applying the backpressure policy when its
// buffer is full.
func (h *Hub) deliver(sid domain.ConnID, conn core.SignalConnection, frame core.Frame) error {
	err := conn.TrySend(frame)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrBackpressure) {
		metrics.SendDropped.WithLabelValues("gone").Inc()
		return domain.ErrTransportGone
	}

	metrics.SendDropped.WithLabelValues("backpressure").Inc()
	action := app.DropFrame
	if h.Policy != nil {
		action = h.Policy.OnBackPressure(sid)
	}
	switch action {
	case app.KickMember:
		log.Warn().Str("module", "signal.hub").Str("sid", string(sid)).Msg("slow consumer, closing")
		// Closing makes the read pump exit, which runs the normal disconnect.
		conn.Close()
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "signal.hub").Str("sid", string(sid)).Msg("frame dropped")
	}
	return domain.ErrTransportGone
}
