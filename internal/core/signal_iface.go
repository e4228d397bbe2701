package core

import "github.com/dkeye/Hangout/internal/domain"

// Frame is a raw encoded event.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// GroupKey names a broadcast group; rooms use their code.
type GroupKey string

// Transport is the minimal fan-out capability the coordinator needs.
// Unicast returns domain.ErrTransportGone when conn is no longer connected;
// Publish skips targets that vanish and reports how many were reached.
type Transport interface {
	Subscribe(conn domain.ConnID, group GroupKey)
	Unsubscribe(conn domain.ConnID, group GroupKey)
	Publish(group GroupKey, ev Event, except ...domain.ConnID) int
	Unicast(conn domain.ConnID, ev Event) error
}
