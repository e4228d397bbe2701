package app

import (
	"fmt"
	"sync"

	"github.com/dkeye/Hangout/internal/domain"
	"github.com/rs/zerolog/log"
)

type SessionState int

const (
	StateAuthenticated SessionState = iota
	StateWaiting
	StateInRoom
)

func (s SessionState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateInRoom:
		return "in_room"
	default:
		return "authenticated"
	}
}

// Session is a read-only view of one live connection.
type Session struct {
	Conn     domain.ConnID
	Identity domain.Identity
	Room     domain.RoomCode
	State    SessionState
}

type sessionEntry struct {
	identity domain.Identity
	room     domain.RoomCode
	state    SessionState
}

// SessionRegistry tracks every verified connection and the room it belongs
// to. A connection that is not here is gone.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.ConnID]*sessionEntry),
	}
}

func (r *SessionRegistry) Bind(conn domain.ConnID, id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn] = &sessionEntry{identity: id, state: StateAuthenticated}
	log.Info().Str("module", "app.sessions").Str("sid", string(conn)).Str("user", string(id.ID)).Msg("bound session")
}

// Unbind forgets conn and returns what it was doing.
func (r *SessionRegistry) Unbind(conn domain.ConnID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, conn)
	log.Info().Str("module", "app.sessions").Str("sid", string(conn)).Msg("unbind session")
	return e.view(conn), true
}

func (r *SessionRegistry) Get(conn domain.ConnID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	return e.view(conn), true
}

func (r *SessionRegistry) Alive(conn domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[conn]
	return ok
}

// Claim binds conn to code before the room is mutated, so a disconnect
// racing the mutation knows which room to clean.
func (r *SessionRegistry) Claim(conn domain.ConnID, code domain.RoomCode, state SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[conn]
	if !ok {
		return domain.ErrTransportGone
	}
	if e.room != "" {
		return fmt.Errorf("%w: already in room %s", domain.ErrValidation, e.room)
	}
	e.room = code
	e.state = state
	return nil
}

// SetState moves conn to state if it still belongs to code.
func (r *SessionRegistry) SetState(conn domain.ConnID, code domain.RoomCode, state SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[conn]
	if !ok || e.room != code {
		return false
	}
	e.state = state
	log.Debug().Str("module", "app.sessions").Str("sid", string(conn)).Str("room", string(code)).Stringer("state", state).Msg("updated state")
	return true
}

// Release detaches conn from code; the connection stays authenticated.
func (r *SessionRegistry) Release(conn domain.ConnID, code domain.RoomCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[conn]
	if !ok || e.room != code {
		return
	}
	e.room = ""
	e.state = StateAuthenticated
	log.Debug().Str("module", "app.sessions").Str("sid", string(conn)).Str("room", string(code)).Msg("removed room association")
}

// RoomOf returns the room conn is admitted to.
func (r *SessionRegistry) RoomOf(conn domain.ConnID) (domain.RoomCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[conn]
	if !ok || e.room == "" || e.state != StateInRoom {
		return "", false
	}
	return e.room, true
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (e *sessionEntry) view(conn domain.ConnID) Session {
	return Session{Conn: conn, Identity: e.identity, Room: e.room, State: e.state}
}
