package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
	"github.com/dkeye/Hangout/internal/metrics"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 8

// ApplyFunc changes a working copy of a room. Returning an error discards it.
type ApplyFunc func(room *domain.Room) error

// PublishFunc runs with the committed state while the room is still locked.
type PublishFunc func(room domain.Room)

type roomSlot struct {
	mu   sync.Mutex
	room *domain.Room // nil until loaded
}

// RoomRegistry owns every Room record. Each room has its own lock, so
// unrelated rooms never wait on each other; the map lock only guards slot
// lookup.
type RoomRegistry struct {
	store   core.RoomStore
	newCode func() (domain.RoomCode, error)
	now     func() time.Time

	mu    sync.Mutex
	slots map[domain.RoomCode]*roomSlot
}

type RegistryOption func(*RoomRegistry)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (domain.RoomCode, error)) RegistryOption {
	return func(r *RoomRegistry) { r.newCode = gen }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func NewRoomRegistry(store core.RoomStore, opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		store:   store,
		newCode: NewRoomCode,
		now:     time.Now,
		slots:   make(map[domain.RoomCode]*roomSlot),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RoomRegistry) slot(code domain.RoomCode) *roomSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[code]
	if !ok {
		s = &roomSlot{}
		r.slots[code] = s
	}
	return s
}

// CreateRoom allocates a fresh code and stores a room whose roster holds
// only the host connection.
func (r *RoomRegistry) CreateRoom(ctx context.Context, host domain.Identity, hostConn domain.ConnID) (domain.Room, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return domain.Room{}, fmt.Errorf("generate room code: %w", err)
		}
		now := r.now()
		room := domain.NewRoom(code, host, now)
		room.AddParticipant(domain.Participant{ConnID: hostConn, Identity: host, JoinedAt: now})

		created, err := r.tryCreate(ctx, room)
		if err != nil {
			return domain.Room{}, err
		}
		if created {
			log.Info().Str("module", "app.rooms").Str("room", string(code)).Str("host", string(host.ID)).Msg("room created")
			return room.Clone(), nil
		}
		log.Warn().Str("module", "app.rooms").Str("room", string(code)).Int("attempt", attempt+1).Msg("room code collision, retrying")
	}
	return domain.Room{}, fmt.Errorf("%w: could not allocate a unique room code", domain.ErrStorage)
}

func (r *RoomRegistry) tryCreate(ctx context.Context, room domain.Room) (bool, error) {
	s := r.slot(room.Code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil {
		return false, nil
	}
	start := time.Now()
	err := r.store.Create(ctx, room)
	metrics.ObserveStore("create", start, err)
	if errors.Is(err, domain.ErrCodeTaken) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: create room: %v", domain.ErrStorage, err)
	}
	cp := room.Clone()
	s.room = &cp
	metrics.RoomsCreated.Inc()
	return true, nil
}

// GetRoom returns a copy of the current state of code.
func (r *RoomRegistry) GetRoom(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	s := r.slot(code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := r.load(ctx, s, code); err != nil {
		return domain.Room{}, err
	}
	return s.room.Clone(), nil
}

// Mutate serializes a read-modify-write on one room. apply works on a copy;
// the change is persisted before it becomes visible, and publish observes
// exactly the committed state. A failed apply or store write leaves the
// room untouched and skips publish.
func (r *RoomRegistry) Mutate(ctx context.Context, code domain.RoomCode, apply ApplyFunc, publish PublishFunc) error {
	s := r.slot(code)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.load(ctx, s, code); err != nil {
		return err
	}
	work := s.room.Clone()
	if err := apply(&work); err != nil {
		return err
	}

	patch := diff(*s.room, work)
	if !patch.Empty() {
		work.UpdatedAt = r.now()
		start := time.Now()
		err := r.store.Update(ctx, code, patch)
		metrics.ObserveStore("update", start, err)
		if err != nil {
			log.Error().Err(err).Str("module", "app.rooms").Str("room", string(code)).Msg("persist mutation")
			return fmt.Errorf("%w: update room: %v", domain.ErrStorage, err)
		}
	}

	s.room = &work
	if publish != nil {
		publish(work.Clone())
	}
	if !work.IsActive {
		// Inactive rooms are reloaded from the store on next access.
		s.room = nil
	}
	return nil
}

// ActiveRooms counts cached rooms that still have people in them.
func (r *RoomRegistry) ActiveRooms() int {
	r.mu.Lock()
	slots := make([]*roomSlot, 0, len(r.slots))
	for _, s := range r.slots {
		slots = append(slots, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range slots {
		s.mu.Lock()
		if s.room != nil && s.room.IsActive {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// load fills s from the store. Caller holds s.mu.
func (r *RoomRegistry) load(ctx context.Context, s *roomSlot, code domain.RoomCode) error {
	if s.room != nil {
		return nil
	}
	start := time.Now()
	room, err := r.store.Get(ctx, code)
	metrics.ObserveStore("get", start, err)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: room %s does not exist", domain.ErrNotFound, code)
	}
	if err != nil {
		return fmt.Errorf("%w: load room: %v", domain.ErrStorage, err)
	}
	// Connection ids persisted by an earlier process are meaningless now.
	room.Roster = []domain.Participant{}
	room.Waiting = []domain.WaitingEntry{}
	if room.Messages == nil {
		room.Messages = []domain.ChatMessage{}
	}
	s.room = &room
	return nil
}

func diff(before, after domain.Room) core.RoomPatch {
	var p core.RoomPatch
	if !sameRoster(before.Roster, after.Roster) {
		p.Roster = nonNil(after.Roster)
	}
	if !sameWaiting(before.Waiting, after.Waiting) {
		p.Waiting = nonNilWaiting(after.Waiting)
	}
	if len(after.Messages) > len(before.Messages) {
		p.AppendMessages = after.Messages[len(before.Messages):]
	}
	if before.IsActive != after.IsActive {
		active := after.IsActive
		p.IsActive = &active
	}
	return p
}

func sameRoster(a, b []domain.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ConnID != b[i].ConnID {
			return false
		}
	}
	return true
}

func sameWaiting(a, b []domain.WaitingEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ConnID != b[i].ConnID {
			return false
		}
	}
	return true
}

func nonNil(p []domain.Participant) []domain.Participant {
	if p == nil {
		return []domain.Participant{}
	}
	return p
}

func nonNilWaiting(w []domain.WaitingEntry) []domain.WaitingEntry {
	if w == nil {
		return []domain.WaitingEntry{}
	}
	return w
}
