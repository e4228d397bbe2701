package store

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// MemoryStore keeps rooms in process memory. It is the default for
// development and the store used by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]domain.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.RoomCode]domain.Room)}
}

func (s *MemoryStore) Create(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.Code]; ok {
		return domain.ErrCodeTaken
	}
	s.rooms[room.Code] = room.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, code domain.RoomCode) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, code domain.RoomCode, p core.RoomPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return domain.ErrNotFound
	}
	r = r.Clone()
	if p.Roster != nil {
		r.Roster = append([]domain.Participant(nil), p.Roster...)
	}
	if p.Waiting != nil {
		r.Waiting = append([]domain.WaitingEntry(nil), p.Waiting...)
	}
	r.Messages = append(r.Messages, p.AppendMessages...)
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	r.UpdatedAt = time.Now()
	s.rooms[code] = r
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
