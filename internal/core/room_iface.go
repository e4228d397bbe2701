package core

import (
	"context"

	"github.com/dkeye/Hangout/internal/domain"
)

// RoomPatch is the set of fields a mutation changed. Nil slices mean
// "unchanged"; AppendMessages is appended to the stored log.
type RoomPatch struct {
	Roster         []domain.Participant
	Waiting        []domain.WaitingEntry
	AppendMessages []domain.ChatMessage
	IsActive       *bool
}

// Empty reports whether the patch would change nothing.
func (p RoomPatch) Empty() bool {
	return p.Roster == nil && p.Waiting == nil && len(p.AppendMessages) == 0 && p.IsActive == nil
}

// RoomStore is the durable side of the room registry.
// Create must fail with domain.ErrCodeTaken instead of overwriting;
// Get and Update fail with domain.ErrNotFound for unknown codes.
type RoomStore interface {
	Create(ctx context.Context, room domain.Room) error
	Get(ctx context.Context, code domain.RoomCode) (domain.Room, error)
	Update(ctx context.Context, code domain.RoomCode, patch RoomPatch) error
	Ping(ctx context.Context) error
	Close() error
}
