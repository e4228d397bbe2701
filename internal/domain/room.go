package domain

import (
	"fmt"
	"strings"
	"time"
)

const RoomCodeLen = 6

// RoomCodeAlphabet is the character set of generated codes.
const RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type RoomCode string

// ParseRoomCode normalizes raw to upper case and checks its shape.
func ParseRoomCode(raw string) (RoomCode, error) {
	if len(raw) != RoomCodeLen {
		return "", fmt.Errorf("%w: room code must be exactly %d characters", ErrValidation, RoomCodeLen)
	}
	code := strings.ToUpper(raw)
	for _, r := range code {
		if !strings.ContainsRune(RoomCodeAlphabet, r) {
			return "", fmt.Errorf("%w: room code contains invalid characters", ErrValidation)
		}
	}
	return RoomCode(code), nil
}

// Room is the full state of one call. Values handed out by the registry are
// copies; only the registry mutates the authoritative one.
type Room struct {
	Code              RoomCode       `json:"code"`
	Host              Identity       `json:"host"`
	Roster            []Participant  `json:"participants"`
	Waiting           []WaitingEntry `json:"waitingList"`
	Messages          []ChatMessage  `json:"messages"`
	AdmissionRequired bool           `json:"admissionRequired"`
	IsActive          bool           `json:"isActive"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// NewRoom builds the initial state of a freshly created room.
func NewRoom(code RoomCode, host Identity, now time.Time) Room {
	return Room{
		Code:              code,
		Host:              host,
		Roster:            []Participant{},
		Waiting:           []WaitingEntry{},
		Messages:          []ChatMessage{},
		AdmissionRequired: true,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Clone returns a deep copy so callers never share slices with the registry.
func (r Room) Clone() Room {
	out := r
	out.Roster = append([]Participant(nil), r.Roster...)
	out.Waiting = append([]WaitingEntry(nil), r.Waiting...)
	out.Messages = append([]ChatMessage(nil), r.Messages...)
	return out
}

func (r *Room) IsHost(id Identity) bool { return r.Host.SameUser(id) }

func (r *Room) InRoster(conn ConnID) bool {
	_, ok := r.rosterIndex(conn)
	return ok
}

func (r *Room) IsWaiting(conn ConnID) bool {
	_, ok := r.waitingIndex(conn)
	return ok
}

// AddParticipant puts conn in the roster, taking it off the waiting list.
func (r *Room) AddParticipant(p Participant) {
	r.RemoveWaiting(p.ConnID)
	if r.InRoster(p.ConnID) {
		return
	}
	r.Roster = append(r.Roster, p)
}

// RemoveParticipant reports whether conn was in the roster.
func (r *Room) RemoveParticipant(conn ConnID) bool {
	i, ok := r.rosterIndex(conn)
	if !ok {
		return false
	}
	r.Roster = append(r.Roster[:i], r.Roster[i+1:]...)
	return true
}

// Enqueue appends conn to the waiting list unless it is already known.
func (r *Room) Enqueue(e WaitingEntry) bool {
	if r.InRoster(e.ConnID) || r.IsWaiting(e.ConnID) {
		return false
	}
	r.Waiting = append(r.Waiting, e)
	return true
}

// RemoveWaiting takes conn off the waiting list and returns its entry.
func (r *Room) RemoveWaiting(conn ConnID) (WaitingEntry, bool) {
	i, ok := r.waitingIndex(conn)
	if !ok {
		return WaitingEntry{}, false
	}
	e := r.Waiting[i]
	r.Waiting = append(r.Waiting[:i], r.Waiting[i+1:]...)
	return e, true
}

// DrainWaiting empties the waiting list, returning the entries in order.
func (r *Room) DrainWaiting() []WaitingEntry {
	out := r.Waiting
	r.Waiting = []WaitingEntry{}
	return out
}

// RefreshActivity flips IsActive off once nobody is left.
func (r *Room) RefreshActivity() {
	if len(r.Roster) == 0 && len(r.Waiting) == 0 {
		r.IsActive = false
	}
}

func (r *Room) rosterIndex(conn ConnID) (int, bool) {
	for i, p := range r.Roster {
		if p.ConnID == conn {
			return i, true
		}
	}
	return -1, false
}

func (r *Room) waitingIndex(conn ConnID) (int, bool) {
	for i, e := range r.Waiting {
		if e.ConnID == conn {
			return i, true
		}
	}
	return -1, false
}
