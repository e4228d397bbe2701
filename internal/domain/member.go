package domain

import "time"

// ConnID identifies one live transport connection. It is not stable
// across reconnects.
type ConnID string

// Participant represents an admitted connection in a room.
// No transport or lifecycle logic here.
type Participant struct {
	ConnID   ConnID    `json:"id"`
	Identity Identity  `json:"user"`
	JoinedAt time.Time `json:"joinedAt"`
}

// WaitingEntry is a connection asking the host to be let in.
type WaitingEntry struct {
	ConnID      ConnID    `json:"id"`
	Identity    Identity  `json:"user"`
	RequestedAt time.Time `json:"requestedAt"`
}
