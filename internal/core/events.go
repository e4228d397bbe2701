package core

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/dkeye/Hangout/internal/domain"
)

// Inbound event types (client → coordinator).
const (
	EvCreateRoom  = "create-room"
	EvJoinRoom    = "join-room"
	EvAdmitUser   = "admit-user"
	EvAdmitAll    = "admit-all"
	EvSendMessage = "send-message"
	EvSignal      = "signal"
	EvLeaveRoom   = "leave-room"
	EvPing        = "ping"
	EvWhoAmI      = "whoami"
)

// Outbound event types (coordinator → clients).
const (
	EvRoomCreated         = "room-created"
	EvRoomJoined          = "room-joined"
	EvWaitingForAdmission = "waiting-for-admission"
	EvAdmissionRequest    = "admission-request"
	EvAdmissionRejected   = "admission-rejected"
	EvWaitingListUpdated  = "waiting-list-updated"
	EvUserJoined          = "user-joined"
	EvUserLeft            = "user-left"
	EvNewMessage          = "new-message"
	EvLeftRoom            = "left-room"
	EvPong                = "pong"
	EvError               = "error"
)

// Event is one outbound frame before encoding.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Envelope is one inbound frame; Data is decoded per Type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode marshals ev into a transport frame. HTML escaping is off so raw
// signal payloads keep their bytes.
func Encode(ev Event) (Frame, error) {
	if ev.Data == nil {
		ev.Data = struct{}{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// --- inbound payloads ---

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type AdmitUserPayload struct {
	RoomCode     string        `json:"roomCode"`
	ConnectionID domain.ConnID `json:"connectionId"`
	Admit        bool          `json:"admit"`
}

type AdmitAllPayload struct {
	RoomCode string `json:"roomCode"`
}

type SendMessagePayload struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

type LeaveRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

// SignalPayload keeps description and candidate as raw bytes; the relay
// never looks inside them.
type SignalPayload struct {
	To          domain.ConnID   `json:"to"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

// --- outbound payloads ---

// UserView is a connection as other clients see it.
type UserView struct {
	ID      domain.ConnID `json:"id"`
	UserID  domain.UserID `json:"userId"`
	Name    string        `json:"name"`
	Picture string        `json:"picture,omitempty"`
}

func NewUserView(conn domain.ConnID, id domain.Identity) UserView {
	return UserView{ID: conn, UserID: id.ID, Name: id.Name, Picture: id.Picture}
}

// RoomView is the public projection of a room.
type RoomView struct {
	Code              domain.RoomCode      `json:"code"`
	HostName          string               `json:"hostName"`
	HostUserID        domain.UserID        `json:"hostUserId"`
	AdmissionRequired bool                 `json:"admissionRequired"`
	IsActive          bool                 `json:"isActive"`
	ParticipantCount  int                  `json:"participantCount"`
	WaitingCount      int                  `json:"waitingCount"`
	Messages          []domain.ChatMessage `json:"messages"`
	CreatedAt         time.Time            `json:"createdAt"`
}

func NewRoomView(r domain.Room) RoomView {
	msgs := r.Messages
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return RoomView{
		Code:              r.Code,
		HostName:          r.Host.Name,
		HostUserID:        r.Host.ID,
		AdmissionRequired: r.AdmissionRequired,
		IsActive:          r.IsActive,
		ParticipantCount:  len(r.Roster),
		WaitingCount:      len(r.Waiting),
		Messages:          msgs,
		CreatedAt:         r.CreatedAt,
	}
}

type RoomCreated struct {
	RoomCode domain.RoomCode `json:"roomCode"`
	Room     RoomView        `json:"room"`
	HostUser UserView        `json:"hostUser"`
}

type RoomJoined struct {
	Room         RoomView   `json:"room"`
	User         UserView   `json:"user"`
	Participants []UserView `json:"participants"`
}

type WaitingForAdmission struct {
	RoomCode domain.RoomCode `json:"roomCode"`
	Message  string          `json:"message"`
}

type AdmissionRequest struct {
	RoomCode     domain.RoomCode `json:"roomCode"`
	User         UserView        `json:"user"`
	WaitingCount int             `json:"waitingCount"`
}

type AdmissionRejected struct {
	RoomCode domain.RoomCode `json:"roomCode"`
	Message  string          `json:"message"`
}

type WaitingListUpdated struct {
	Count       int        `json:"count"`
	WaitingList []UserView `json:"waitingList"`
}

type UserLeft struct {
	ConnectionID domain.ConnID `json:"connectionId"`
}

type NewMessage struct {
	ID            string        `json:"id"`
	From          domain.ConnID `json:"from"`
	Sender        string        `json:"sender"`
	SenderPicture string        `json:"senderPicture,omitempty"`
	Text          string        `json:"text"`
	SentAt        time.Time     `json:"sentAt"`
}

type SignalRelay struct {
	From        domain.ConnID   `json:"from"`
	Description json.RawMessage `json:"description,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

type LeftRoom struct {
	RoomCode domain.RoomCode `json:"roomCode"`
}

type WhoAmI struct {
	ConnectionID domain.ConnID   `json:"connectionId"`
	User         UserView        `json:"user"`
	RoomCode     domain.RoomCode `json:"roomCode,omitempty"`
	State        string          `json:"state"`
}

type ErrorEvent struct {
	Message string           `json:"message"`
	Kind    domain.ErrorKind `json:"kind"`
}

// ErrorEventFor builds the error event reported to an initiator.
func ErrorEventFor(err error) Event {
	return Event{Type: EvError, Data: ErrorEvent{Message: domain.PublicMessage(err), Kind: domain.KindOf(err)}}
}

// ParticipantViews projects the roster, leaving out skip.
func ParticipantViews(roster []domain.Participant, skip domain.ConnID) []UserView {
	out := make([]UserView, 0, len(roster))
	for _, p := range roster {
		if p.ConnID == skip {
			continue
		}
		out = append(out, NewUserView(p.ConnID, p.Identity))
	}
	return out
}

// WaitingViews projects the waiting list in request order.
func WaitingViews(waiting []domain.WaitingEntry) []UserView {
	out := make([]UserView, 0, len(waiting))
	for _, e := range waiting {
		out = append(out, NewUserView(e.ConnID, e.Identity))
	}
	return out
}
