package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChatMessage is one accepted entry of a room's message log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderConn ConnID    `json:"senderConnection"`
	Sender     Identity  `json:"sender"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
}

// NewChatMessage validates text and stamps the message.
func NewChatMessage(conn ConnID, sender Identity, text string, maxLen int, now time.Time) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if maxLen > 0 && len(text) > maxLen {
		return ChatMessage{}, fmt.Errorf("%w: message longer than %d bytes", ErrValidation, maxLen)
	}
	return ChatMessage{
		ID:         ulid.Make().String(),
		SenderConn: conn,
		Sender:     sender,
		Text:       text,
		SentAt:     now,
	}, nil
}
