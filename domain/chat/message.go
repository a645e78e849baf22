// Package chat contains core concepts of the direct-messaging domain.
// Messages are immutable once stored, except for their read flag.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// UserID is the opaque identity handed over by the authentication layer.
type UserID string

func (u UserID) String() string { return string(u) }

// Message is a direct message between two users.
// Read only ever moves from false to true.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   UserID    `json:"sender"`
	ReceiverID UserID    `json:"receiver"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}
