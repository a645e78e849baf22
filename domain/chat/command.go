package chat

import (
	"time"
)

// SendMessageCommand is the intent of SenderID to deliver Content to ReceiverID.
// SenderID always comes from the verified session or request identity.
// ClaimedSenderID is whatever the client put in its payload, if anything.
type SendMessageCommand struct {
	SenderID        UserID `validate:"required"`
	ClaimedSenderID UserID
	ReceiverID      UserID `validate:"required"`
	Content         string `validate:"required"`
	CreatedAt       time.Time
}

// TypingCommand signals that SenderID started or stopped typing to ReceiverID.
type TypingCommand struct {
	SenderID   UserID `validate:"required"`
	ReceiverID UserID `validate:"required"`
	IsTyping   bool
}
