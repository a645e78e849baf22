package event

import (
	"dm-relay/domain/chat"
	"dm-relay/errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Inbound
		err      error
	}{
		{
			name:     "User online carries a bare identity",
			raw:      `{"event":"user-online","data":"alice"}`,
			expected: UserOnline{UserID: "alice"},
		},
		{
			name:     "Send message with optional sender",
			raw:      `{"event":"send-message","data":{"receiverId":"bob","content":"hi","senderId":"alice"}}`,
			expected: SendMessage{ReceiverID: "bob", Content: "hi", SenderID: "alice"},
		},
		{
			name:     "Typing",
			raw:      `{"event":"typing","data":{"receiverId":"bob","isTyping":true}}`,
			expected: Typing{ReceiverID: "bob", IsTyping: true},
		},
		{
			name: "Unknown kind",
			raw:  `{"event":"delete-message","data":{}}`,
			err:  errors.ErrUnknownEvent,
		},
		{
			name: "Missing data",
			raw:  `{"event":"typing"}`,
			err:  errors.ErrMalformedEvent,
		},
		{
			name: "Not json",
			raw:  `hello`,
			err:  errors.ErrMalformedEvent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			evt, err := DecodeInbound([]byte(tt.raw))
			if tt.err != nil {
				req.ErrorIs(err, tt.err)
				req.True(errors.IsValidation(err))
				return
			}
			req.NoError(err)
			req.Equal(tt.expected, evt)
		})
	}
}

func TestEncode_ReceiveMessage(t *testing.T) {
	req := require.New(t)
	msg := chat.Message{
		ID:         uuid.New(),
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "hello",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	raw, err := Encode(ReceiveMessage{Message: msg})
	req.NoError(err)
	req.Contains(string(raw), `"event":"receive-message"`)

	decoded, err := DecodeOutbound(raw)
	req.NoError(err)
	req.Equal(ReceiveMessage{Message: msg}, decoded)
}

func TestEncode_EmptyOnlineUsersIsAnArray(t *testing.T) {
	req := require.New(t)
	raw, err := Encode(OnlineUsers{})
	req.NoError(err)
	req.JSONEq(`{"event":"online-users","data":[]}`, string(raw))
}

func TestFromError(t *testing.T) {
	req := require.New(t)
	e := FromError(errors.ErrEmptyContent)
	req.Equal(errors.CodeValidation, e.Code)
	req.Contains(e.Message, "content is required")
}
