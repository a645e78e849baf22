// Package event defines the frames exchanged with a live client.
// Every frame travels as an Envelope: {"event": kind, "data": payload}.
package event

import (
	"dm-relay/domain/chat"
	"dm-relay/errors"
	"encoding/json"
	"fmt"
)

type Kind string

const (
	// Client -> Server
	UserOnlineKind  Kind = "user-online"
	SendMessageKind Kind = "send-message"
	TypingKind      Kind = "typing"

	// Server -> Client
	OnlineUsersKind    Kind = "online-users"
	ReceiveMessageKind Kind = "receive-message"
	UserTypingKind     Kind = "user-typing"
	MessageSentKind    Kind = "message-sent"
	UnreadCountKind    Kind = "unread-count"
	ErrorKind          Kind = "error"
)

// Inbound is a decoded frame received from a client.
type Inbound interface {
	Kind() Kind
}

// Outbound is a frame pushed to a client.
type Outbound interface {
	Kind() Kind
}

type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserOnline announces the sender as online. The identity must be the session owner.
type UserOnline struct {
	UserID chat.UserID
}

func (UserOnline) Kind() Kind { return UserOnlineKind }

type SendMessage struct {
	ReceiverID chat.UserID `json:"receiverId"`
	Content    string      `json:"content"`
	// SenderID is optional and only checked against the session owner.
	SenderID chat.UserID `json:"senderId,omitempty"`
}

func (SendMessage) Kind() Kind { return SendMessageKind }

type Typing struct {
	ReceiverID chat.UserID `json:"receiverId"`
	IsTyping   bool        `json:"isTyping"`
}

func (Typing) Kind() Kind { return TypingKind }

type OnlineUsers struct {
	Users []chat.UserID
}

func (OnlineUsers) Kind() Kind { return OnlineUsersKind }

type ReceiveMessage struct {
	Message chat.Message
}

func (ReceiveMessage) Kind() Kind { return ReceiveMessageKind }

type UserTyping struct {
	SenderID chat.UserID `json:"senderId"`
	IsTyping bool        `json:"isTyping"`
}

func (UserTyping) Kind() Kind { return UserTypingKind }

// MessageSent acknowledges a send with the stored record.
type MessageSent struct {
	Message chat.Message
}

func (MessageSent) Kind() Kind { return MessageSentKind }

type UnreadCount struct {
	Count int `json:"count"`
}

func (UnreadCount) Kind() Kind { return UnreadCountKind }

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Error) Kind() Kind { return ErrorKind }

// FromError builds the error frame reported back to the originating client.
func FromError(err error) Error {
	return Error{Code: errors.Code(err), Message: err.Error()}
}

// Encode serializes an outbound frame into its envelope.
func Encode(evt Outbound) ([]byte, error) {
	var payload any
	switch e := evt.(type) {
	case OnlineUsers:
		users := e.Users
		if users == nil {
			users = []chat.UserID{}
		}
		payload = users
	case ReceiveMessage:
		payload = e.Message
	case MessageSent:
		payload = e.Message
	default:
		payload = e
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Kind(), err)
	}
	return json.Marshal(Envelope{Event: evt.Kind(), Data: data})
}

// DecodeInbound parses a client frame. Unknown kinds and bad payloads are validation errors.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	switch env.Event {
	case UserOnlineKind:
		var id chat.UserID
		if err := unmarshalData(env, &id); err != nil {
			return nil, err
		}
		return UserOnline{UserID: id}, nil
	case SendMessageKind:
		var msg SendMessage
		if err := unmarshalData(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypingKind:
		var typing Typing
		if err := unmarshalData(env, &typing); err != nil {
			return nil, err
		}
		return typing, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", errors.ErrMalformedEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrMalformedEvent, env.Event, err)
	}
	return nil
}

// DecodeOutbound parses a server frame. Used by clients and tests.
func DecodeOutbound(raw []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	switch env.Event {
	case OnlineUsersKind:
		var users []chat.UserID
		err := unmarshalData(env, &users)
		return OnlineUsers{Users: users}, err
	case ReceiveMessageKind:
		var msg chat.Message
		err := unmarshalData(env, &msg)
		return ReceiveMessage{Message: msg}, err
	case MessageSentKind:
		var msg chat.Message
		err := unmarshalData(env, &msg)
		return MessageSent{Message: msg}, err
	case UserTypingKind:
		var typing UserTyping
		err := unmarshalData(env, &typing)
		return typing, err
	case UnreadCountKind:
		var count UnreadCount
		err := unmarshalData(env, &count)
		return count, err
	case ErrorKind:
		var e Error
		err := unmarshalData(env, &e)
		return e, err
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}
