//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"dm-relay/domain/chat"
	"dm-relay/runtime"
	"time"
)

// IChatService is what the REST layer may do with the relay.
// Every identity it takes has already been verified by the caller.
type IChatService interface {
	SendMessage(ctx context.Context, sender, receiver chat.UserID, content string) (chat.Message, error)
	GetUnreadCount(user chat.UserID) (int, error)
	MarkAsRead(reader, peer chat.UserID) error
	GetChatHistory(reader, peer chat.UserID) ([]chat.Message, error)
	OnlineUsers() []chat.UserID
}

type ChatService struct {
	relay *runtime.Relay
}

func NewChatService(relay *runtime.Relay) *ChatService {
	return &ChatService{relay: relay}
}

// SendMessage stores the message like the live path does, the receiver gets
// it pushed when online and finds it in its history otherwise.
func (s *ChatService) SendMessage(ctx context.Context, sender, receiver chat.UserID, content string) (chat.Message, error) {
	return s.relay.SendMessage(ctx, chat.SendMessageCommand{
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *ChatService) GetUnreadCount(user chat.UserID) (int, error) {
	return s.relay.Reconciler().CountUnread(user)
}

func (s *ChatService) MarkAsRead(reader, peer chat.UserID) error {
	_, err := s.relay.Reconciler().MarkRead(reader, peer)
	return err
}

func (s *ChatService) GetChatHistory(reader, peer chat.UserID) ([]chat.Message, error) {
	return s.relay.Reconciler().History(reader, peer)
}

func (s *ChatService) OnlineUsers() []chat.UserID {
	return s.relay.OnlineUsers()
}
