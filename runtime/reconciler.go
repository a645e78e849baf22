package runtime

import (
	"dm-relay/domain/chat"
	"dm-relay/errors"
	"dm-relay/repositories"
	"log/slog"

	"github.com/samber/lo"
)

// Reconciler keeps the unread state of the message store consistent with
// what users have actually viewed. It never pushes history eagerly.
type Reconciler struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
}

func NewReconciler(log *slog.Logger, repository repositories.IMessageRepository) *Reconciler {
	return &Reconciler{log: log, repository: repository}
}

func (r *Reconciler) CountUnread(user chat.UserID) (int, error) {
	count, err := r.repository.CountUnread(user.String())
	if err != nil {
		return 0, errors.Persistence(err)
	}
	return count, nil
}

// MarkRead marks every message sent by peer to reader as read.
// Calling it again once everything is read returns 0 and no error.
func (r *Reconciler) MarkRead(reader, peer chat.UserID) (int, error) {
	count, err := r.repository.MarkRead(peer.String(), reader.String())
	if err != nil {
		return 0, errors.Persistence(err)
	}
	if count > 0 {
		r.log.Debug("Messages marked as read", "user_id", reader, "peer", peer, "count", count)
	}
	return count, nil
}

// History returns the conversation of reader and peer, oldest first, then
// marks as read what reader received among the returned messages only.
// The returned copies already reflect it.
func (r *Reconciler) History(reader, peer chat.UserID) ([]chat.Message, error) {
	disk, err := r.repository.FindConversation(reader.String(), peer.String())
	if err != nil {
		return nil, errors.Persistence(err)
	}
	if len(disk) > 0 {
		// The window is contiguous in sequence order, first and last bound it
		from, to := disk[0].Seq, disk[len(disk)-1].Seq
		if _, err := r.repository.MarkReadRange(peer.String(), reader.String(), from, to); err != nil {
			return nil, errors.Persistence(err)
		}
	}

	messages := fromDiskMessage(disk)
	for i := range messages {
		if messages[i].ReceiverID == reader && messages[i].SenderID == peer {
			messages[i].Read = true
		}
	}
	return messages, nil
}

func fromDiskMessage(messages []repositories.DiskMessage) []chat.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) chat.Message {
		return chat.Message{
			ID:         item.ID,
			SenderID:   chat.UserID(item.Sender),
			ReceiverID: chat.UserID(item.Receiver),
			Content:    item.Content,
			CreatedAt:  item.At,
			Read:       item.Read,
		}
	})
}
