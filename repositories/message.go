//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	messagePrefix      = "msg:"
	unreadPrefix       = "unread:"
	sequenceKey        = "seq:msg"
	sequenceLease      = 1000
	markReadBatch      = 500
	maxConflictRetries = 3
	sequenceDigits     = 20
)

type IMessageRepository interface {
	Append(message DiskMessage) (uuid.UUID, error)
	FindConversation(userA, userB string) ([]DiskMessage, error)
	MarkRead(sender, receiver string) (int, error)
	MarkReadRange(sender, receiver string, from, to uint64) (int, error)
	CountUnread(receiver string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *badger.Sequence
	limitMessages *int
}

// NewMessageRepository leases a block of the append sequence.
// Close must be called to hand back the unused part of the lease.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq, limitMessages: limitMessages}, nil
}

func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

type DiskMessage struct {
	ID       uuid.UUID
	Seq      uint64
	Sender   string
	Receiver string
	Content  string
	At       time.Time
	Read     bool
}

// Append persists a message and its unread index entry in one transaction.
// Keys:
//
//	msg:{a}:{b}:{seq}                 conversation log, a <= b
//	unread:{receiver}:{sender}:{seq}  -> conversation key, removed once read
//
// Identities are query-escaped so ':' never appears inside a segment, and seq is
// zero padded so lexicographical order is append order.
func (m *MessageRepository) Append(message DiskMessage) (uuid.UUID, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.At.IsZero() {
		message.At = time.Now().UTC()
	}
	seq, err := m.seq.Next()
	if err != nil {
		return uuid.Nil, err
	}
	message.Seq = seq

	key := messageKey(message.Sender, message.Receiver, seq)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, encodeMessage(message)); err != nil {
			return err
		}
		if message.Read {
			return nil
		}
		return txn.Set(unreadKey(message.Receiver, message.Sender, seq), key)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return message.ID, nil
}

// FindConversation returns the messages exchanged by userA and userB, oldest first.
// When limitMessages is set only the most recent ones are returned.
func (m *MessageRepository) FindConversation(userA, userB string) ([]DiskMessage, error) {
	prefix := conversationPrefix(userA, userB)
	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = m.limitMessages != nil
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if options.Reverse {
			// Reverse iteration starts from the last possible key of the prefix
			seekKey = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.limitMessages != nil {
		messages = lo.Reverse(messages)
	}
	return messages, nil
}

// MarkRead flags every unread message from sender to receiver as read.
// Work is split in batches so a large backlog never exceeds a transaction,
// each batch being atomic. Re-running it after success changes nothing.
func (m *MessageRepository) MarkRead(sender, receiver string) (int, error) {
	prefix := unreadPairPrefix(receiver, sender)
	return m.markRead(prefix, prefix, nil)
}

// MarkReadRange is MarkRead restricted to the sequence numbers in [from, to].
// Messages appended after a read, or older than what was shown, stay unread.
func (m *MessageRepository) MarkReadRange(sender, receiver string, from, to uint64) (int, error) {
	if from > to {
		return 0, nil
	}
	return m.markRead(unreadPairPrefix(receiver, sender),
		unreadKey(receiver, sender, from), unreadKey(receiver, sender, to))
}

// markRead runs batches from seek while keys share prefix and, when last is set, are <= last.
func (m *MessageRepository) markRead(prefix, seek, last []byte) (int, error) {
	total, conflicts := 0, 0
	for {
		n, err := m.markReadBatch(prefix, seek, last)
		if errors.Is(err, badger.ErrConflict) && conflicts < maxConflictRetries {
			// A concurrent MarkRead on the same pair already took these rows
			conflicts++
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
		if n < markReadBatch {
			return total, nil
		}
	}
}

func (m *MessageRepository) markReadBatch(prefix, seek, last []byte) (int, error) {
	count := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		type pending struct{ index, message []byte }
		var batch []pending

		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(batch) < markReadBatch; it.Next() {
			item := it.Item()
			if last != nil && bytes.Compare(item.Key(), last) > 0 {
				break
			}
			messageKey, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			batch = append(batch, pending{index: item.KeyCopy(nil), message: messageKey})
		}
		// Writes must happen once the iterator is closed
		it.Close()

		for _, p := range batch {
			item, err := txn.Get(p.message)
			switch {
			case err == badger.ErrKeyNotFound:
				m.log.Warn("Unread index points to a missing message", "key", string(p.message))
			case err != nil:
				return err
			default:
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				message, err := decodeMessage(raw)
				if err != nil {
					return err
				}
				message.Read = true
				if err := txn.Set(p.message, encodeMessage(message)); err != nil {
					return err
				}
			}
			if err := txn.Delete(p.index); err != nil {
				return err
			}
		}
		count = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnread counts the unread index entries of receiver without loading values.
func (m *MessageRepository) CountUnread(receiver string) (int, error) {
	prefix := []byte(unreadPrefix + escape(receiver) + ":")
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func escape(user string) string {
	return url.QueryEscape(user)
}

func conversationPrefix(userA, userB string) []byte {
	pair := []string{escape(userA), escape(userB)}
	sort.Strings(pair)
	return []byte(messagePrefix + pair[0] + ":" + pair[1] + ":")
}

func messageKey(sender, receiver string, seq uint64) []byte {
	return fmt.Appendf(conversationPrefix(sender, receiver), "%0*d", sequenceDigits, seq)
}

func unreadPairPrefix(receiver, sender string) []byte {
	return []byte(unreadPrefix + escape(receiver) + ":" + escape(sender) + ":")
}

func unreadKey(receiver, sender string, seq uint64) []byte {
	return fmt.Appendf(unreadPairPrefix(receiver, sender), "%0*d", sequenceDigits, seq)
}

// ScanMessages walks the stored messages in key order without leasing the sequence,
// so it works on a read-only database. Empty users scan every conversation.
func ScanMessages(db *badger.DB, userA, userB string, fn func(key string, message DiskMessage) error) error {
	prefix := []byte(messagePrefix)
	if userA != "" && userB != "" {
		prefix = conversationPrefix(userA, userB)
	}
	return db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			message, err := decodeMessage(raw)
			if err != nil {
				return fmt.Errorf("key %s: %w", item.Key(), err)
			}
			if err := fn(string(item.Key()), message); err != nil {
				return err
			}
		}
		return nil
	})
}
