// Package runtime routes live events between connected users.
// It owns the presence registry wiring and the supervised workers,
// the message store stays the only durable truth.
package runtime

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"dm-relay/errors"
	"dm-relay/repositories"
	"dm-relay/runtime/workers"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var _ contract.Dispatcher = (*Relay)(nil)

type RelayConfig struct {
	MaxContentLength int
	IdleTimeout      time.Duration
	MetricInterval   time.Duration
	// Filter is applied to the content before it is stored, nil disables moderation.
	Filter contract.ContentFilter
}

type Relay struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	repository repositories.IMessageRepository
	reconciler *Reconciler
	validate   *validator.Validate
	config     RelayConfig
	presence   chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
	now        func() time.Time
}

func NewRelay(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	repository repositories.IMessageRepository, config RelayConfig) *Relay {
	return &Relay{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		repository: repository,
		reconciler: NewReconciler(log, repository),
		validate:   validator.New(),
		config:     config,
		// One pending signal is enough, the fan-out reads the registry when it runs
		presence: make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Relay) Reconciler() *Reconciler { return r.reconciler }

// Start registers the workers and runs the supervisor in the background.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}

	r.supervisor.Add(workers.NewPresenceFanout(r.log, r.registry, r.presence))
	if r.config.IdleTimeout > 0 {
		r.supervisor.Add(workers.NewIdleReaper(r.log, r.registry, r.config.IdleTimeout))
	}
	if r.config.MetricInterval > 0 {
		r.supervisor.Add(workers.NewTelemetryWorker(r.log, r.registry, r.config.MetricInterval))
	}

	supervisedCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		r.supervisor.Run(supervisedCtx)
	}(r.done)
	r.log.Info("Relay started")
}

// Stop closes every live connection then waits for the workers to return.
func (r *Relay) Stop() {
	for _, entry := range r.registry.Entries() {
		entry.Conn.Close()
	}

	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	r.supervisor.Stop()
	cancel()
	<-done
	r.log.Info("Relay stopped")
}

// Connect makes conn the live connection of its user.
// A connection already registered for that user is closed, last connection wins.
func (r *Relay) Connect(conn contract.Connection) error {
	user := conn.UserID()
	previous := r.registry.Register(user, conn)

	if err := conn.Activate(r.Disconnect); err != nil {
		// Closed before it could start, the entry must not outlive it
		r.registry.Unregister(user, conn)
		if previous != nil {
			previous.Close()
		}
		r.notifyPresence()
		return err
	}
	if previous != nil {
		r.log.Info("Connection replaced", "user_id", user, "session_id", previous.ID())
		previous.Close()
	}

	r.log.Info("User connected", "user_id", user, "session_id", conn.ID())
	r.notifyPresence()
	r.pushUnreadCount(conn)
	return nil
}

// Disconnect is run once by a connection when it closes.
// A superseded connection finds a newer entry and leaves it in place.
func (r *Relay) Disconnect(conn contract.Connection) {
	if !r.registry.Unregister(conn.UserID(), conn) {
		r.log.Debug("Stale disconnect ignored", "user_id", conn.UserID(), "session_id", conn.ID())
		return
	}
	r.log.Info("User disconnected", "user_id", conn.UserID(), "session_id", conn.ID())
	r.notifyPresence()
}

// Dispatch handles one inbound event of conn. Sessions call it sequentially.
func (r *Relay) Dispatch(ctx context.Context, conn contract.Connection, evt event.Inbound) error {
	switch e := evt.(type) {
	case event.UserOnline:
		if e.UserID != "" && e.UserID != conn.UserID() {
			return errors.ErrSenderMismatch
		}
		r.notifyPresence()
		return nil

	case event.SendMessage:
		message, err := r.SendMessage(ctx, chat.SendMessageCommand{
			SenderID:        conn.UserID(),
			ClaimedSenderID: e.SenderID,
			ReceiverID:      e.ReceiverID,
			Content:         e.Content,
		})
		if err != nil {
			return err
		}
		if err := conn.Send(event.MessageSent{Message: message}); err != nil {
			r.log.Warn("Send acknowledgement failed", "user_id", conn.UserID(), "error", err)
		}
		return nil

	case event.Typing:
		return r.SendTyping(chat.TypingCommand{
			SenderID:   conn.UserID(),
			ReceiverID: e.ReceiverID,
			IsTyping:   e.IsTyping,
		})

	default:
		return fmt.Errorf("%w: %T", errors.ErrUnknownEvent, evt)
	}
}

// SendMessage validates and stores the message, then pushes it to the receiver
// if online. Once stored, nothing that happens to the push fails the call.
func (r *Relay) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (chat.Message, error) {
	if err := r.validateMessage(cmd); err != nil {
		return chat.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	content := cmd.Content
	if r.config.Filter != nil {
		content = r.config.Filter.Censor(content)
	}
	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	message := chat.Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Content:    content,
		CreatedAt:  createdAt,
	}
	if _, err := r.repository.Append(repositories.DiskMessage{
		ID:       message.ID,
		Sender:   message.SenderID.String(),
		Receiver: message.ReceiverID.String(),
		Content:  message.Content,
		At:       message.CreatedAt,
	}); err != nil {
		r.log.Error("Message not stored", "user_id", cmd.SenderID, "error", err)
		return chat.Message{}, errors.Persistence(err)
	}

	r.push(message.ReceiverID, event.ReceiveMessage{Message: message})
	return message, nil
}

// SendTyping forwards a typing signal to the receiver if online. Never stored.
func (r *Relay) SendTyping(cmd chat.TypingCommand) error {
	if cmd.ReceiverID == "" {
		return errors.ErrMissingReceiver
	}
	if err := r.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	r.push(cmd.ReceiverID, event.UserTyping{SenderID: cmd.SenderID, IsTyping: cmd.IsTyping})
	return nil
}

// OnlineUsers is the only source of online status.
func (r *Relay) OnlineUsers() []chat.UserID {
	return r.registry.Snapshot()
}

func (r *Relay) validateMessage(cmd chat.SendMessageCommand) error {
	switch {
	case cmd.ClaimedSenderID != "" && cmd.ClaimedSenderID != cmd.SenderID:
		return errors.ErrSenderMismatch
	case cmd.ReceiverID == "":
		return errors.ErrMissingReceiver
	case strings.TrimSpace(cmd.Content) == "":
		return errors.ErrEmptyContent
	case r.config.MaxContentLength > 0 && utf8.RuneCountInString(cmd.Content) > r.config.MaxContentLength:
		return errors.ErrContentTooLong
	}
	if err := r.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

// push is best-effort: an absent receiver or a failed send is not an error.
func (r *Relay) push(user chat.UserID, evt event.Outbound) bool {
	conn, ok := r.registry.Lookup(user)
	if !ok {
		return false
	}
	if err := conn.Send(evt); err != nil {
		r.log.Warn("Live push failed", "user_id", user, "event", evt.Kind(), "error", err)
		return false
	}
	return true
}

func (r *Relay) pushUnreadCount(conn contract.Connection) {
	count, err := r.reconciler.CountUnread(conn.UserID())
	if err != nil {
		r.log.Warn("Unread count unavailable", "user_id", conn.UserID(), "error", err)
		return
	}
	if err := conn.Send(event.UnreadCount{Count: count}); err != nil {
		r.log.Warn("Unread count push failed", "user_id", conn.UserID(), "error", err)
	}
}

func (r *Relay) notifyPresence() {
	select {
	case r.presence <- struct{}{}:
	default:
	}
}
