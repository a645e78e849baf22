// Package session owns one live client connection: its state machine,
// its bounded outbound queue and the sequential dispatch of its inbound frames.
package session

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"dm-relay/errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var _ contract.Connection = (*Session)(nil)

type State int32

const (
	Connecting State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	default:
		return "closed"
	}
}

// Transport is the framed bidirectional channel under a session.
// ReadMessage is only called by the reader, WriteMessage and Ping only by the writer.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	Close() error
}

type Config struct {
	// BufferSize bounds the outbound queue. A full queue rejects Send with ErrSendBufferFull.
	BufferSize   int
	PingInterval time.Duration
}

type Session struct {
	id           string
	user         chat.UserID
	log          *slog.Logger
	transport    Transport
	dispatcher   contract.Dispatcher
	outbound     chan []byte
	pingInterval time.Duration
	done         chan struct{}
	lastActivity atomic.Int64

	mu      sync.Mutex
	state   State
	onClose func(contract.Connection)
}

func New(log *slog.Logger, user chat.UserID, transport Transport, dispatcher contract.Dispatcher, config Config) *Session {
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 64
	}
	id := uuid.NewString()
	s := &Session{
		id:           id,
		user:         user,
		log:          log.With("session_id", id, "user_id", user),
		transport:    transport,
		dispatcher:   dispatcher,
		outbound:     make(chan []byte, bufferSize),
		pingInterval: config.PingInterval,
		done:         make(chan struct{}),
		state:        Connecting,
	}
	s.Touch()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() chat.UserID { return s.user }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate moves a connecting session to Active. onClose runs once, on Close.
func (s *Session) Activate(onClose func(contract.Connection)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Closed:
		return errors.ErrSessionClosed
	case Active:
		return nil
	}
	s.state = Active
	s.onClose = onClose
	return nil
}

// Send enqueues evt without blocking. Events are never dropped silently:
// a full queue or an inactive session is reported to the caller.
func (s *Session) Send(evt event.Outbound) error {
	data, err := event.Encode(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Closed:
		return errors.ErrSessionClosed
	case Connecting:
		return errors.ErrSessionNotActive
	}
	select {
	case s.outbound <- data:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close is idempotent. The first call releases the transport and runs the close hook.
// Frames still queued for the writer are discarded, not flushed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	hook := s.onClose
	s.onClose = nil
	close(s.done)
	s.mu.Unlock()

	if err := s.transport.Close(); err != nil {
		s.log.Debug("Transport close failed", "error", err)
	}
	if hook != nil {
		hook(s)
	}
	s.log.Debug("Session closed")
}

func (s *Session) Touch() { s.lastActivity.Store(time.Now().UnixNano()) }

func (s *Session) LastActivity() time.Time { return time.Unix(0, s.lastActivity.Load()) }

// Pending is the number of frames waiting for the writer.
func (s *Session) Pending() int { return len(s.outbound) }

// Run pumps the transport until it fails, the session closes or ctx is canceled.
// Inbound frames are dispatched one after the other, in arrival order.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()

	go s.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			s.log.Debug("Transport read ended", "error", err)
			return
		}
		s.Touch()
		_ = s.OnInbound(ctx, data)
	}
}

// OnInbound decodes one frame and hands it to the dispatcher.
// A rejected frame is answered with an error event, the session stays open.
func (s *Session) OnInbound(ctx context.Context, data []byte) error {
	if state := s.State(); state != Active {
		return errors.ErrSessionNotActive
	}

	evt, err := event.DecodeInbound(data)
	if err == nil {
		err = s.dispatcher.Dispatch(ctx, s, evt)
	}
	if err != nil {
		s.log.Debug("Inbound event rejected", "error", err)
		if pushErr := s.Send(event.FromError(err)); pushErr != nil {
			s.log.Warn("Error event not delivered", "error", pushErr)
		}
	}
	return err
}

func (s *Session) writeLoop() {
	var ping <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		// A closed session never writes, even with frames still queued
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case <-s.done:
			return
		case data := <-s.outbound:
			if err := s.transport.WriteMessage(data); err != nil {
				s.log.Debug("Transport write failed", "error", err)
				s.Close()
				return
			}
		case <-ping:
			if err := s.transport.Ping(); err != nil {
				s.log.Debug("Transport ping failed", "error", err)
				s.Close()
				return
			}
		}
	}
}
