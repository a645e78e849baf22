package runtime

import (
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"dm-relay/errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// fakeConn records what the relay pushes to it.
type fakeConn struct {
	id       string
	user     chat.UserID
	mu       sync.Mutex
	active   bool
	closed   bool
	onClose  func(contract.Connection)
	events   chan event.Outbound
	closes   atomic.Int32
	// calls counts every Close, including the no-op ones
	calls    atomic.Int32
	sendErr  error
	activity time.Time
}

func newFakeConn(user chat.UserID) *fakeConn {
	return &fakeConn{
		id:       uuid.NewString(),
		user:     user,
		events:   make(chan event.Outbound, 100),
		activity: time.Now(),
	}
}

func (c *fakeConn) ID() string          { return c.id }
func (c *fakeConn) UserID() chat.UserID { return c.user }

func (c *fakeConn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

func (c *fakeConn) Send(evt event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrSessionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	select {
	case c.events <- evt:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

func (c *fakeConn) Activate(onClose func(contract.Connection)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrSessionClosed
	}
	c.active = true
	c.onClose = onClose
	return nil
}

func (c *fakeConn) Close() {
	c.calls.Add(1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hook := c.onClose
	c.mu.Unlock()

	c.closes.Add(1)
	if hook != nil {
		hook(c)
	}
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next pushed event of the given kind, skipping others.
func (c *fakeConn) next(kind event.Kind, timeout time.Duration) (event.Outbound, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case evt := <-c.events:
			if evt.Kind() == kind {
				return evt, true
			}
		case <-deadline:
			return nil, false
		}
	}
}

// drain empties the pushed events and returns the ones of the given kind.
func (c *fakeConn) drain(kind event.Kind) []event.Outbound {
	var res []event.Outbound
	for {
		select {
		case evt := <-c.events:
			if evt.Kind() == kind {
				res = append(res, evt)
			}
		default:
			return res
		}
	}
}
