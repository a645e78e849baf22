//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a live channel to one client, owned by its registry entry.
// Close must be idempotent.
type Connection interface {
	ID() string
	UserID() chat.UserID
	Send(evt event.Outbound) error
	// Activate moves the connection to Active and installs the hook run once on Close.
	Activate(onClose func(Connection)) error
	Close()
	LastActivity() time.Time
}

type PresenceEntry struct {
	User chat.UserID
	Conn Connection
}

type IRegistry interface {
	Register(user chat.UserID, conn Connection) Connection
	Unregister(user chat.UserID, conn Connection) bool
	Lookup(user chat.UserID) (Connection, bool)
	Snapshot() []chat.UserID
	Entries() []PresenceEntry
	Len() int
}

// Dispatcher receives the inbound events of a session, one at a time.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn Connection, evt event.Inbound) error
}

// ContentFilter rewrites message content before it is stored.
type ContentFilter interface {
	Censor(content string) string
}
