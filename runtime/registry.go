package runtime

import (
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"sort"
	"sync"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps every online user to its single live connection.
// It is rebuilt from nothing on restart and never holds a lock across I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[chat.UserID]contract.Connection
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[chat.UserID]contract.Connection),
	}
}

// Register stores conn as the connection of user and returns the one it replaced.
// The caller owns the returned connection and must close it.
// Re-registering the current connection returns nil.
func (r *Registry) Register(user chat.UserID, conn contract.Connection) contract.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.sessions[user]
	r.sessions[user] = conn
	if !ok || previous == conn {
		return nil
	}
	return previous
}

// Unregister removes the entry of user only if it still points to conn.
// A stale disconnect therefore never evicts a newer connection.
func (r *Registry) Unregister(user chat.UserID, conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[user]
	if !ok || current != conn {
		return false
	}
	delete(r.sessions, user)
	return true
}

func (r *Registry) Lookup(user chat.UserID) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.sessions[user]
	return conn, ok
}

// Snapshot returns the online users at one instant, sorted.
func (r *Registry) Snapshot() []chat.UserID {
	r.mu.RLock()
	users := make([]chat.UserID, 0, len(r.sessions))
	for user := range r.sessions {
		users = append(users, user)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Entries copies every entry at one instant, sorted by user.
func (r *Registry) Entries() []contract.PresenceEntry {
	r.mu.RLock()
	entries := make([]contract.PresenceEntry, 0, len(r.sessions))
	for user, conn := range r.sessions {
		entries = append(entries, contract.PresenceEntry{User: user, Conn: conn})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].User < entries[j].User })
	return entries
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
