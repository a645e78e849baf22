package workers

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"log/slog"

	"github.com/samber/lo"
)

// PresenceFanout broadcasts the online users to every registered connection.
//
// Triggers are coalesced: any number of presence changes arriving while a
// broadcast is running collapse into the next one, which reads the registry
// again. Delivery is best-effort, a failed push is logged and skipped.
type PresenceFanout struct {
	log      *slog.Logger
	registry contract.IRegistry
	trigger  <-chan struct{}
}

func NewPresenceFanout(log *slog.Logger, registry contract.IRegistry, trigger <-chan struct{}) *PresenceFanout {
	return &PresenceFanout{log: log, registry: registry, trigger: trigger}
}

func (w *PresenceFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence fanout")
			return nil
		case <-w.trigger:
			w.Broadcast()
		}
	}
}

// Broadcast pushes one consistent copy of the registry to all its connections.
func (w *PresenceFanout) Broadcast() int {
	entries := w.registry.Entries()
	users := lo.Map(entries, func(entry contract.PresenceEntry, _ int) chat.UserID {
		return entry.User
	})

	delivered := 0
	for _, entry := range entries {
		// Each receiver gets its own copy of the slice
		evt := event.OnlineUsers{Users: append([]chat.UserID(nil), users...)}
		if err := entry.Conn.Send(evt); err != nil {
			w.log.Warn("Presence push failed", "user_id", entry.User, "error", err)
			continue
		}
		delivered++
	}
	w.log.Debug("Presence broadcast", "online", len(users), "delivered", delivered)
	return delivered
}
