package workers

import (
	"context"
	"dm-relay/contract"
	"log/slog"
	"time"
)

// IdleReaper closes registered connections without activity for longer than
// the idle timeout. Closing runs the connection's own disconnect path, so the
// registry entry goes through compare-and-remove like any other disconnect.
type IdleReaper struct {
	log         *slog.Logger
	registry    contract.IRegistry
	idleTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
}

func NewIdleReaper(log *slog.Logger, registry contract.IRegistry, idleTimeout time.Duration) *IdleReaper {
	interval := idleTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	return &IdleReaper{
		log:         log,
		registry:    registry,
		idleTimeout: idleTimeout,
		interval:    interval,
		now:         time.Now,
	}
}

func (w *IdleReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping idle reaper")
			return nil
		case <-ticker.C:
			w.Reap()
		}
	}
}

// Reap closes every idle connection and returns how many were closed.
func (w *IdleReaper) Reap() int {
	if w.idleTimeout <= 0 {
		return 0
	}
	deadline := w.now().Add(-w.idleTimeout)
	reaped := 0
	for _, entry := range w.registry.Entries() {
		if entry.Conn.LastActivity().After(deadline) {
			continue
		}
		w.log.Info("Closing idle connection", "user_id", entry.User, "session_id", entry.Conn.ID())
		entry.Conn.Close()
		reaped++
	}
	return reaped
}
