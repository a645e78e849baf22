package workers

import (
	"dm-relay/contract"
	"dm-relay/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdleReaper_Reap(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	idle := mocks.NewMockConnection(ctrl)
	busy := mocks.NewMockConnection(ctrl)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reaper := NewIdleReaper(log, registry, time.Minute)
	reaper.now = func() time.Time { return now }

	// Given alice was last seen five minutes ago and bob a second ago
	registry.EXPECT().Entries().Return([]contract.PresenceEntry{
		{User: "alice", Conn: idle},
		{User: "bob", Conn: busy},
	})
	idle.EXPECT().LastActivity().Return(now.Add(-5 * time.Minute))
	idle.EXPECT().ID().Return("session-alice")
	busy.EXPECT().LastActivity().Return(now.Add(-time.Second))

	// Then only alice is closed
	idle.EXPECT().Close().Times(1)
	busy.EXPECT().Close().Times(0)

	req.Equal(1, reaper.Reap())
}

func TestIdleReaper_Disabled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)

	// A zero timeout never touches the registry
	req.Zero(NewIdleReaper(log, registry, 0).Reap())
}
