package workers

import (
	"dm-relay/contract"
	"dm-relay/mocks"
	"log/slog"
	"os"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type backloggedConn struct {
	*mocks.MockConnection
	pending int
}

func (c backloggedConn) Pending() int { return c.pending }

func TestTelemetryWorker_Collect(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)

	registry.EXPECT().Entries().Return([]contract.PresenceEntry{
		{User: "alice", Conn: backloggedConn{MockConnection: mocks.NewMockConnection(ctrl), pending: 3}},
		{User: "bob", Conn: backloggedConn{MockConnection: mocks.NewMockConnection(ctrl), pending: 7}},
		{User: "carol", Conn: mocks.NewMockConnection(ctrl)},
	})

	stats := NewTelemetryWorker(log, registry, 0).Collect(nil)

	req.Equal(3, stats.Online)
	req.Equal(10, stats.Backlog)
	req.Equal(7, stats.MaxBacklog)
	req.Zero(stats.RSS)
}

func TestTelemetryWorker_Collect_Process(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().Entries().Return(nil)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	stats := NewTelemetryWorker(log, registry, 0).Collect(p)

	req.Zero(stats.Online)
	req.NotZero(stats.RSS)
}
