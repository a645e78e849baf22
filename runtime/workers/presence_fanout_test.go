package workers

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"dm-relay/errors"
	"dm-relay/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceFanout_Broadcast(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	alice := mocks.NewMockConnection(ctrl)
	bob := mocks.NewMockConnection(ctrl)

	// Given alice and bob are online
	registry.EXPECT().Entries().Return([]contract.PresenceEntry{
		{User: "alice", Conn: alice},
		{User: "bob", Conn: bob},
	})
	expected := event.OnlineUsers{Users: []chat.UserID{"alice", "bob"}}
	alice.EXPECT().Send(expected).Return(nil)
	// And bob's buffer is full
	bob.EXPECT().Send(expected).Return(errors.ErrSendBufferFull)

	// When presence is broadcast
	delivered := NewPresenceFanout(log, registry, nil).Broadcast()

	// Then the failure is swallowed and alice still got the list
	req.Equal(1, delivered)
}

func TestPresenceFanout_Run_Consumes_Triggers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockIRegistry(ctrl)
	alice := mocks.NewMockConnection(ctrl)

	pushed := make(chan event.Outbound, 1)
	registry.EXPECT().Entries().Return([]contract.PresenceEntry{{User: "alice", Conn: alice}})
	alice.EXPECT().Send(gomock.Any()).DoAndReturn(func(evt event.Outbound) error {
		pushed <- evt
		return nil
	})

	trigger := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPresenceFanout(log, registry, trigger).Run(ctx) }()

	// When a presence change is signaled
	trigger <- struct{}{}

	// Then the online users are pushed
	select {
	case evt := <-pushed:
		req.Equal(event.OnlineUsers{Users: []chat.UserID{"alice"}}, evt)
	case <-time.After(time.Second):
		req.Fail("No presence broadcast")
	}

	cancel()
	req.NoError(<-done)
}
