package ws_test

import (
	"context"
	"dm-relay/auth"
	"dm-relay/domain/chat"
	"dm-relay/domain/event"
	"dm-relay/infrastructure/ws"
	"dm-relay/repositories"
	"dm-relay/runtime"
	"dm-relay/runtime/workers"
	"dm-relay/session"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const secret = "websocket_test_secret"

type HandlerSuite struct {
	suite.Suite
	cancel     context.CancelFunc
	db         *badger.DB
	repository *repositories.MessageRepository
	relay      *runtime.Relay
	verifier   *auth.TokenVerifier
	server     *httptest.Server
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db
	s.repository, err = repositories.NewMessageRepository(db, log, nil)
	s.Require().NoError(err)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.relay = runtime.NewRelay(log, workers.NewSupervisor(log, 0), runtime.NewRegistry(), s.repository, runtime.RelayConfig{})
	s.relay.Start(ctx)

	s.verifier = auth.NewTokenVerifier(secret)
	handler := ws.NewHandler(ctx, log, s.relay, session.Config{BufferSize: 16}, time.Minute, nil)
	s.server = httptest.NewServer(s.verifier.Middleware(handler))
}

func (s *HandlerSuite) TearDownTest() {
	s.server.Close()
	s.relay.Stop()
	s.cancel()
	s.Require().NoError(s.repository.Close())
	s.Require().NoError(s.db.Close())
}

func (s *HandlerSuite) dial(user chat.UserID) *websocket.Conn {
	token, err := s.verifier.GenerateToken(user, time.Hour)
	s.Require().NoError(err)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

// next reads frames until one of the given kind arrives.
func (s *HandlerSuite) next(conn *websocket.Conn, kind event.Kind) event.Outbound {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		s.Require().NoError(err)
		evt, err := event.DecodeOutbound(data)
		s.Require().NoError(err)
		if evt.Kind() == kind {
			return evt
		}
	}
}

func (s *HandlerSuite) Test_Live_Message_Between_Two_Sockets() {
	alice := s.dial("alice")
	bob := s.dial("bob")

	// Bob is told about his unread messages on connect
	s.Equal(event.UnreadCount{Count: 0}, s.next(bob, event.UnreadCountKind))

	// Alice eventually sees both users
	users := s.next(alice, event.OnlineUsersKind).(event.OnlineUsers).Users
	for len(users) != 2 {
		users = s.next(alice, event.OnlineUsersKind).(event.OnlineUsers).Users
	}

	// When alice sends hello
	s.Require().NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"send-message","data":{"receiverId":"bob","content":"hello"}}`)))

	// Then bob receives it live and alice gets her ack
	received := s.next(bob, event.ReceiveMessageKind).(event.ReceiveMessage).Message
	s.Equal("hello", received.Content)
	s.Equal(chat.UserID("alice"), received.SenderID)

	ack := s.next(alice, event.MessageSentKind).(event.MessageSent).Message
	s.Equal(received.ID, ack.ID)
}

func (s *HandlerSuite) Test_Typing_Over_Socket() {
	alice := s.dial("alice")
	bob := s.dial("bob")
	s.next(bob, event.UnreadCountKind)

	s.Require().NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"typing","data":{"receiverId":"bob","isTyping":true}}`)))

	s.Equal(event.UserTyping{SenderID: "alice", IsTyping: true}, s.next(bob, event.UserTypingKind))
}

func (s *HandlerSuite) Test_Invalid_Frame_Gets_Error_Event() {
	alice := s.dial("alice")

	s.Require().NoError(alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"send-message","data":{"receiverId":"bob","content":""}}`)))

	evt := s.next(alice, event.ErrorKind).(event.Error)
	s.Equal("validation", evt.Code)
}

func (s *HandlerSuite) Test_Second_Socket_Replaces_First() {
	first := s.dial("alice")
	s.next(first, event.UnreadCountKind)
	second := s.dial("alice")
	s.next(second, event.UnreadCountKind)

	// The first socket is closed by the server
	s.Require().NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
			break
		}
	}

	s.Equal([]chat.UserID{"alice"}, s.relay.OnlineUsers())
}

func (s *HandlerSuite) Test_Missing_Token_Is_Refused() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}
