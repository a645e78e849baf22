package ws

import (
	"context"
	"dm-relay/auth"
	"dm-relay/contract"
	"dm-relay/session"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Connector accepts new sessions and handles their inbound events.
type Connector interface {
	contract.Dispatcher
	Connect(conn contract.Connection) error
}

type Handler struct {
	ctx         context.Context
	log         *slog.Logger
	relay       Connector
	upgrader    websocket.Upgrader
	session     session.Config
	idleTimeout time.Duration
}

// NewHandler upgrades authenticated requests into relay sessions.
// Sessions live until their socket fails or ctx is canceled.
// An empty allowedOrigins accepts any origin.
func NewHandler(ctx context.Context, log *slog.Logger, relay Connector,
	config session.Config, idleTimeout time.Duration, allowedOrigins []string) *Handler {
	if config.PingInterval <= 0 && idleTimeout > 0 {
		// Pings must arrive before the read deadline expires
		config.PingInterval = idleTimeout * 9 / 10
	}
	return &Handler{
		ctx:         ctx,
		log:         log,
		relay:       relay,
		session:     config,
		idleTimeout: idleTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		h.log.Debug("Websocket upgrade failed", "user_id", user, "error", err)
		return
	}

	transport := NewTransport(conn, h.idleTimeout)
	sess := session.New(h.log, user, transport, h.relay, h.session)
	transport.OnActivity(sess.Touch)

	if err := h.relay.Connect(sess); err != nil {
		h.log.Warn("Session refused", "user_id", user, "error", err)
		sess.Close()
		return
	}
	sess.Run(h.ctx)
}
