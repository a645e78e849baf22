// Package rest serves the chat service over HTTP with chi.
package rest

import (
	"dm-relay/auth"
	"dm-relay/domain/chat"
	"dm-relay/errors"
	"dm-relay/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Router struct {
	log     *slog.Logger
	service services.IChatService
}

type sendMessageRequest struct {
	Receiver chat.UserID `json:"receiver"`
	Content  string      `json:"content"`
}

type sendMessageResponse struct {
	Message string       `json:"message"`
	Data    chat.Message `json:"data"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRouter wires every route. Everything but "/" requires a verified token,
// the websocket endpoint included.
func NewRouter(log *slog.Logger, service services.IChatService, verifier *auth.TokenVerifier,
	websocket http.Handler, allowedOrigins []string) http.Handler {
	rt := &Router{log: log, service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dm-relay is running"))
	})

	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Handle("/ws", websocket)
		r.Route("/api/messages", func(r chi.Router) {
			r.Post("/send", rt.sendMessage)
			r.Get("/unread", rt.unreadCount)
			r.Put("/read/{senderId}", rt.markAsRead)
		})
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/chat/{userId}", rt.chatHistory)
			r.Get("/online", rt.onlineUsers)
		})
	})
	return r
}

func (rt *Router) sendMessage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var body sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rt.fail(w, r, errors.ErrMalformedEvent)
		return
	}

	message, err := rt.service.SendMessage(r.Context(), user, body.Receiver, body.Content)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.json(w, http.StatusCreated, sendMessageResponse{Message: "Message sent successfully", Data: message})
}

func (rt *Router) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := rt.service.GetUnreadCount(currentUser(r))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.json(w, http.StatusOK, map[string]int{"count": count})
}

func (rt *Router) markAsRead(w http.ResponseWriter, r *http.Request) {
	peer, err := pathUser(r, "senderId")
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	if err := rt.service.MarkAsRead(currentUser(r), peer); err != nil {
		rt.fail(w, r, err)
		return
	}
	rt.json(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	peer, err := pathUser(r, "userId")
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	messages, err := rt.service.GetChatHistory(currentUser(r), peer)
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	rt.json(w, http.StatusOK, messages)
}

func (rt *Router) onlineUsers(w http.ResponseWriter, _ *http.Request) {
	users := rt.service.OnlineUsers()
	if users == nil {
		users = []chat.UserID{}
	}
	rt.json(w, http.StatusOK, map[string][]chat.UserID{"users": users})
}

// pathUser decodes a user id route parameter. chi hands out the escaped
// segment whenever the request carries a RawPath.
func pathUser(r *http.Request, name string) (chat.UserID, error) {
	user, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errors.ErrValidation, name, err)
	}
	return chat.UserID(user), nil
}

func currentUser(r *http.Request) chat.UserID {
	user, _ := auth.UserIDFromContext(r.Context())
	return user
}

func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.log.Error("Request failed", "path", r.URL.Path, "user_id", currentUser(r), "error", err)
	}
	rt.json(w, status, errorResponse{Code: errors.Code(err), Message: err.Error()})
}

func (rt *Router) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.log.Debug("Response not written", "error", err)
	}
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
