package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/wishlist/internal/model"
	"github.com/sakif/wishlist/internal/service"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
	// Clients never send anything meaningful; reads only drain control frames.
	maxClientMessage = 512
	eventBuffer      = 8
)

// authEvent is pushed to the browser whenever the session's identity
// changes. User is null when signed out.
type authEvent struct {
	Type string      `json:"type"`
	User *model.User `json:"user"`
}

// EventsHandler pushes identity changes to open tabs over a websocket.
//
// Each connection subscribes to its browser session's identity Provider. The
// first message is the current identity, followed by one message per
// sign-in or sign-out made from any tab of the same browser.
type EventsHandler struct {
	auth     *service.AuthService
	upgrader websocket.Upgrader
	secure   bool
	logger   *slog.Logger
}

// NewEventsHandler creates an EventsHandler. allowedOrigin, when set, is the
// only Origin header accepted on the upgrade request.
func NewEventsHandler(authSvc *service.AuthService, allowedOrigin string, secure bool, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		auth: authSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		secure: secure,
		logger: logger,
	}
}

// HandleEvents upgrades the connection and streams identity changes.
//
// HTTP: GET /api/session/events (websocket)
//
// Listeners run synchronously inside sign-in and sign-out, so the listener
// only queues the event. A writer goroutine owns all writes to the
// connection; a slow tab drops events instead of stalling other tabs.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var header http.Header
	sid := ""
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		sid = cookie.Value
	} else {
		// The upgrade response is written by the websocket library, so the
		// cookie has to travel in its header rather than through w.
		cookie := newSessionCookie(h.secure)
		sid = cookie.Value
		header = http.Header{"Set-Cookie": {cookie.String()}}
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	events := make(chan authEvent, eventBuffer)
	unsubscribe, err := h.auth.Subscribe(r.Context(), sid, func(user *model.User) {
		select {
		case events <- authEvent{Type: "auth", User: user}:
		default:
			h.logger.Warn("dropping identity event for slow client")
		}
	})
	if err != nil {
		h.logger.Error("subscribing to session", slog.String("error", err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer unsubscribe()

	done := make(chan struct{})
	go h.writeLoop(conn, events, done)

	// The read loop only notices the client going away.
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
}

// writeLoop sends queued events and keep-alive pings until done is closed or
// a write fails.
func (h *EventsHandler) writeLoop(conn *websocket.Conn, events <-chan authEvent, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
		}
	}
}
