package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound is what the browser shim relays from the host page.
type Inbound struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// Outbound tells the shim which origin to post message to.
type Outbound struct {
	TargetOrigin string  `json:"targetOrigin"`
	Message      Message `json:"message"`
}

// Handler receives validated inbound messages for a session.
type Handler func(ctx context.Context, sessionID string, msg Message)

type HubOptions struct {
	// AllowedOrigins are trusted for inbound messages. HostOrigin is added
	// automatically.
	AllowedOrigins []string
	HostOrigin     string
	// AllowBroadcast permits "*" as target when no host origin is set.
	AllowBroadcast bool
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// Hub keeps one shim connection per session.
type Hub struct {
	validator      Validator
	hostOrigin     string
	allowBroadcast bool
	writeTimeout   time.Duration
	logger         *slog.Logger
	upgrader       websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*peer
}

type peer struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	origins := append([]string{}, opts.AllowedOrigins...)
	if opts.HostOrigin != "" {
		origins = append(origins, opts.HostOrigin)
	}

	return &Hub{
		validator:      NewValidator(origins...),
		hostOrigin:     normalizeOrigin(opts.HostOrigin),
		allowBroadcast: opts.AllowBroadcast,
		writeTimeout:   writeTimeout,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*peer),
	}
}

func (h *Hub) Validator() Validator {
	return h.validator
}

// TargetOrigin reports where outbound messages may be posted.
func (h *Hub) TargetOrigin() (string, bool) {
	if h.hostOrigin != "" {
		return h.hostOrigin, true
	}
	if h.allowBroadcast {
		return "*", true
	}
	return "", false
}

// Serve upgrades the request and relays frames until the shim disconnects.
// A newer connection for the same session replaces the older one.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, handle Handler) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	p := &peer{ws: ws}

	h.mu.Lock()
	old := h.conns[sessionID]
	h.conns[sessionID] = p
	h.mu.Unlock()
	if old != nil {
		old.ws.Close()
	}

	defer func() {
		h.mu.Lock()
		if h.conns[sessionID] == p {
			delete(h.conns, sessionID)
		}
		h.mu.Unlock()
		ws.Close()
	}()

	if err := h.Publish(sessionID, Ready()); err != nil {
		return err
	}

	ctx := r.Context()
	for {
		var in Inbound
		if err := ws.ReadJSON(&in); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				return nil
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.logger.Debug("bridge frame ignored", "session_id", sessionID, "err", err)
				continue
			}
			return err
		}

		msg, err := h.validator.Decode(in.Origin, in.Data)
		if err != nil {
			h.logger.Debug("bridge message ignored", "session_id", sessionID, "origin", in.Origin, "err", err)
			continue
		}
		handle(ctx, sessionID, msg)
	}
}

// Publish sends msg to the session's shim. Without a connection or a
// permitted target origin the message is dropped.
func (h *Hub) Publish(sessionID string, msg Message) error {
	target, ok := h.TargetOrigin()
	if !ok {
		h.logger.Debug("bridge publish skipped, no host origin", "session_id", sessionID, "type", msg.Type)
		return nil
	}

	h.mu.Lock()
	p := h.conns[sessionID]
	h.mu.Unlock()
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return p.ws.WriteJSON(Outbound{TargetOrigin: target, Message: msg})
}

// Connected reports whether a shim is attached to the session.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[sessionID]
	return ok
}
