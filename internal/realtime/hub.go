package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds the hub's tunables.
type Config struct {
	// AuthTimeout closes connections that have not completed the auth
	// handshake within the deadline. Zero disables the deadline.
	AuthTimeout time.Duration

	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize int

	// CheckOrigin overrides the upgrader's origin check. Nil accepts any
	// origin, matching a deployment where the API and client are served
	// from different hosts.
	CheckOrigin func(r *http.Request) bool
}

// Hub owns the connection lifecycle: it accepts WebSocket upgrades, runs
// the authentication handshake, and fans domain events out to every
// authenticated connection except the sender.
type Hub struct {
	registry *Registry
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
	cfg      Config
}

// NewHub creates a Hub using the given verifier for the auth handshake.
func NewHub(verifier TokenVerifier, logger *slog.Logger, cfg Config) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		registry: NewRegistry(),
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With("component", "realtime_hub"),
		cfg:    cfg,
	}
}

// Registry exposes the hub's connection registry, mainly for stats and
// tests.
func (h *Hub) Registry() *Registry { return h.registry }

// HandleWS upgrades the HTTP request to a WebSocket connection and serves
// it until the transport closes. Intended to be mounted as an
// http.HandlerFunc.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newConn(sock, h.cfg.SendBufferSize)
	h.registry.Register(c)

	h.logger.Debug("connection accepted", "conn_id", c.ID(), "remote", r.RemoteAddr)

	go c.writePump(h.logger)
	h.readLoop(r.Context(), c)
}

// Broadcast fans an event out to every authenticated connection. Used by
// server-side publishers; events arriving over a socket go through the
// read loop instead so the sender is excluded.
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", "event", event, "error", err)
		return
	}
	h.broadcast(event, payload, nil)
}

// CloseAll closes every open connection, authenticated or not. Called
// during shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.registry.AllConnections() {
		c.close()
	}
}

// readLoop processes inbound frames for one connection. Events from a
// single connection are handled in receipt order. The loop owns the
// connection's auth state as an explicit value rather than a mutable
// attribute on the connection itself.
func (h *Hub) readLoop(ctx context.Context, c *Conn) {
	defer func() {
		h.registry.Unregister(c)
		c.close()
		h.logger.Debug("connection closed", "conn_id", c.ID())
	}()

	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	// A connection that never authenticates is shed after the deadline so
	// it cannot occupy registry resources indefinitely.
	var authTimer *time.Timer
	if h.cfg.AuthTimeout > 0 {
		authTimer = time.AfterFunc(h.cfg.AuthTimeout, func() {
			h.logger.Debug("auth deadline elapsed, closing connection", "conn_id", c.ID())
			c.close()
		})
		defer authTimer.Stop()
	}

	authenticated := false
	var principal uuid.UUID

	for {
		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			return
		}

		env, err := DecodeEnvelope(raw)
		if err != nil {
			// Malformed traffic is reported but does not terminate the
			// connection.
			h.sendEvent(c, EventError, ErrorPayload{Message: "Invalid message format"})
			continue
		}

		if env.Event == EventAuth {
			userID, ok := h.handleAuth(ctx, c, env.Data)
			if !ok {
				return
			}
			authenticated = true
			principal = userID
			if authTimer != nil {
				authTimer.Stop()
			}
			continue
		}

		if !authenticated {
			// Out-of-order client messages are tolerated; the connection
			// stays open and may still authenticate.
			h.sendEvent(c, EventError, ErrorPayload{Message: "Unauthenticated"})
			continue
		}

		if env.Event == "" {
			h.sendEvent(c, EventError, ErrorPayload{Message: "Missing event"})
			continue
		}

		h.logger.Debug("broadcasting event",
			"event", env.Event,
			"conn_id", c.ID(),
			"user_id", principal)
		h.broadcast(env.Event, env.Data, c)
	}
}

// handleAuth runs the authentication procedure. On failure it emits
// auth.error and closes the connection, returning ok=false; the caller
// must stop reading.
func (h *Hub) handleAuth(ctx context.Context, c *Conn, data json.RawMessage) (uuid.UUID, bool) {
	var payload AuthPayload
	if len(data) > 0 {
		// A malformed auth payload is treated the same as a missing token.
		_ = json.Unmarshal(data, &payload)
	}

	if payload.Token == "" {
		h.rejectAuth(c, "Missing token")
		return uuid.Nil, false
	}

	userID, err := h.verifier.Verify(ctx, payload.Token)
	if err != nil {
		h.logger.Debug("token verification failed", "conn_id", c.ID(), "error", err)
		h.rejectAuth(c, "Invalid token")
		return uuid.Nil, false
	}

	// A client asserting an identity that does not match its own token is
	// rejected outright.
	if payload.UserID != "" {
		claimed, err := uuid.Parse(payload.UserID)
		if err != nil || claimed != userID {
			h.rejectAuth(c, "Token does not match user")
			return uuid.Nil, false
		}
	}

	h.registry.Authenticate(c, userID)
	h.sendEvent(c, EventAuthOK, AuthOKPayload{UserID: userID})

	h.logger.Info("connection authenticated", "conn_id", c.ID(), "user_id", userID)
	return userID, true
}

func (h *Hub) rejectAuth(c *Conn, reason string) {
	h.sendEvent(c, EventAuthError, ErrorPayload{Message: reason})
	// Give the write pump a moment to flush the rejection before the
	// close frame; a dropped frame here is acceptable best-effort.
	time.Sleep(10 * time.Millisecond)
	c.close()
}

// broadcast serializes the envelope once and enqueues it on every
// authenticated connection except exclude. Individual send failures are
// expected (a recipient may be mid-close) and never abort the fan-out.
func (h *Hub) broadcast(event string, data json.RawMessage, exclude *Conn) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal broadcast frame", "event", event, "error", err)
		return
	}

	for _, recipient := range h.registry.ConnectionsExcluding(exclude) {
		if !recipient.enqueue(frame) {
			h.logger.Debug("dropped frame for slow or closed connection",
				"event", event,
				"conn_id", recipient.ID())
		}
	}
}

// sendEvent unicasts an event to one connection, best-effort.
func (h *Hub) sendEvent(c *Conn, event string, data interface{}) {
	frame, err := EncodeEnvelope(event, data)
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	if !c.enqueue(frame) {
		h.logger.Debug("dropped event for slow or closed connection",
			"event", event,
			"conn_id", c.ID())
	}
}
