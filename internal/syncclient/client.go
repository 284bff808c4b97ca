package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avelasco/taskboard-api/internal/realtime"
)

// State enumerates the agent's connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthHandshake
	StateSynced
	StateClosing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthHandshake:
		return "auth_handshake"
	case StateSynced:
		return "synced"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Agent errors
var (
	// ErrMissingCredentials indicates the agent was asked to connect
	// without a user identity or token.
	ErrMissingCredentials = errors.New("user ID and token are required to connect")

	// ErrAuthRejected indicates the server rejected the credential. The
	// agent does not reconnect after a rejection; reconnection is for
	// transport drops, not bad credentials.
	ErrAuthRejected = errors.New("authentication rejected by server")

	// ErrClosed indicates the agent has been intentionally closed.
	ErrClosed = errors.New("agent is closed")
)

const (
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 5 * time.Second
	defaultMaxAttempts = 5
	handshakeTimeout   = 10 * time.Second
	writeTimeout       = 10 * time.Second
)

// Config holds the agent's connection settings.
type Config struct {
	// URL of the realtime endpoint, e.g. ws://localhost:8080/ws.
	URL string

	// Token is the bearer credential sent in the auth handshake.
	Token string

	// UserID is the identity the token was issued for; the server
	// cross-checks it against the verified token.
	UserID uuid.UUID

	// BaseDelay, MaxDelay, and MaxAttempts parameterize the reconnect
	// policy: delay = min(attempt x BaseDelay, MaxDelay), giving up after
	// MaxAttempts failed attempts. Zero values select the defaults.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	Logger *slog.Logger
}

// Agent maintains the realtime connection and the reconciled local task
// view. A zero Agent is not usable; create one with New.
type Agent struct {
	cfg    Config
	logger *slog.Logger
	tasks  *TaskState

	mu      sync.Mutex
	state   State
	sock    *websocket.Conn
	closing bool

	writeMu sync.Mutex
}

// New creates an Agent. Connect must be called to establish the link.
func New(cfg Config) *Agent {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Agent{
		cfg:    cfg,
		logger: logger.With("component", "sync_agent"),
		tasks:  NewTaskState(),
	}
}

// Tasks exposes the agent's local task view.
func (a *Agent) Tasks() *TaskState { return a.tasks }

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsConnected reports whether the agent has completed the handshake and
// is applying events.
func (a *Agent) IsConnected() bool {
	return a.State() == StateSynced
}

// Connect dials the realtime endpoint and runs the auth handshake. On
// success the agent enters StateSynced and applies inbound events until
// the transport drops, after which it reconnects with capped backoff.
// Returns ErrAuthRejected when the server refuses the credential; the
// caller must not simply retry in that case.
func (a *Agent) Connect(ctx context.Context) error {
	if a.cfg.Token == "" || a.cfg.UserID == uuid.Nil {
		return ErrMissingCredentials
	}

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return ErrClosed
	}
	a.state = StateConnecting
	a.mu.Unlock()

	return a.dialAndServe(ctx)
}

func (a *Agent) dialAndServe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	sock, _, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		a.setState(StateDisconnected)
		return fmt.Errorf("failed to dial %s: %w", a.cfg.URL, err)
	}

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		_ = sock.Close()
		return ErrClosed
	}
	a.sock = sock
	a.state = StateAuthHandshake
	a.mu.Unlock()

	if err := a.handshake(sock); err != nil {
		_ = sock.Close()
		a.setState(StateDisconnected)
		return err
	}

	a.setState(StateSynced)
	a.logger.Info("realtime connection established", "user_id", a.cfg.UserID)

	go a.readLoop(sock)
	return nil
}

// handshake sends the auth event and waits for the server's verdict.
func (a *Agent) handshake(sock *websocket.Conn) error {
	frame, err := realtime.EncodeEnvelope(realtime.EventAuth, realtime.AuthPayload{
		Token:  a.cfg.Token,
		UserID: a.cfg.UserID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode auth event: %w", err)
	}

	_ = sock.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := sock.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send auth event: %w", err)
	}

	_ = sock.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = sock.SetReadDeadline(time.Time{}) }()

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			return fmt.Errorf("connection lost during handshake: %w", err)
		}

		env, err := realtime.DecodeEnvelope(raw)
		if err != nil {
			continue
		}

		switch env.Event {
		case realtime.EventAuthOK:
			return nil
		case realtime.EventAuthError:
			var reason realtime.ErrorPayload
			_ = json.Unmarshal(env.Data, &reason)
			a.logger.Warn("authentication rejected", "reason", reason.Message)
			return fmt.Errorf("%w: %s", ErrAuthRejected, reason.Message)
		default:
			// A broadcast may arrive between our auth and the server's
			// reply; apply it and keep waiting.
			a.tasks.Apply(env.Event, env.Data)
		}
	}
}

// readLoop applies inbound events until the transport drops, then hands
// off to the reconnect loop unless the drop was an intentional close.
func (a *Agent) readLoop(sock *websocket.Conn) {
	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			break
		}

		env, err := realtime.DecodeEnvelope(raw)
		if err != nil {
			a.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		a.tasks.Apply(env.Event, env.Data)
	}

	a.mu.Lock()
	intentional := a.closing
	a.sock = nil
	a.state = StateDisconnected
	a.mu.Unlock()

	if intentional {
		return
	}

	a.logger.Warn("realtime connection lost, reconnecting")
	a.reconnect()
}

// reconnect retries the connection with capped backoff:
// delay = min(attempt x base, max), up to MaxAttempts attempts. It gives
// up after a credential rejection or when the attempts are exhausted;
// the caller re-triggers by calling Connect again.
func (a *Agent) reconnect() {
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		delay := time.Duration(attempt) * a.cfg.BaseDelay
		if delay > a.cfg.MaxDelay {
			delay = a.cfg.MaxDelay
		}
		time.Sleep(delay)

		a.mu.Lock()
		if a.closing {
			a.mu.Unlock()
			return
		}
		a.state = StateConnecting
		a.mu.Unlock()

		err := a.dialAndServe(context.Background())
		if err == nil {
			return
		}
		if errors.Is(err, ErrAuthRejected) || errors.Is(err, ErrClosed) {
			return
		}

		a.logger.Warn("reconnect attempt failed",
			"attempt", attempt,
			"max_attempts", a.cfg.MaxAttempts,
			"error", err)
	}

	a.logger.Error("giving up on reconnection", "attempts", a.cfg.MaxAttempts)
}

// Emit sends a domain event over the connection. When the transport is
// not open this is a silent no-op: there is no queuing, matching the
// at-least-once, no-replay delivery model.
func (a *Agent) Emit(event string, data interface{}) error {
	a.mu.Lock()
	sock := a.sock
	open := a.state == StateSynced
	a.mu.Unlock()

	if !open || sock == nil {
		return nil
	}

	frame, err := realtime.EncodeEnvelope(event, data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sock.WriteMessage(websocket.TextMessage, frame)
}

// Close tears the connection down intentionally and suppresses
// reconnection.
func (a *Agent) Close() error {
	a.mu.Lock()
	a.closing = true
	a.state = StateClosing
	sock := a.sock
	a.mu.Unlock()

	if sock != nil {
		_ = sock.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return sock.Close()
	}

	a.setState(StateDisconnected)
	return nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
