package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Event kinds carried in the wire envelope. Domain kinds beyond these are
// forwarded as-is; the set is extensible by construction.
const (
	EventAuth      = "auth"
	EventAuthOK    = "auth.ok"
	EventAuthError = "auth.error"
	EventError     = "error"

	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskDeleted       = "task.deleted"
	EventTaskStatusChanged = "task.status_changed"
	EventTaskAssigned      = "task.assigned"
)

// Envelope is the wire structure carrying one unit of communication in
// either direction: {"event": <string>, "data": <object>}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw bytes into an Envelope. The event field may
// be empty; callers decide how to treat a missing kind.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	return env, nil
}

// EncodeEnvelope serializes an event and payload into wire bytes. The
// payload is marshalled once; broadcast reuses the same bytes for every
// recipient.
func EncodeEnvelope(event string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// AuthPayload is the client-supplied data of an auth event.
type AuthPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId,omitempty"`
}

// AuthOKPayload acknowledges a successful handshake.
type AuthOKPayload struct {
	UserID uuid.UUID `json:"userId"`
}

// ErrorPayload carries a human-readable reason on error and auth.error
// events.
type ErrorPayload struct {
	Message string `json:"message"`
}
