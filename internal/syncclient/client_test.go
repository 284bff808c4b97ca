package syncclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasco/taskboard-api/internal/realtime"
)

type staticVerifier struct {
	tokens map[string]uuid.UUID
}

func (v *staticVerifier) Verify(_ context.Context, token string) (uuid.UUID, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return uuid.Nil, errors.New("unknown token")
	}
	return userID, nil
}

type agentFixture struct {
	hub *realtime.Hub
	url string
}

func newAgentFixture(t *testing.T, tokens map[string]uuid.UUID) *agentFixture {
	t.Helper()

	hub := realtime.NewHub(&staticVerifier{tokens: tokens}, nil, realtime.Config{})
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
	})

	return &agentFixture{
		hub: hub,
		url: "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func TestAgent_ConnectRequiresCredentials(t *testing.T) {
	t.Parallel()

	agent := New(Config{URL: "ws://localhost:0/ws"})
	err := agent.Connect(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)

	agent = New(Config{URL: "ws://localhost:0/ws", Token: "some-token"})
	err = agent.Connect(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAgent_ConnectAndSync(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fixture := newAgentFixture(t, map[string]uuid.UUID{"good-token": userID})

	agent := New(Config{URL: fixture.url, Token: "good-token", UserID: userID})
	t.Cleanup(func() { _ = agent.Close() })

	require.NoError(t, agent.Connect(context.Background()))
	assert.True(t, agent.IsConnected())
	assert.Equal(t, StateSynced, agent.State())
}

func TestAgent_ConnectRejectedCredential(t *testing.T) {
	t.Parallel()

	fixture := newAgentFixture(t, map[string]uuid.UUID{})

	agent := New(Config{URL: fixture.url, Token: "bogus", UserID: uuid.New()})
	err := agent.Connect(context.Background())

	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, StateDisconnected, agent.State())
}

func TestAgent_AppliesBroadcastEvents(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fixture := newAgentFixture(t, map[string]uuid.UUID{"good-token": userID})

	agent := New(Config{URL: fixture.url, Token: "good-token", UserID: userID})
	t.Cleanup(func() { _ = agent.Close() })
	require.NoError(t, agent.Connect(context.Background()))

	taskID := uuid.New()
	fixture.hub.Broadcast(realtime.EventTaskCreated, map[string]interface{}{
		"task": Task{ID: taskID, Title: "write report", Status: "pending"},
	})

	require.Eventually(t, func() bool {
		_, ok := agent.Tasks().Get(taskID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	fixture.hub.Broadcast(realtime.EventTaskDeleted, map[string]interface{}{
		"taskId": taskID,
	})

	assert.Eventually(t, func() bool {
		return agent.Tasks().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAgent_EmitReachesOtherClients(t *testing.T) {
	t.Parallel()

	alice := uuid.New()
	bob := uuid.New()
	fixture := newAgentFixture(t, map[string]uuid.UUID{
		"alice-token": alice,
		"bob-token":   bob,
	})

	sender := New(Config{URL: fixture.url, Token: "alice-token", UserID: alice})
	t.Cleanup(func() { _ = sender.Close() })
	require.NoError(t, sender.Connect(context.Background()))

	receiver := New(Config{URL: fixture.url, Token: "bob-token", UserID: bob})
	t.Cleanup(func() { _ = receiver.Close() })
	require.NoError(t, receiver.Connect(context.Background()))

	taskID := uuid.New()
	require.NoError(t, sender.Emit(realtime.EventTaskCreated, map[string]interface{}{
		"task": Task{ID: taskID, Title: "shared task"},
	}))

	require.Eventually(t, func() bool {
		_, ok := receiver.Tasks().Get(taskID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// The sender's own view is not touched by its emission; it updates
	// optimistically through its HTTP flow instead.
	_, ok := sender.Tasks().Get(taskID)
	assert.False(t, ok)
}

func TestAgent_EmitWhileDisconnectedIsNoOp(t *testing.T) {
	t.Parallel()

	agent := New(Config{URL: "ws://localhost:0/ws", Token: "t", UserID: uuid.New()})
	assert.NoError(t, agent.Emit(realtime.EventTaskCreated, map[string]string{"x": "y"}))
}

func TestAgent_CloseSuppressesReconnect(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fixture := newAgentFixture(t, map[string]uuid.UUID{"good-token": userID})

	agent := New(Config{
		URL:         fixture.url,
		Token:       "good-token",
		UserID:      userID,
		BaseDelay:   10 * time.Millisecond,
		MaxAttempts: 3,
	})
	require.NoError(t, agent.Connect(context.Background()))

	require.NoError(t, agent.Close())

	assert.Eventually(t, func() bool {
		return agent.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	// A closed agent refuses to connect again.
	err := agent.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAgent_ReconnectsAfterTransportDrop(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fixture := newAgentFixture(t, map[string]uuid.UUID{"good-token": userID})

	agent := New(Config{
		URL:       fixture.url,
		Token:     "good-token",
		UserID:    userID,
		BaseDelay: 20 * time.Millisecond,
		MaxDelay:  50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = agent.Close() })
	require.NoError(t, agent.Connect(context.Background()))

	// Server-side close of every connection simulates a transport drop.
	fixture.hub.CloseAll()

	require.Eventually(t, func() bool {
		return agent.IsConnected()
	}, 3*time.Second, 20*time.Millisecond, "agent should re-establish the connection")

	// The re-established connection applies events again.
	taskID := uuid.New()
	fixture.hub.Broadcast(realtime.EventTaskCreated, map[string]interface{}{
		"task": Task{ID: taskID, Title: "after reconnect"},
	})
	require.Eventually(t, func() bool {
		_, ok := agent.Tasks().Get(taskID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateAuthHandshake, "auth_handshake"},
		{StateSynced, "synced"},
		{StateClosing, "closing"},
		{State(99), "unknown"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.state.String())
	}
}
