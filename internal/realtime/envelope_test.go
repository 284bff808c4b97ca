package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	env, err := DecodeEnvelope([]byte(`{"event":"task.created","data":{"taskId":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventTaskCreated, env.Event)
	assert.JSONEq(t, `{"taskId":"x"}`, string(env.Data))

	// Event may be absent; the caller decides how to treat it.
	env, err = DecodeEnvelope([]byte(`{"data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, env.Event)

	_, err = DecodeEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEncodeEnvelope(t *testing.T) {
	t.Parallel()

	frame, err := EncodeEnvelope(EventError, ErrorPayload{Message: "Unauthenticated"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"message":"Unauthenticated"}}`, string(frame))
}
