package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	user, err := NewUser("alice@example.com", "password123", "Alice")
	require.NoError(t, err)

	assert.NotEqual(t, "", user.ID.String())
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "password123", user.Password)
	assert.Empty(t, user.HashedPassword)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestNewUser_NameDefaultsToEmailLocalPart(t *testing.T) {
	t.Parallel()

	user, err := NewUser("bob@example.com", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Name)
}

func TestNewUser_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{
			name:     "empty email",
			email:    "",
			password: "password123",
			wantErr:  ErrEmptyEmail,
		},
		{
			name:     "invalid email",
			email:    "not-an-email",
			password: "password123",
			wantErr:  ErrInvalidEmail,
		},
		{
			name:     "password too short",
			email:    "alice@example.com",
			password: "short",
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "password too long",
			email:    "alice@example.com",
			password: strings.Repeat("x", 73),
			wantErr:  ErrPasswordTooLong,
		},
		{
			name:     "empty password",
			email:    "alice@example.com",
			password: "",
			wantErr:  ErrEmptyPassword,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewUser(tt.email, tt.password, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUser_ValidateLoadedFromStorage(t *testing.T) {
	t.Parallel()

	// A stored user has no plaintext password, only the hash.
	user, err := NewUser("alice@example.com", "password123", "Alice")
	require.NoError(t, err)

	user.Password = ""
	user.HashedPassword = "$2a$10$somethinghashed"
	assert.NoError(t, user.Validate())

	user.HashedPassword = ""
	assert.ErrorIs(t, user.Validate(), ErrEmptyPassword)
}
