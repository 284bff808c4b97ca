package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/service/auth"
)

// TokenVerifier validates a bearer credential and returns the stable user
// identity it was issued for. Implementations fail closed: any invalid,
// expired, or malformed token yields an error, never a panic.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// jwtVerifier adapts auth.JWTService to the TokenVerifier interface.
type jwtVerifier struct {
	jwt auth.JWTService
}

// NewJWTVerifier wraps the application's JWT service as a TokenVerifier
// for the WebSocket handshake.
func NewJWTVerifier(svc auth.JWTService) TokenVerifier {
	return &jwtVerifier{jwt: svc}
}

func (v *jwtVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := v.jwt.ValidateToken(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, auth.ErrInvalidToken
	}
	return claims.UserID, nil
}
