package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelasco/taskboard-api/internal/api/shared"
	"github.com/avelasco/taskboard-api/internal/ratelimit"
)

// RateLimitMiddleware throttles requests per caller identity. Requests
// from authenticated users count against their user ID; anonymous
// requests count against a hash of their originating address.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware backed by the
// given limiter.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit enforces the rate limit before passing the request on. Every
// response carries X-RateLimit-* headers describing the caller's budget.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.limiter.Admit(callerIdentity(r), time.Now())

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.Capacity()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			message := fmt.Sprintf("Too many requests. Max %d requests per %d seconds",
				m.limiter.Capacity(), int(m.limiter.Window().Seconds()))
			shared.RespondWithJSON(w, r, http.StatusTooManyRequests, shared.ErrorResponse{
				Error:   "Rate limit exceeded",
				Message: message,
				TraceID: shared.GetTraceID(r.Context()),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// callerIdentity picks the bucket key for a request. The authenticated
// principal wins when present so one user's quota follows them across
// addresses; otherwise the client address is hashed so raw IPs never
// end up as map keys or in logs.
func callerIdentity(r *http.Request) string {
	if userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID); ok && userID != uuid.Nil {
		return "user:" + userID.String()
	}
	return "ip:" + hashAddr(clientAddr(r))
}

func clientAddr(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// Only the first entry is the client; the rest are proxies.
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func hashAddr(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}
