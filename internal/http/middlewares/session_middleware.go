package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/eduloan/internal/actorctx"
	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/domain/session"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type SessionResolver interface {
	Session(ctx context.Context, token string) (*session.Session, error)
}

// LoadSession resolves the bearer token, when present, into a session and
// stores it on the gin context and the request context. Anonymous requests
// pass through untouched; the gate decides what they may reach.
func LoadSession(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		s, err := resolver.Session(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, apperr.ErrOperationFailed) {
				abort(c, http.StatusServiceUnavailable, "unavailable", "Session store is unavailable. Please retry.", nil)
				return
			}
			// unknown, expired or revoked tokens are treated as anonymous
			c.Next()
			return
		}

		c.Set(CtxSession, s)
		c.Request = c.Request.WithContext(actorctx.WithSession(c.Request.Context(), s))
		c.Next()
	}
}

func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// SessionFromContext returns nil for anonymous requests.
func SessionFromContext(c *gin.Context) *session.Session {
	v, ok := c.Get(CtxSession)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

func AccountIDFromContext(c *gin.Context) (string, bool) {
	s := SessionFromContext(c)
	if !s.Authenticated() {
		return "", false
	}
	return s.Account.ID, true
}
