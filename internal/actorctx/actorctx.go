package actorctx

import (
	"context"

	"github.com/geocoder89/eduloan/internal/domain/session"
)

type ctxKey string

const keySession ctxKey = "session"

func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, keySession, s)
}

// SessionFrom returns the session attached to ctx, or nil when the caller is anonymous.
func SessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(keySession).(*session.Session)
	return s
}

func AccountIDFrom(ctx context.Context) (string, bool) {
	s := SessionFrom(ctx)
	if !s.Authenticated() {
		return "", false
	}
	return s.Account.ID, s.Account.ID != ""
}
