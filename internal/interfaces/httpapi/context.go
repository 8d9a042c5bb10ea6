package httpapi

import (
	"context"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

type contextKey string

const identityContextKey contextKey = "session_identity"

func withIdentity(ctx context.Context, identity session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func identityFromContext(ctx context.Context) (session.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(session.Identity)
	return identity, ok
}
