package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor stores the acting principal in context. The route layer sets
// this once per request after authenticating the session.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorFromContext retrieves the acting principal.
// Returns uuid.Nil and false if not present.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey).(uuid.UUID)
	return id, ok
}
