package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/devicehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

// Actor is the authenticated caller as established by Auth.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom reports false when the request never passed through Auth.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.ID != uuid.Nil
}

// ActorID is the handler-side accessor; a missing actor is an authentication
// failure rather than a server error.
func ActorID(ctx context.Context) (uuid.UUID, error) {
	actor, ok := ActorFrom(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor.ID, nil
}
