package measurements

import "context"

// Actor is the user performing a mutation. Role is an opaque identifier
// supplied by the authorization layer.
type Actor struct {
	ID   string
	Role string
}

type actorKey struct{}

// WithActor stores a on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
