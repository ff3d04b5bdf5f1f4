package handlers

import (
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"projectmeasure/measurements"
)

// Headers set by the upstream authorization layer when the request is not
// authenticated against PocketBase itself.
const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// actorFromEvent resolves the acting user. An authenticated PocketBase
// record wins over the headers; its role comes from the "role" field.
func actorFromEvent(e *core.RequestEvent) measurements.Actor {
	if e.Auth != nil {
		return measurements.Actor{ID: e.Auth.Id, Role: e.Auth.GetString("role")}
	}
	return measurements.Actor{
		ID:   strings.TrimSpace(e.Request.Header.Get(ActorIDHeader)),
		Role: strings.TrimSpace(e.Request.Header.Get(ActorRoleHeader)),
	}
}

// ActorMiddleware stores the acting user in the request context so handlers
// can pass it to the measurement service.
func ActorMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ctx := measurements.WithActor(e.Request.Context(), actorFromEvent(e))
		e.Request = e.Request.WithContext(ctx)
		return e.Next()
	}
}

// requestActor returns the actor stored by ActorMiddleware, resolving it
// directly when the middleware did not run.
func requestActor(e *core.RequestEvent) measurements.Actor {
	if a, ok := measurements.ActorFromContext(e.Request.Context()); ok {
		return a
	}
	return actorFromEvent(e)
}
