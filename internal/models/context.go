package models

import "context"

type actorContextKey struct{}

// WithActor attaches the identity of whoever triggers a ledger operation
// (admin id, "system", user id) so it can be stamped on transaction metadata.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFrom returns the actor attached to ctx, or "system" if absent.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
