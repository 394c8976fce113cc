package app

import (
	"context"
	"strings"
)

// ActorType classifies who issued a local mutation.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAgent  ActorType = "agent"
	ActorSystem ActorType = "system"
)

// Actor carries normalized caller identity for mutation attribution in logs.
type Actor struct {
	ID   string
	Type ActorType
}

// actorContextKey stores context keys for actor values.
type actorContextKey struct{}

// WithActor attaches a normalized actor to context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, normalizeActor(actor))
}

// ActorFromContext returns the actor when present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

func normalizeActor(actor Actor) Actor {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Type = ActorType(strings.TrimSpace(strings.ToLower(string(actor.Type))))
	switch actor.Type {
	case ActorUser, ActorAgent, ActorSystem:
	default:
		actor.Type = ActorUser
	}
	return actor
}
