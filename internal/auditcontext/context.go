package auditcontext

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit.request_id"
	actorKey     ctxKey = "audit.actor"
)

// DefaultActor is recorded when a write carries no caller identity.
const DefaultActor = "system"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, strings.TrimSpace(actor))
}

// ActorFromContext returns the caller identity, falling back to DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultActor
	}
	value, _ := ctx.Value(actorKey).(string)
	if value == "" {
		return DefaultActor
	}
	return value
}
