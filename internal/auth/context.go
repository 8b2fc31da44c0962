package auth

import (
	"context"
)

// UserContext holds the authenticated admin for a request
type UserContext struct {
	UserID    string
	Username  string
	SessionID string
}

type contextKey string

const (
	userContextKey contextKey = "userContext"
	userSlotKey    contextKey = "userSlot"
)

// WithUserContext adds user context to the context. A slot registered with
// WithUserSlot further up the chain receives a copy.
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	if slot, ok := ctx.Value(userSlotKey).(*UserContext); ok && user != nil {
		*slot = *user
	}
	return context.WithValue(ctx, userContextKey, user)
}

// WithUserSlot returns a context carrying an empty UserContext that is filled
// in when a handler further down authenticates the request.
func WithUserSlot(ctx context.Context) (context.Context, *UserContext) {
	slot := &UserContext{}
	return context.WithValue(ctx, userSlotKey, slot), slot
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// Username returns the authenticated username, or "" for anonymous requests
func Username(ctx context.Context) string {
	if u, ok := FromContext(ctx); ok {
		return u.Username
	}
	return ""
}
