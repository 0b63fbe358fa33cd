package shared

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// ActorID returns the authenticated user id, or 0 for system calls.
func ActorID(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}
