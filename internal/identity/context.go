package identity

import "context"

type identityContextKey struct{}

// ContextWith stores the identity in context.
func ContextWith(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext extracts the identity from context. The second return is false
// when no identity was attached.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
