package browserprocess

import "context"

type ownerKey struct{}

// WithOwner names who launches browsers under ctx, such as a k6 VU.
// ForceProcessShutdown can then be scoped to that owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the owner stored in ctx, or "".
func Owner(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
