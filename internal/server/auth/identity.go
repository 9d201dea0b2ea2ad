package auth

import (
	"context"
	"slices"
)

// Authentication methods.
const (
	MethodBearer     = "bearer"
	MethodClientCert = "client_cert"
)

// Identity is an authenticated principal.
type Identity struct {
	Subject string
	Method  string
	Roles   []string
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(i.Roles, r) {
			return true
		}
	}
	return false
}

type contextKey string

const identityKey contextKey = "auth.identity"

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}
