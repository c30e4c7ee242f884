package auth

import (
	"context"
	"slices"
	"time"
)

// Method names the credential an identity was established with.
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodAPIKey Method = "api_key"
)

// Identity is an authenticated site operator.
type Identity struct {
	// Principal is the user login or key owner.
	Principal string

	// Roles are site roles such as "administrator" or "editor".
	Roles []string

	// Capabilities are granted directly, on top of those the roles carry.
	Capabilities []string

	Method Method

	// Claims holds token claims or key metadata.
	Claims map[string]any

	// ExpiresAt is zero when the credential never expires.
	ExpiresAt time.Time
}

func (id *Identity) HasRole(role string) bool {
	return id != nil && slices.Contains(id.Roles, role)
}

// HasCapability reports a directly granted capability. Role grants are
// resolved by Capabilities.Can.
func (id *Identity) HasCapability(capability string) bool {
	return id != nil && slices.Contains(id.Capabilities, capability)
}

// Valid reports whether id names a principal whose credential has not
// expired at now.
func (id *Identity) Valid(now time.Time) bool {
	return id != nil && id.Principal != "" && (id.ExpiresAt.IsZero() || now.Before(id.ExpiresAt))
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by RequireCapability,
// or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// PrincipalFromContext returns the principal, or "" when unauthenticated.
func PrincipalFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Principal
	}
	return ""
}
