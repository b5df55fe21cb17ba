package model

import (
	"context"
	"slices"
)

// Identity is a panel user resolved from a session token.
type Identity struct {
	ID        int64
	Name      string
	RealName  string
	SessionID string
	AuthLevel int
	Roles     []string
	// Super holds every role.
	Super bool
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role string) bool {
	return i.Super || slices.Contains(i.Roles, role)
}

// HasRoles reports whether the identity holds every one of roles.
func (i *Identity) HasRoles(roles ...string) bool {
	for _, r := range roles {
		if !i.HasRole(r) {
			return false
		}
	}
	return true
}

// IdentityLookup resolves a session token for a caller address. Unknown or
// rejected sessions yield nil, nil.
type IdentityLookup interface {
	LookupIdentity(ctx context.Context, token, remoteAddr string) (*Identity, error)
}

// Catalog returns localized strings. Missing keys come back unchanged.
type Catalog interface {
	Get(locale, key string, params map[string]any) string
}
