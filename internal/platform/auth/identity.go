package auth

import (
	"context"
	"slices"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Workshop roles carried in the Firebase custom claims.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
	RoleReception  = "reception"
	RolePurchasing = "purchasing"
	RoleSales      = "sales"
)

// KnownRoles lists every role the planner understands.
var KnownRoles = []string{RoleAdmin, RoleManager, RoleTechnician, RoleReception, RolePurchasing, RoleSales}

// Identity is the employee behind a verified ID token. Roles are lower-cased and unique.
type Identity struct {
	UID   string
	Email string
	Name  string
	Roles []string

	token *firebaseauth.Token
}

// Token returns the decoded ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, role := range roles {
		if role = normaliseRole(role); role != "" && slices.Contains(i.Roles, role) {
			return true
		}
	}
	return false
}

// RoleList returns a copy of the roles; nil when there are none.
func (i *Identity) RoleList() []string {
	if i == nil || len(i.Roles) == 0 {
		return nil
	}
	return slices.Clone(i.Roles)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by RequireRoles. Identities without a
// UID are treated as absent.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*Identity)
	if identity == nil || strings.TrimSpace(identity.UID) == "" {
		return nil, false
	}
	return identity, true
}

// ActorID is the caller's UID, or "" on unauthenticated routes.
func ActorID(ctx context.Context) string {
	if identity, ok := IdentityFromContext(ctx); ok {
		return strings.TrimSpace(identity.UID)
	}
	return ""
}
