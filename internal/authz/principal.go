package authz

import (
	"context"
	"log/slog"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
)

// Principal is the caller on whose behalf an operation runs.
type Principal struct {
	ID          string
	Roles       []string
	Permissions Set
}

func NewPrincipal(id string, roles []string, permissions Set) *Principal {
	if permissions == nil {
		permissions = NewSet()
	}
	return &Principal{ID: id, Roles: roles, Permissions: permissions}
}

func (p *Principal) LogValue() slog.Value {
	if p == nil {
		return slog.StringValue("anonymous")
	}
	return slog.GroupValue(
		slog.String("id", p.ID),
		slog.Any("roles", p.Roles),
	)
}

// Can reports whether p holds perm through any role or direct grant.
func Can(p *Principal, perm Permission) bool {
	return p != nil && p.Permissions.Has(perm)
}

// selfMutable lists the permissions a principal may skip when acting on its own account.
var selfMutable = map[Permission]bool{
	UpdateUsers:     true,
	ActivateUsers:   true,
	InactivateUsers: true,
}

func IsSelfMutable(perm Permission) bool {
	return selfMutable[perm]
}

// Authorize applies the self-mutation carve-out first, then falls back to Can.
func Authorize(p *Principal, perm Permission, targetUserID string) error {
	if p == nil {
		return internal.ErrMissingToken
	}
	if targetUserID != "" && p.ID == targetUserID && IsSelfMutable(perm) {
		return nil
	}
	if Can(p, perm) {
		return nil
	}
	return internal.ErrPermissionDenied
}

// Require is Authorize without a target, for operations that never allow self-mutation.
func Require(p *Principal, perm Permission) error {
	return Authorize(p, perm, "")
}

type ctxKey struct{}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
