package rbac

import (
	"context"
	"time"
)

// Role represents a high-level permission grouping. A role's meaning is
// constant everywhere; only its assignment is scoped (globally via user_roles,
// per team via team_member_roles).
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability identified by a unique name.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// RoleAssignment describes a role granted to a user, for admin listings.
// TeamName is populated only for team-scoped assignments.
type RoleAssignment struct {
	Role       Role
	AssignedAt time.Time
	TeamName   string
}

// Principal describes the authenticated actor attached to a request after the
// guard has validated its session.
type Principal struct {
	UserID    int64
	SessionID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal set by the guard, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
