package rbac

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the role-permission graph accessor: pure lookups with no
// business rules. All methods are idempotent reads.
type Repository interface {
	// GlobalRolesForUser returns roles granted via user_roles.
	GlobalRolesForUser(ctx context.Context, userID int64) ([]Role, error)
	// ScopedRolesForUser returns roles granted via team_member_roles where
	// the membership for (userID, teamID) is not disabled.
	ScopedRolesForUser(ctx context.Context, userID, teamID int64) ([]Role, error)
	// PermissionsForRoles returns the union of permissions attached to the
	// given roles. Empty input yields empty output, never "all permissions".
	PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error)
	// TeamIDsForChannel returns the team ids linked to a channel. An unknown
	// channel id yields an empty set.
	TeamIDsForChannel(ctx context.Context, channelID int64) ([]int64, error)
	// GlobalRoleAssignments enumerates a user's global role grants.
	GlobalRoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	// TeamRoleAssignments enumerates a user's role grants within one team.
	TeamRoleAssignments(ctx context.Context, userID, teamID int64) ([]RoleAssignment, error)
}

// PGRepository implements Repository using PostgreSQL. Every query runs under
// a bounded timeout so a slow store propagates as a failure instead of
// hanging the request.
type PGRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewRepository constructs a PostgreSQL repository. A non-positive timeout
// disables the per-query deadline.
func NewRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *PGRepository) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// GlobalRolesForUser returns roles assigned to the user without scoping.
func (r *PGRepository) GlobalRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ScopedRolesForUser returns roles granted through a non-disabled membership
// of the given team.
func (r *PGRepository) ScopedRolesForUser(ctx context.Context, userID, teamID int64) ([]Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN team_member_roles tmr ON tmr.role_id = r.id
		JOIN team_members tm ON tm.id = tmr.team_member_id
		WHERE tm.user_id = $1 AND tm.team_id = $2 AND NOT tm.disabled`, userID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// PermissionsForRoles expands roles into their attached permissions.
func (r *PGRepository) PermissionsForRoles(ctx context.Context, roleIDs []int64) ([]Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.name, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ANY($1)`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// TeamIDsForChannel resolves a channel to its linked team ids.
func (r *PGRepository) TeamIDsForChannel(ctx context.Context, channelID int64) ([]int64, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT team_id FROM team_channels WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var teamIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		teamIDs = append(teamIDs, id)
	}
	return teamIDs, rows.Err()
}

// GlobalRoleAssignments enumerates global role grants with assignment times.
func (r *PGRepository) GlobalRoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at, ur.created_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.Role.ID, &a.Role.Name, &a.Role.Description, &a.Role.CreatedAt, &a.Role.UpdatedAt, &a.AssignedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// TeamRoleAssignments enumerates role grants within one team, including the
// team name for admin listings. Disabled memberships are excluded.
func (r *PGRepository) TeamRoleAssignments(ctx context.Context, userID, teamID int64) ([]RoleAssignment, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at, tmr.created_at, t.name
		FROM roles r
		JOIN team_member_roles tmr ON tmr.role_id = r.id
		JOIN team_members tm ON tm.id = tmr.team_member_id
		JOIN teams t ON t.id = tm.team_id
		WHERE tm.user_id = $1 AND tm.team_id = $2 AND NOT tm.disabled`, userID, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.Role.ID, &a.Role.Name, &a.Role.Description, &a.Role.CreatedAt, &a.Role.UpdatedAt, &a.AssignedAt, &a.TeamName); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
