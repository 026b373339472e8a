package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/backlot-hq/backlot/internal/platform/httpx"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// AdminStore covers the write paths external admin flows use. The evaluator
// never calls these; it only observes their effects on the next read.
type AdminStore interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, name, description string) (Permission, error)
	ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error

	AssignGlobalRole(ctx context.Context, userID, roleID int64) error
	RemoveGlobalRole(ctx context.Context, userID, roleID int64) error
	AssignTeamRole(ctx context.Context, teamMemberID, roleID int64) error
	RemoveTeamRole(ctx context.Context, teamMemberID, roleID int64) error
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
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

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, name, description, created_at, updated_at`, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, httpx.ErrDuplicate
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, created_at, updated_at`, id, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role by ID. Returns ErrNotFound if nothing was deleted.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPermissions returns all permissions ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
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

// UpsertPermission inserts a permission or refreshes its description.
func (r *PGRepository) UpsertPermission(ctx context.Context, name, description string) (Permission, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	var perm Permission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, name, description`, name, description).
		Scan(&perm.ID, &perm.Name, &perm.Description)
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// ListRolePermissionIDs returns ids of permissions attached to a role.
func (r *PGRepository) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AttachPermission links a permission to a role. The (role, permission) pair
// is unique; re-attaching is a no-op.
func (r *PGRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

// DetachPermission unlinks a permission from a role.
func (r *PGRepository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// AssignGlobalRole grants a role to a user everywhere.
func (r *PGRepository) AssignGlobalRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	return err
}

// RemoveGlobalRole revokes a user's global role.
func (r *PGRepository) RemoveGlobalRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// AssignTeamRole grants a role scoped to one team membership.
func (r *PGRepository) AssignTeamRole(ctx context.Context, teamMemberID, roleID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_member_roles (team_member_id, role_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (team_member_id, role_id) DO NOTHING`, teamMemberID, roleID)
	return err
}

// RemoveTeamRole revokes a team-scoped role from a membership.
func (r *PGRepository) RemoveTeamRole(ctx context.Context, teamMemberID, roleID int64) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx, `DELETE FROM team_member_roles WHERE team_member_id = $1 AND role_id = $2`, teamMemberID, roleID)
	return err
}

var _ AdminStore = (*PGRepository)(nil)
