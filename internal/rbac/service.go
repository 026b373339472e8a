package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/backlot-hq/backlot/internal/shared"
)

// Service orchestrates the RBAC admin write paths: role and permission
// management and assignment changes. It never participates in permission
// evaluation; the Evaluator observes its effects on the next read.
type Service struct {
	store AdminStore
	audit *shared.AuditLogger
}

// NewService constructs a Service backed by the provided store. The audit
// logger may be nil, in which case mutations are not audited.
func NewService(store AdminStore, audit *shared.AuditLogger) *Service {
	return &Service{store: store, audit: audit}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role by ID.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.store.DeleteRole(ctx, id)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// EnsurePermission upserts a permission row. Names are validated against the
// declared permission constants here, at the boundary where new rows enter
// the system; evaluation itself stays a plain string comparison.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if !shared.KnownPermission(name) {
		return Permission{}, fmt.Errorf("rbac: unknown permission name %q", name)
	}
	return s.store.UpsertPermission(ctx, name, strings.TrimSpace(description))
}

// SetRolePermissions replaces the permission set of a role, attaching the
// missing edges and detaching the stale ones.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.store.ListRolePermissionIDs(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := s.store.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.store.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AssignGlobalRole grants the role to the user without scoping.
func (s *Service) AssignGlobalRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.store.AssignGlobalRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.assign_global_role", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveGlobalRole revokes the user's global role.
func (s *Service) RemoveGlobalRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.store.RemoveGlobalRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.remove_global_role", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// AssignTeamRole grants the role scoped to one team membership.
func (s *Service) AssignTeamRole(ctx context.Context, actorID, teamMemberID, roleID int64) error {
	if err := s.store.AssignTeamRole(ctx, teamMemberID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.assign_team_role", "team_member", teamMemberID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveTeamRole revokes a team-scoped role from a membership.
func (s *Service) RemoveTeamRole(ctx context.Context, actorID, teamMemberID, roleID int64) error {
	if err := s.store.RemoveTeamRole(ctx, teamMemberID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rbac.remove_team_role", "team_member", teamMemberID, map[string]any{"role_id": roleID})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
