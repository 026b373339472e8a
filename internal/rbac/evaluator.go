package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Evaluator answers permission checks by combining globally assigned roles
// with team-scoped ones. It is stateless; every call reads fresh from the
// repository, so two identical calls with no intervening mutation always
// agree. A repository failure propagates as an error, never as a deny.
type Evaluator struct {
	repo   Repository
	scopes *Resolver
}

// NewEvaluator constructs an Evaluator backed by the given repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, scopes: NewResolver(repo)}
}

// Can reports whether the user holds the named permission within scope.
// Global and scoped role lookups have no ordering dependency and are issued
// concurrently, then joined before the permission expansion. An unknown
// permission name is not an error; it can simply never match.
func (e *Evaluator) Can(ctx context.Context, userID int64, permission string, scope Scope) (bool, error) {
	roleIDs, err := e.collectRoleIDs(ctx, userID, scope)
	if err != nil {
		return false, err
	}
	perms, err := e.repo.PermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Name == permission {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission checks global permissions first and short-circuits without
// touching scope data when they already grant the permission. Only when the
// global check fails and a channel id is given does it evaluate the
// channel-scoped grants. The final boolean agrees with Can; the evaluation
// order differs, which matters on the read-hot global path.
func (e *Evaluator) HasPermission(ctx context.Context, userID int64, permission string, channelID int64) (bool, error) {
	global, err := e.GlobalPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range global {
		if name == permission {
			return true, nil
		}
	}
	if channelID == 0 {
		return false, nil
	}
	scoped, err := e.ChannelPermissions(ctx, userID, channelID)
	if err != nil {
		return false, err
	}
	for _, name := range scoped {
		if name == permission {
			return true, nil
		}
	}
	return false, nil
}

// GlobalPermissions returns the names of all permissions reachable via the
// user's global roles only.
func (e *Evaluator) GlobalPermissions(ctx context.Context, userID int64) ([]string, error) {
	roles, err := e.repo.GlobalRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.permissionNames(ctx, roleIDs(roles))
}

// TeamPermissions returns the permission names reachable through roles scoped
// to that specific team. Global permissions are deliberately excluded;
// callers wanting the full picture union with GlobalPermissions explicitly.
func (e *Evaluator) TeamPermissions(ctx context.Context, userID, teamID int64) ([]string, error) {
	roles, err := e.repo.ScopedRolesForUser(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	return e.permissionNames(ctx, roleIDs(roles))
}

// ChannelPermissions is the team variant with scope resolved through the
// channel's owning team(s). Global permissions are excluded by the same
// contract as TeamPermissions.
func (e *Evaluator) ChannelPermissions(ctx context.Context, userID, channelID int64) ([]string, error) {
	ids, err := e.scopedRoleIDs(ctx, userID, ChannelScope(channelID))
	if err != nil {
		return nil, err
	}
	return e.permissionNames(ctx, ids)
}

// GlobalRoles enumerates the user's global role assignments. Order is
// unspecified.
func (e *Evaluator) GlobalRoles(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	return e.repo.GlobalRoleAssignments(ctx, userID)
}

// TeamRoles enumerates the user's role assignments within one team.
func (e *Evaluator) TeamRoles(ctx context.Context, userID, teamID int64) ([]RoleAssignment, error) {
	return e.repo.TeamRoleAssignments(ctx, userID, teamID)
}

// collectRoleIDs gathers global and scoped role ids for the user, fetching
// the independent reads concurrently.
func (e *Evaluator) collectRoleIDs(ctx context.Context, userID int64, scope Scope) ([]int64, error) {
	teamIDs, err := e.scopes.TeamIDs(ctx, scope)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var global []Role
	scoped := make([][]Role, len(teamIDs))

	g.Go(func() error {
		roles, err := e.repo.GlobalRolesForUser(gctx, userID)
		if err != nil {
			return err
		}
		global = roles
		return nil
	})
	for i, teamID := range teamIDs {
		g.Go(func() error {
			roles, err := e.repo.ScopedRolesForUser(gctx, userID, teamID)
			if err != nil {
				return err
			}
			scoped[i] = roles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, role := range global {
		if _, ok := seen[role.ID]; !ok {
			seen[role.ID] = struct{}{}
			ids = append(ids, role.ID)
		}
	}
	for _, roles := range scoped {
		for _, role := range roles {
			if _, ok := seen[role.ID]; !ok {
				seen[role.ID] = struct{}{}
				ids = append(ids, role.ID)
			}
		}
	}
	return ids, nil
}

// scopedRoleIDs gathers role ids reachable through scope only, without the
// user's global roles.
func (e *Evaluator) scopedRoleIDs(ctx context.Context, userID int64, scope Scope) ([]int64, error) {
	teamIDs, err := e.scopes.TeamIDs(ctx, scope)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	var ids []int64
	for _, teamID := range teamIDs {
		roles, err := e.repo.ScopedRolesForUser(ctx, userID, teamID)
		if err != nil {
			return nil, err
		}
		for _, role := range roles {
			if _, ok := seen[role.ID]; !ok {
				seen[role.ID] = struct{}{}
				ids = append(ids, role.ID)
			}
		}
	}
	return ids, nil
}

func (e *Evaluator) permissionNames(ctx context.Context, ids []int64) ([]string, error) {
	perms, err := e.repo.PermissionsForRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(perms))
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.Name]; !ok {
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func roleIDs(roles []Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}
