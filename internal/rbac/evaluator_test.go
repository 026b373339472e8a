package rbac_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/backlot-hq/backlot/internal/rbac"
	_ "github.com/backlot-hq/backlot/testing"
)

// stubGraph is an in-memory role-permission graph. scopedRoles holds the
// TeamMemberRole grants keyed by (user, team); disabled marks memberships
// whose grants the read path must suppress, mirroring the repository's
// NOT tm.disabled filter.
type stubGraph struct {
	globalRoles  map[int64][]rbac.Role
	scopedRoles  map[[2]int64][]rbac.Role
	disabled     map[[2]int64]bool
	rolePerms    map[int64][]rbac.Permission
	channelTeams map[int64][]int64
	failWith     error

	permQueries int
}

func (s *stubGraph) GlobalRolesForUser(_ context.Context, userID int64) ([]rbac.Role, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.globalRoles[userID], nil
}

func (s *stubGraph) ScopedRolesForUser(_ context.Context, userID, teamID int64) ([]rbac.Role, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	key := [2]int64{userID, teamID}
	if s.disabled[key] {
		return nil, nil
	}
	return s.scopedRoles[key], nil
}

func (s *stubGraph) PermissionsForRoles(_ context.Context, roleIDs []int64) ([]rbac.Permission, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.permQueries++
	if len(roleIDs) == 0 {
		return nil, nil
	}
	seen := make(map[int64]struct{})
	var perms []rbac.Permission
	for _, id := range roleIDs {
		for _, p := range s.rolePerms[id] {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (s *stubGraph) TeamIDsForChannel(_ context.Context, channelID int64) ([]int64, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.channelTeams[channelID], nil
}

func (s *stubGraph) GlobalRoleAssignments(_ context.Context, userID int64) ([]rbac.RoleAssignment, error) {
	var out []rbac.RoleAssignment
	for _, role := range s.globalRoles[userID] {
		out = append(out, rbac.RoleAssignment{Role: role})
	}
	return out, nil
}

func (s *stubGraph) TeamRoleAssignments(_ context.Context, userID, teamID int64) ([]rbac.RoleAssignment, error) {
	key := [2]int64{userID, teamID}
	if s.disabled[key] {
		return nil, nil
	}
	var out []rbac.RoleAssignment
	for _, role := range s.scopedRoles[key] {
		out = append(out, rbac.RoleAssignment{Role: role})
	}
	return out, nil
}

// newGraph builds the shared fixture: user 1 is a global admin, user 2 is a
// viewer in team 10 and an editor in team 20, user 3 has no roles at all.
// Channel 100 belongs to team 10, channel 300 belongs to teams 10 and 20.
func newGraph() *stubGraph {
	admin := rbac.Role{ID: 1, Name: "Admin"}
	viewer := rbac.Role{ID: 2, Name: "Viewer"}
	editor := rbac.Role{ID: 3, Name: "Editor"}
	return &stubGraph{
		globalRoles: map[int64][]rbac.Role{
			1: {admin},
		},
		scopedRoles: map[[2]int64][]rbac.Role{
			{2, 10}: {viewer},
			{2, 20}: {editor},
		},
		disabled: map[[2]int64]bool{},
		rolePerms: map[int64][]rbac.Permission{
			1: {
				{ID: 1, Name: "users.edit"},
				{ID: 2, Name: "library.view"},
				{ID: 3, Name: "library.edit"},
			},
			2: {
				{ID: 2, Name: "library.view"},
			},
			3: {
				{ID: 2, Name: "library.view"},
				{ID: 3, Name: "library.edit"},
			},
		},
		channelTeams: map[int64][]int64{
			100: {10},
			300: {10, 20},
		},
	}
}

func TestCanDeniesUserWithoutRoles(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 3, "library.view", rbac.NoScope())
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("expected deny for user with no roles")
	}
}

func TestCanGrantsViaGlobalRole(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 1, "users.edit", rbac.NoScope())
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if !ok {
		t.Fatalf("expected global admin grant")
	}
}

func TestCanGlobalRoleAppliesInsideAnyScope(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 1, "users.edit", rbac.TeamScope(20))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if !ok {
		t.Fatalf("global roles must apply inside team scope")
	}
}

func TestCanScopedRoleBoundToItsTeam(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(20))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if !ok {
		t.Fatalf("expected editor grant in team 20")
	}

	ok, err = eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(10))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("viewer in team 10 must not hold library.edit")
	}
}

func TestCanDisabledMembershipRevokesScopedGrants(t *testing.T) {
	graph := newGraph()
	eval := rbac.NewEvaluator(graph)

	ok, err := eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(20))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if !ok {
		t.Fatalf("expected editor grant in team 20 before disablement")
	}

	graph.disabled[[2]int64{2, 20}] = true

	ok, err = eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(20))
	if err != nil {
		t.Fatalf("can after disable: %v", err)
	}
	if ok {
		t.Fatalf("disabled membership must suppress its scoped grants")
	}

	// The grants themselves survive disablement; only the read path hides
	// them, so re-enabling restores the exact same answer.
	if len(graph.scopedRoles[[2]int64{2, 20}]) == 0 {
		t.Fatalf("role grants must not be removed by disablement")
	}
	if len(graph.rolePerms[3]) == 0 {
		t.Fatalf("role permissions must not be removed by disablement")
	}
	graph.disabled[[2]int64{2, 20}] = false

	ok, err = eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(20))
	if err != nil {
		t.Fatalf("can after re-enable: %v", err)
	}
	if !ok {
		t.Fatalf("re-enabled membership must regain its scoped grants")
	}
}

func TestCanUnknownPermissionDenies(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 1, "no.such.permission", rbac.NoScope())
	if err != nil {
		t.Fatalf("unknown permission must not be an error: %v", err)
	}
	if ok {
		t.Fatalf("unknown permission must deny")
	}
}

func TestCanUnknownTeamDenies(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 2, "library.view", rbac.TeamScope(999))
	if err != nil {
		t.Fatalf("unknown team must not be an error: %v", err)
	}
	if ok {
		t.Fatalf("unknown team must deny scoped-only permissions")
	}
}

func TestCanChannelScopeResolvesOwningTeams(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	// Channel 100 belongs to team 10 where user 2 is only a viewer.
	ok, err := eval.Can(context.Background(), 2, "library.edit", rbac.ChannelScope(100))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if ok {
		t.Fatalf("viewer via channel 100 must not edit")
	}

	// Channel 300 is shared with team 20 where user 2 is an editor.
	ok, err = eval.Can(context.Background(), 2, "library.edit", rbac.ChannelScope(300))
	if err != nil {
		t.Fatalf("can: %v", err)
	}
	if !ok {
		t.Fatalf("editor via shared channel 300 must edit")
	}
}

func TestCanUnknownChannelDenies(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.Can(context.Background(), 2, "library.view", rbac.ChannelScope(999))
	if err != nil {
		t.Fatalf("unknown channel must not be an error: %v", err)
	}
	if ok {
		t.Fatalf("unknown channel must deny")
	}
}

func TestCanPropagatesStoreFailure(t *testing.T) {
	graph := newGraph()
	graph.failWith = errors.New("connection reset")
	eval := rbac.NewEvaluator(graph)

	_, err := eval.Can(context.Background(), 1, "users.edit", rbac.NoScope())
	if err == nil {
		t.Fatalf("store failure must surface as error, not deny")
	}
}

func TestCanRepeatedCallsAgree(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	for i := 0; i < 5; i++ {
		ok, err := eval.Can(context.Background(), 2, "library.edit", rbac.TeamScope(20))
		if err != nil {
			t.Fatalf("can: %v", err)
		}
		if !ok {
			t.Fatalf("iteration %d disagreed", i)
		}
	}
}

func TestGlobalPermissionsOnlyGlobal(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	names, err := eval.GlobalPermissions(context.Background(), 2)
	if err != nil {
		t.Fatalf("global permissions: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("team-scoped roles must not leak into global permissions, got %v", names)
	}
}

func TestTeamPermissionsExcludeGlobal(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	names, err := eval.TeamPermissions(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("team permissions: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("global admin roles must not appear in team permissions, got %v", names)
	}

	names, err = eval.TeamPermissions(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("team permissions: %v", err)
	}
	sort.Strings(names)
	want := []string{"library.edit", "library.view"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestChannelPermissionsUnionAcrossTeams(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	names, err := eval.ChannelPermissions(context.Background(), 2, 300)
	if err != nil {
		t.Fatalf("channel permissions: %v", err)
	}
	sort.Strings(names)
	want := []string{"library.edit", "library.view"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestHasPermissionGlobalShortCircuit(t *testing.T) {
	graph := newGraph()
	eval := rbac.NewEvaluator(graph)

	ok, err := eval.HasPermission(context.Background(), 1, "library.view", 100)
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if !ok {
		t.Fatalf("expected global grant")
	}
	if graph.permQueries != 1 {
		t.Fatalf("global grant must short-circuit, ran %d permission queries", graph.permQueries)
	}
}

func TestHasPermissionFallsBackToChannel(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.HasPermission(context.Background(), 2, "library.edit", 300)
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if !ok {
		t.Fatalf("expected channel-scoped grant")
	}
}

func TestHasPermissionNoChannelStopsAtGlobal(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	ok, err := eval.HasPermission(context.Background(), 2, "library.view", 0)
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if ok {
		t.Fatalf("zero channel id must not consult scoped grants")
	}
}

func TestHasPermissionAgreesWithCan(t *testing.T) {
	eval := rbac.NewEvaluator(newGraph())

	cases := []struct {
		userID     int64
		permission string
		channelID  int64
	}{
		{1, "users.edit", 0},
		{1, "users.edit", 100},
		{2, "library.view", 100},
		{2, "library.edit", 100},
		{2, "library.edit", 300},
		{3, "library.view", 100},
	}
	for _, tc := range cases {
		got, err := eval.HasPermission(context.Background(), tc.userID, tc.permission, tc.channelID)
		if err != nil {
			t.Fatalf("has permission: %v", err)
		}
		scope := rbac.NoScope()
		if tc.channelID != 0 {
			scope = rbac.ChannelScope(tc.channelID)
		}
		want, err := eval.Can(context.Background(), tc.userID, tc.permission, scope)
		if err != nil {
			t.Fatalf("can: %v", err)
		}
		if got != want {
			t.Fatalf("user %d perm %s channel %d: HasPermission=%v Can=%v", tc.userID, tc.permission, tc.channelID, got, want)
		}
	}
}
