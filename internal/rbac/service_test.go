package rbac_test

import (
	"context"
	"sort"
	"testing"

	"github.com/backlot-hq/backlot/internal/rbac"
)

type stubAdminStore struct {
	roles     map[int64]rbac.Role
	rolePerms map[int64][]int64
	attached  [][2]int64
	detached  [][2]int64
	nextID    int64
}

func newStubAdminStore() *stubAdminStore {
	return &stubAdminStore{
		roles:     make(map[int64]rbac.Role),
		rolePerms: make(map[int64][]int64),
		nextID:    100,
	}
}

func (s *stubAdminStore) ListRoles(context.Context) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubAdminStore) GetRole(_ context.Context, id int64) (rbac.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return role, nil
}

func (s *stubAdminStore) CreateRole(_ context.Context, name, description string) (rbac.Role, error) {
	s.nextID++
	role := rbac.Role{ID: s.nextID, Name: name, Description: description}
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubAdminStore) UpdateRole(_ context.Context, id int64, name, description string) (rbac.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	role.Name = name
	role.Description = description
	s.roles[id] = role
	return role, nil
}

func (s *stubAdminStore) DeleteRole(_ context.Context, id int64) error {
	if _, ok := s.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *stubAdminStore) ListPermissions(context.Context) ([]rbac.Permission, error) {
	return nil, nil
}

func (s *stubAdminStore) UpsertPermission(_ context.Context, name, description string) (rbac.Permission, error) {
	s.nextID++
	return rbac.Permission{ID: s.nextID, Name: name, Description: description}, nil
}

func (s *stubAdminStore) ListRolePermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	return s.rolePerms[roleID], nil
}

func (s *stubAdminStore) AttachPermission(_ context.Context, roleID, permissionID int64) error {
	s.attached = append(s.attached, [2]int64{roleID, permissionID})
	s.rolePerms[roleID] = append(s.rolePerms[roleID], permissionID)
	return nil
}

func (s *stubAdminStore) DetachPermission(_ context.Context, roleID, permissionID int64) error {
	s.detached = append(s.detached, [2]int64{roleID, permissionID})
	kept := s.rolePerms[roleID][:0]
	for _, id := range s.rolePerms[roleID] {
		if id != permissionID {
			kept = append(kept, id)
		}
	}
	s.rolePerms[roleID] = kept
	return nil
}

func (s *stubAdminStore) AssignGlobalRole(context.Context, int64, int64) error  { return nil }
func (s *stubAdminStore) RemoveGlobalRole(context.Context, int64, int64) error { return nil }
func (s *stubAdminStore) AssignTeamRole(context.Context, int64, int64) error   { return nil }
func (s *stubAdminStore) RemoveTeamRole(context.Context, int64, int64) error   { return nil }

func TestCreateRoleRequiresName(t *testing.T) {
	svc := rbac.NewService(newStubAdminStore(), nil)

	if _, err := svc.CreateRole(context.Background(), "   ", "desc"); err == nil {
		t.Fatalf("expected error for blank role name")
	}
}

func TestEnsurePermissionRejectsUnknownName(t *testing.T) {
	svc := rbac.NewService(newStubAdminStore(), nil)

	if _, err := svc.EnsurePermission(context.Background(), "made.up", ""); err == nil {
		t.Fatalf("expected unknown permission name to be rejected")
	}
	if _, err := svc.EnsurePermission(context.Background(), "library.view", "View media library"); err != nil {
		t.Fatalf("declared permission must be accepted: %v", err)
	}
}

func TestSetRolePermissionsDiffs(t *testing.T) {
	store := newStubAdminStore()
	store.rolePerms[5] = []int64{1, 2, 3}
	svc := rbac.NewService(store, nil)

	if err := svc.SetRolePermissions(context.Background(), 5, []int64{2, 3, 4}); err != nil {
		t.Fatalf("set role permissions: %v", err)
	}

	if len(store.attached) != 1 || store.attached[0] != [2]int64{5, 4} {
		t.Fatalf("expected single attach of permission 4, got %v", store.attached)
	}
	if len(store.detached) != 1 || store.detached[0] != [2]int64{5, 1} {
		t.Fatalf("expected single detach of permission 1, got %v", store.detached)
	}

	got := append([]int64(nil), store.rolePerms[5]...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []int64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSetRolePermissionsNoChangesNoWrites(t *testing.T) {
	store := newStubAdminStore()
	store.rolePerms[5] = []int64{1, 2}
	svc := rbac.NewService(store, nil)

	if err := svc.SetRolePermissions(context.Background(), 5, []int64{2, 1}); err != nil {
		t.Fatalf("set role permissions: %v", err)
	}
	if len(store.attached) != 0 || len(store.detached) != 0 {
		t.Fatalf("identical set must not write, attached=%v detached=%v", store.attached, store.detached)
	}
}
