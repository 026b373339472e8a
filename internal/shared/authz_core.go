package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
	}
}

// KnownPermission reports whether name is one of the declared permission
// constants. Admin tooling validates new permission rows against this set;
// the evaluator itself accepts any string and simply denies unknown names.
func KnownPermission(name string) bool {
	for _, group := range [][]string{CoreScopes(), TeamScopes(), LibraryScopes(), ProjectScopes()} {
		for _, p := range group {
			if p == name {
				return true
			}
		}
	}
	return false
}
