package shared

// Project and content permissions declared for RBAC.
const (
	PermProjectsView = "projects.view"
	PermProjectsEdit = "projects.edit"

	PermContentCreate    = "content.create"
	PermContentEdit      = "content.edit"
	PermContentPublish   = "content.publish"
	PermCommentsModerate = "comments.moderate"
)

// ProjectScopes lists all permissions related to projects and content.
func ProjectScopes() []string {
	return []string{
		PermProjectsView,
		PermProjectsEdit,
		PermContentCreate,
		PermContentEdit,
		PermContentPublish,
		PermCommentsModerate,
	}
}
