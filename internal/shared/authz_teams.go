package shared

// Team and channel permissions declared for RBAC.
const (
	PermTeamsView         = "teams.view"
	PermTeamsEdit         = "teams.edit"
	PermTeamMembersManage = "teams.members.manage"

	PermChannelsView   = "channels.view"
	PermChannelsManage = "channels.manage"
)

// TeamScopes lists all permissions related to teams and channels.
func TeamScopes() []string {
	return []string{
		PermTeamsView,
		PermTeamsEdit,
		PermTeamMembersManage,
		PermChannelsView,
		PermChannelsManage,
	}
}
