package teams

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/backlot-hq/backlot/internal/shared"
)

// RepositoryPort defines data access methods for teams.
type RepositoryPort interface {
	CreateTeam(ctx context.Context, name string, ownerID int64) (Team, error)
	GetTeam(ctx context.Context, id int64) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	AddMember(ctx context.Context, teamID, userID int64, roleIDs []int64) (TeamMember, error)
	GetMember(ctx context.Context, teamID, userID int64) (TeamMember, error)
	ListMembers(ctx context.Context, teamID int64) ([]TeamMember, error)
	SetMemberDisabled(ctx context.Context, memberID int64, disabled bool) error
	CreateChannel(ctx context.Context, name string) (Channel, error)
	LinkChannel(ctx context.Context, teamID, channelID int64) error
	UnlinkChannel(ctx context.Context, teamID, channelID int64) error
	ListChannels(ctx context.Context, teamID int64) ([]Channel, error)
}

// Service handles team business logic.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service instance. The audit logger may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateTeam creates a team and enrols the owner as its first member.
func (s *Service) CreateTeam(ctx context.Context, name string, ownerID int64) (Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, errors.New("teams: team name required")
	}
	team, err := s.repo.CreateTeam(ctx, name, ownerID)
	if err != nil {
		return Team{}, err
	}
	if _, err := s.repo.AddMember(ctx, team.ID, ownerID, nil); err != nil {
		return Team{}, err
	}
	return team, nil
}

// GetTeam fetches a team by id.
func (s *Service) GetTeam(ctx context.Context, id int64) (Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// ListTeams returns all teams.
func (s *Service) ListTeams(ctx context.Context) ([]Team, error) {
	return s.repo.ListTeams(ctx)
}

// AddMember enrols a user into a team with the given scoped roles. The
// membership and its roles are persisted atomically.
func (s *Service) AddMember(ctx context.Context, actorID, teamID, userID int64, roleIDs []int64) (TeamMember, error) {
	member, err := s.repo.AddMember(ctx, teamID, userID, roleIDs)
	if err != nil {
		return TeamMember{}, err
	}
	s.recordAudit(ctx, actorID, "teams.add_member", member.ID, map[string]any{"team_id": teamID, "user_id": userID})
	return member, nil
}

// ListMembers returns all memberships of a team.
func (s *Service) ListMembers(ctx context.Context, teamID int64) ([]TeamMember, error) {
	return s.repo.ListMembers(ctx, teamID)
}

// DisableMember soft-disables a membership. Every scoped grant through it
// stops applying immediately; nothing is deleted.
func (s *Service) DisableMember(ctx context.Context, actorID, memberID int64) error {
	if err := s.repo.SetMemberDisabled(ctx, memberID, true); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "teams.disable_member", memberID, nil)
	return nil
}

// EnableMember re-activates a membership and its existing role grants.
func (s *Service) EnableMember(ctx context.Context, actorID, memberID int64) error {
	if err := s.repo.SetMemberDisabled(ctx, memberID, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "teams.enable_member", memberID, nil)
	return nil
}

// CreateChannel creates a channel and links it to the team.
func (s *Service) CreateChannel(ctx context.Context, actorID, teamID int64, name string) (Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Channel{}, errors.New("teams: channel name required")
	}
	channel, err := s.repo.CreateChannel(ctx, name)
	if err != nil {
		return Channel{}, err
	}
	if err := s.repo.LinkChannel(ctx, teamID, channel.ID); err != nil {
		return Channel{}, err
	}
	s.recordAudit(ctx, actorID, "teams.create_channel", channel.ID, map[string]any{"team_id": teamID})
	return channel, nil
}

// LinkChannel attaches an existing channel to a team.
func (s *Service) LinkChannel(ctx context.Context, actorID, teamID, channelID int64) error {
	if err := s.repo.LinkChannel(ctx, teamID, channelID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "teams.link_channel", channelID, map[string]any{"team_id": teamID})
	return nil
}

// UnlinkChannel detaches a channel from a team.
func (s *Service) UnlinkChannel(ctx context.Context, actorID, teamID, channelID int64) error {
	if err := s.repo.UnlinkChannel(ctx, teamID, channelID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "teams.unlink_channel", channelID, map[string]any{"team_id": teamID})
	return nil
}

// ListChannels returns channels linked to a team.
func (s *Service) ListChannels(ctx context.Context, teamID int64) ([]Channel, error) {
	return s.repo.ListChannels(ctx, teamID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "team",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
