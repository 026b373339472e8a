package teams_test

import (
	"context"
	"testing"

	"github.com/backlot-hq/backlot/internal/teams"
	_ "github.com/backlot-hq/backlot/testing"
)

type stubRepo struct {
	teams    map[int64]teams.Team
	members  map[int64]teams.TeamMember
	channels map[int64]teams.Channel
	links    map[[2]int64]bool
	addRoles map[int64][]int64
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		teams:    make(map[int64]teams.Team),
		members:  make(map[int64]teams.TeamMember),
		channels: make(map[int64]teams.Channel),
		links:    make(map[[2]int64]bool),
		addRoles: make(map[int64][]int64),
	}
}

func (s *stubRepo) CreateTeam(_ context.Context, name string, ownerID int64) (teams.Team, error) {
	s.nextID++
	team := teams.Team{ID: s.nextID, Name: name, OwnerID: ownerID}
	s.teams[team.ID] = team
	return team, nil
}

func (s *stubRepo) GetTeam(_ context.Context, id int64) (teams.Team, error) {
	return s.teams[id], nil
}

func (s *stubRepo) ListTeams(context.Context) ([]teams.Team, error) {
	var out []teams.Team
	for _, t := range s.teams {
		out = append(out, t)
	}
	return out, nil
}

func (s *stubRepo) AddMember(_ context.Context, teamID, userID int64, roleIDs []int64) (teams.TeamMember, error) {
	s.nextID++
	member := teams.TeamMember{ID: s.nextID, TeamID: teamID, UserID: userID}
	s.members[member.ID] = member
	s.addRoles[member.ID] = roleIDs
	return member, nil
}

func (s *stubRepo) GetMember(_ context.Context, teamID, userID int64) (teams.TeamMember, error) {
	for _, m := range s.members {
		if m.TeamID == teamID && m.UserID == userID {
			return m, nil
		}
	}
	return teams.TeamMember{}, nil
}

func (s *stubRepo) ListMembers(_ context.Context, teamID int64) ([]teams.TeamMember, error) {
	var out []teams.TeamMember
	for _, m := range s.members {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubRepo) SetMemberDisabled(_ context.Context, memberID int64, disabled bool) error {
	m := s.members[memberID]
	m.Disabled = disabled
	s.members[memberID] = m
	return nil
}

func (s *stubRepo) CreateChannel(_ context.Context, name string) (teams.Channel, error) {
	s.nextID++
	channel := teams.Channel{ID: s.nextID, Name: name}
	s.channels[channel.ID] = channel
	return channel, nil
}

func (s *stubRepo) LinkChannel(_ context.Context, teamID, channelID int64) error {
	s.links[[2]int64{teamID, channelID}] = true
	return nil
}

func (s *stubRepo) UnlinkChannel(_ context.Context, teamID, channelID int64) error {
	delete(s.links, [2]int64{teamID, channelID})
	return nil
}

func (s *stubRepo) ListChannels(_ context.Context, teamID int64) ([]teams.Channel, error) {
	var out []teams.Channel
	for key, linked := range s.links {
		if linked && key[0] == teamID {
			out = append(out, s.channels[key[1]])
		}
	}
	return out, nil
}

func TestCreateTeamEnrolsOwner(t *testing.T) {
	repo := newStubRepo()
	svc := teams.NewService(repo, nil)

	team, err := svc.CreateTeam(context.Background(), "Post Production", 7)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	member, err := repo.GetMember(context.Background(), team.ID, 7)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.ID == 0 {
		t.Fatalf("owner must be enrolled as first member")
	}
	if member.Disabled {
		t.Fatalf("owner membership must be active")
	}
}

func TestCreateTeamRequiresName(t *testing.T) {
	svc := teams.NewService(newStubRepo(), nil)

	if _, err := svc.CreateTeam(context.Background(), "  ", 7); err == nil {
		t.Fatalf("expected error for blank team name")
	}
}

func TestAddMemberPassesRoles(t *testing.T) {
	repo := newStubRepo()
	svc := teams.NewService(repo, nil)

	member, err := svc.AddMember(context.Background(), 1, 10, 20, []int64{2, 3})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	roles := repo.addRoles[member.ID]
	if len(roles) != 2 || roles[0] != 2 || roles[1] != 3 {
		t.Fatalf("expected scoped roles [2 3], got %v", roles)
	}
}

func TestDisableAndEnableMemberTogglesFlagOnly(t *testing.T) {
	repo := newStubRepo()
	svc := teams.NewService(repo, nil)

	member, err := svc.AddMember(context.Background(), 1, 10, 20, []int64{2})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := svc.DisableMember(context.Background(), 1, member.ID); err != nil {
		t.Fatalf("disable member: %v", err)
	}
	if !repo.members[member.ID].Disabled {
		t.Fatalf("membership must be flagged disabled")
	}
	if len(repo.addRoles[member.ID]) != 1 {
		t.Fatalf("disabling must not remove role grants")
	}

	if err := svc.EnableMember(context.Background(), 1, member.ID); err != nil {
		t.Fatalf("enable member: %v", err)
	}
	if repo.members[member.ID].Disabled {
		t.Fatalf("membership must be re-enabled")
	}
}

func TestCreateChannelLinksToTeam(t *testing.T) {
	repo := newStubRepo()
	svc := teams.NewService(repo, nil)

	channel, err := svc.CreateChannel(context.Background(), 1, 10, "dailies")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if !repo.links[[2]int64{10, channel.ID}] {
		t.Fatalf("channel must be linked to its team")
	}
}

func TestChannelSharedAcrossTeams(t *testing.T) {
	repo := newStubRepo()
	svc := teams.NewService(repo, nil)

	channel, err := svc.CreateChannel(context.Background(), 1, 10, "final-cuts")
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if err := svc.LinkChannel(context.Background(), 1, 11, channel.ID); err != nil {
		t.Fatalf("link channel: %v", err)
	}

	for _, teamID := range []int64{10, 11} {
		channels, err := svc.ListChannels(context.Background(), teamID)
		if err != nil {
			t.Fatalf("list channels: %v", err)
		}
		if len(channels) != 1 || channels[0].ID != channel.ID {
			t.Fatalf("team %d must see the shared channel, got %v", teamID, channels)
		}
	}

	if err := svc.UnlinkChannel(context.Background(), 1, 10, channel.ID); err != nil {
		t.Fatalf("unlink channel: %v", err)
	}
	channels, err := svc.ListChannels(context.Background(), 10)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("unlinked team must no longer see the channel")
	}
	channels, err = svc.ListChannels(context.Background(), 11)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("other team keeps the channel")
	}
}
