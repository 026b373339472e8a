package rbac_test

import (
	"context"
	"testing"

	"github.com/backlot-hq/backlot/internal/rbac"
)

func TestResolverTeamIDs(t *testing.T) {
	resolver := rbac.NewResolver(newGraph())

	ids, err := resolver.TeamIDs(context.Background(), rbac.NoScope())
	if err != nil {
		t.Fatalf("no scope: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("no scope must resolve to no teams, got %v", ids)
	}

	ids, err = resolver.TeamIDs(context.Background(), rbac.TeamScope(42))
	if err != nil {
		t.Fatalf("team scope: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("team scope must resolve to itself, got %v", ids)
	}

	ids, err = resolver.TeamIDs(context.Background(), rbac.ChannelScope(300))
	if err != nil {
		t.Fatalf("channel scope: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("channel 300 links two teams, got %v", ids)
	}

	ids, err = resolver.TeamIDs(context.Background(), rbac.ChannelScope(999))
	if err != nil {
		t.Fatalf("unknown channel must not error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("unknown channel must resolve to no teams, got %v", ids)
	}
}
