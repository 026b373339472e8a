package rbac

import "context"

// ScopeKind discriminates what a scope id refers to. Callers must say whether
// an id names a team or a channel; the resolver never guesses by probing
// tables, so a colliding id can never silently mis-scope a check.
type ScopeKind int

const (
	// ScopeNone means only globally assigned roles apply.
	ScopeNone ScopeKind = iota
	// ScopeTeam narrows a check to one team.
	ScopeTeam
	// ScopeChannel narrows a check to the team(s) linked to a channel.
	ScopeChannel
)

// Scope is the optional context narrowing a permission check.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

// NoScope returns the unscoped context.
func NoScope() Scope { return Scope{Kind: ScopeNone} }

// TeamScope returns a scope naming a team directly.
func TeamScope(teamID int64) Scope { return Scope{Kind: ScopeTeam, ID: teamID} }

// ChannelScope returns a scope resolved through a channel's owning team(s).
func ChannelScope(channelID int64) Scope { return Scope{Kind: ScopeChannel, ID: channelID} }

// Resolver maps a scope to the concrete team ids whose scoped role
// assignments are relevant. An unknown id resolves to an empty set rather
// than an error: the evaluator then falls back to global-only evaluation,
// which denies scoped-only permissions as expected.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// TeamIDs resolves scope to the set of relevant team ids.
func (r *Resolver) TeamIDs(ctx context.Context, scope Scope) ([]int64, error) {
	switch scope.Kind {
	case ScopeTeam:
		return []int64{scope.ID}, nil
	case ScopeChannel:
		return r.repo.TeamIDsForChannel(ctx, scope.ID)
	default:
		return nil, nil
	}
}
