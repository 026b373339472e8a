package teams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backlot-hq/backlot/internal/platform/db"
	"github.com/backlot-hq/backlot/internal/platform/httpx"
	"github.com/backlot-hq/backlot/internal/shared"
)

// Repository provides PostgreSQL backed persistence for teams, memberships
// and channels.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTeam inserts a team owned by the given user.
func (r *Repository) CreateTeam(ctx context.Context, name string, ownerID int64) (Team, error) {
	var team Team
	err := r.pool.QueryRow(ctx, `
		INSERT INTO teams (name, owner_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, name, owner_id, created_at, updated_at`, name, ownerID).
		Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Team{}, httpx.ErrDuplicate
		}
		return Team{}, err
	}
	return team, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetTeam fetches a team by id.
func (r *Repository) GetTeam(ctx context.Context, id int64) (Team, error) {
	var team Team
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner_id, created_at, updated_at FROM teams WHERE id = $1`, id).
		Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Team{}, shared.ErrNotFound
		}
		return Team{}, err
	}
	return team, nil
}

// ListTeams returns all teams.
func (r *Repository) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, owner_id, created_at, updated_at FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var teams []Team
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// AddMember inserts the membership row and its scoped role assignments in one
// transaction, so a member never exists half-granted.
func (r *Repository) AddMember(ctx context.Context, teamID, userID int64, roleIDs []int64) (TeamMember, error) {
	var member TeamMember
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO team_members (team_id, user_id, disabled, joined_at)
			VALUES ($1, $2, FALSE, NOW())
			RETURNING id, team_id, user_id, disabled, joined_at`, teamID, userID).
			Scan(&member.ID, &member.TeamID, &member.UserID, &member.Disabled, &member.JoinedAt)
		if err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO team_member_roles (team_member_id, role_id, created_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (team_member_id, role_id) DO NOTHING`, member.ID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return TeamMember{}, httpx.ErrDuplicate
		}
		return TeamMember{}, err
	}
	return member, nil
}

// GetMember fetches the membership for (teamID, userID), disabled or not.
func (r *Repository) GetMember(ctx context.Context, teamID, userID int64) (TeamMember, error) {
	var member TeamMember
	err := r.pool.QueryRow(ctx, `
		SELECT id, team_id, user_id, disabled, joined_at
		FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID).
		Scan(&member.ID, &member.TeamID, &member.UserID, &member.Disabled, &member.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TeamMember{}, shared.ErrNotFound
		}
		return TeamMember{}, err
	}
	return member, nil
}

// ListMembers returns all memberships of a team, including disabled ones.
func (r *Repository) ListMembers(ctx context.Context, teamID int64) ([]TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, team_id, user_id, disabled, joined_at
		FROM team_members WHERE team_id = $1 ORDER BY joined_at`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []TeamMember
	for rows.Next() {
		var member TeamMember
		if err := rows.Scan(&member.ID, &member.TeamID, &member.UserID, &member.Disabled, &member.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// SetMemberDisabled flips the disabled flag. Role assignments are left
// untouched so re-enabling restores the previous grants.
func (r *Repository) SetMemberDisabled(ctx context.Context, memberID int64, disabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE team_members SET disabled = $2 WHERE id = $1`, memberID, disabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateChannel inserts a channel.
func (r *Repository) CreateChannel(ctx context.Context, name string) (Channel, error) {
	var channel Channel
	err := r.pool.QueryRow(ctx, `
		INSERT INTO channels (name, created_at) VALUES ($1, NOW())
		RETURNING id, name, created_at`, name).
		Scan(&channel.ID, &channel.Name, &channel.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Channel{}, httpx.ErrDuplicate
		}
		return Channel{}, err
	}
	return channel, nil
}

// LinkChannel attaches a channel to a team.
func (r *Repository) LinkChannel(ctx context.Context, teamID, channelID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_channels (team_id, channel_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (team_id, channel_id) DO NOTHING`, teamID, channelID)
	return err
}

// UnlinkChannel detaches a channel from a team.
func (r *Repository) UnlinkChannel(ctx context.Context, teamID, channelID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM team_channels WHERE team_id = $1 AND channel_id = $2`, teamID, channelID)
	return err
}

// ListChannels returns channels linked to a team.
func (r *Repository) ListChannels(ctx context.Context, teamID int64) ([]Channel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, c.created_at
		FROM channels c
		JOIN team_channels tc ON tc.channel_id = c.id
		WHERE tc.team_id = $1 ORDER BY c.id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var channels []Channel
	for rows.Next() {
		var channel Channel
		if err := rows.Scan(&channel.ID, &channel.Name, &channel.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}
