package teams

import "time"

// Team groups members and linked channels.
type Team struct {
	ID        int64
	Name      string
	OwnerID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TeamMember links a user to a team. Memberships are soft-disabled rather
// than deleted so role history survives; a disabled membership grants
// nothing.
type TeamMember struct {
	ID       int64
	TeamID   int64
	UserID   int64
	Disabled bool
	JoinedAt time.Time
}

// Channel is a content surface owned by one or more teams via team_channels.
type Channel struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
