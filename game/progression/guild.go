package progression

import (
	"context"

	"github.com/nosgoth/eldergod/game/clan"
)

// Member identifies a chat user taking part in an operation.
type Member struct {
	ID   int64
	Name string // display name
}

// Notice is a direct message sent to a user.
type Notice struct {
	Title string
	Body  string
	Color int
}

// Guild is the chat server the bot manages. Role changes and direct messages
// return an error wrapping ErrPermissionDenied when the bot lacks the rights.
type Guild interface {
	HasRole(ctx context.Context, userID int64, role string) (bool, error)
	// AssignClanRole gives the user the role of c and removes any other role
	// listed in clanRoles.
	AssignClanRole(ctx context.Context, userID int64, c clan.Clan, clanRoles []string) error
	GrantRole(ctx context.Context, userID int64, role string) error
	SendDirect(ctx context.Context, userID int64, n Notice) error
}
