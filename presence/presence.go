package presence

import (
	"context"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "presence")

// FriendStatus is the per-friend presence snapshot the join engine works with.
// DisplayName and AvatarURL are best-effort: they are cached so the UI does not
// blank out when the remote API has a bad moment.
type FriendStatus struct {
	ID              string `json:"id"`
	InSupportedMode bool   `json:"inSupportedMode"`
	DisplayName     string `json:"displayName"`
	AvatarURL       string `json:"avatarUrl"`
}

// Client is the presence source consumed by the join engine. Implementations
// own the classification of rich-presence strings into "supported mode" and
// "lobby"; the engine never parses presence data itself.
type Client interface {
	// FriendConnectInfo returns the friend's current connect token, or ""
	// when the friend has no joinable match.
	FriendConnectInfo(ctx context.Context, friendID string) (string, error)
	// FriendStatuses resolves the current status of the given friends.
	// Friends absent from the result are not visible to the API at all.
	FriendStatuses(ctx context.Context, ids []string) ([]FriendStatus, error)
	// UserGameServerID returns the game-server identifier the user is
	// currently on, or "" when not on a server.
	UserGameServerID(ctx context.Context, userID string) (string, error)
	// FriendGameServerID returns the game-server identifier the friend is
	// currently on, or "" when not on a server.
	FriendGameServerID(ctx context.Context, friendID string) (string, error)
	// IsInGame reports whether the game process is active for the user.
	IsInGame(ctx context.Context, userID string) (bool, error)
	// IsInGameAndInLobbyState additionally requires that the user is past
	// initial loading and sitting in a joinable in-game state.
	IsInGameAndInLobbyState(ctx context.Context, userID string) (bool, error)
}
