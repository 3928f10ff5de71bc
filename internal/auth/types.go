package auth

import (
	"context"
	"time"
)

// Account is the persisted account view the login pipeline operates on.
// A negative access level means the account is banned.
type Account struct {
	Login        string
	PasswordHash string
	AccessLevel  int
	LastServer   int
}

// AccountStore is the durable backing store for accounts. Implemented by
// persist.AccountRepo; any store satisfying these operations suffices.
type AccountStore interface {
	// Load returns (nil, nil) when no such account exists.
	Load(ctx context.Context, login string) (*Account, error)
	// Create provisions a new account with the hashed password and zero
	// access level.
	Create(ctx context.Context, login, password, ip string) (*Account, error)
	ValidatePassword(hash, password string) bool
	UpdateLastActive(ctx context.Context, login, ip string) error
	UpdateLastServer(ctx context.Context, login string, serverID int) error
	SetAccessLevel(ctx context.Context, login string, level int) error
}

// SessionKey is the 4-tuple bound to an authenticated connection. The login
// half is echoed in LoginOk, the play half in PlayOk; the game server
// validates both on handoff.
type SessionKey struct {
	LoginOK1 int32
	LoginOK2 int32
	PlayOK1  int32
	PlayOK2  int32
}

// Client is the registry's view of a connected client. Implemented by
// net.Session; kept narrow so the core never touches the transport.
type Client interface {
	Account() string
	ConnectedAt() time.Time
	// Progressed reports whether the session moved past authentication
	// (selected a game server). Non-progressed sessions are reaped.
	Progressed() bool
	SessionKey() SessionKey
	// Disconnect sends the fail reason (unless ReasonNone) and closes the
	// connection. Must be safe to call from any goroutine, repeatedly.
	Disconnect(reason DisconnectReason)
}

// Presence answers whether an account is already active in a world process.
// Implemented by gameserver.Table.
type Presence interface {
	IsAccountOnAny(login string) bool
}
