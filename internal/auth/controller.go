package auth

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Controller is the authoritative session registry: at most one
// authenticated client per account within this process. The session map's
// insert-if-absent is the sole serialization point for concurrent checkins;
// the ban and presence checks before it are non-transactional pre-filters.
type Controller struct {
	creds    *CredentialStore
	store    AccountStore
	presence Presence

	sessions sync.Map // login -> Client
	count    atomic.Int64

	log *zap.Logger
}

func NewController(creds *CredentialStore, store AccountStore, presence Presence, log *zap.Logger) *Controller {
	return &Controller{
		creds:    creds,
		store:    store,
		presence: presence,
		log:      log,
	}
}

// Checkin decides whether the client may become the authoritative session
// for the account. Order: access-level gate, account touch (last active +
// source address, failing closed), game-server presence, then the atomic
// insert-if-absent.
//
// The presence check runs before the local insert, so two concurrent
// checkins can both pass it before either inserts; the insert still admits
// only one of them locally, and a stale game-server entry is resolved by
// that server's own session teardown.
func (c *Controller) Checkin(ctx context.Context, client Client, address string, account *Account) Result {
	if account.AccessLevel < 0 {
		return AccountBanned
	}

	if err := c.store.UpdateLastActive(ctx, account.Login, address); err != nil {
		c.log.Error("could not finish login process",
			zap.String("login", account.Login), zap.Error(err))
		return InvalidPassword
	}

	if c.presence != nil && c.presence.IsAccountOnAny(account.Login) {
		return AlreadyOnGS
	}

	if _, loaded := c.sessions.LoadOrStore(account.Login, client); loaded {
		return AlreadyOnLS
	}
	c.count.Add(1)
	return AuthSuccess
}

// AssignSessionKey generates a fresh session key and records the client as
// the authoritative holder for the account.
func (c *Controller) AssignSessionKey(account string, client Client) SessionKey {
	key := NewSessionKey()
	if _, loaded := c.sessions.Swap(account, client); !loaded {
		c.count.Add(1)
	}
	return key
}

// Remove deregisters the account and closes the held connection, if any.
// Removing an unknown account is a no-op; returns whether a session existed.
func (c *Controller) Remove(account string) bool {
	if account == "" {
		return false
	}
	v, loaded := c.sessions.LoadAndDelete(account)
	if !loaded {
		return false
	}
	c.count.Add(-1)
	v.(Client).Disconnect(ReasonNone)
	return true
}

// RemoveClient deregisters the account only when the given client is still
// the authoritative holder. Used by session teardown so a rejected
// duplicate connection never evicts the session it lost to.
func (c *Controller) RemoveClient(account string, client Client) bool {
	if account == "" {
		return false
	}
	if !c.sessions.CompareAndDelete(account, client) {
		return false
	}
	c.count.Add(-1)
	return true
}

// Find returns the authoritative client for the account, if any.
func (c *Controller) Find(account string) (Client, bool) {
	v, ok := c.sessions.Load(account)
	if !ok {
		return nil, false
	}
	return v.(Client), true
}

// ValidateSessionKey checks the key a game server presents on handoff
// against the one assigned at login.
func (c *Controller) ValidateSessionKey(account string, key SessionKey) bool {
	client, ok := c.Find(account)
	if !ok {
		return false
	}
	return client.SessionKey() == key
}

// SessionCount returns the number of registered sessions.
func (c *Controller) SessionCount() int {
	return int(c.count.Load())
}

// EachSession calls fn for every registered session. Safe against
// concurrent removal; entries removed mid-iteration may or may not be seen.
func (c *Controller) EachSession(fn func(account string, client Client)) {
	c.sessions.Range(func(k, v any) bool {
		fn(k.(string), v.(Client))
		return true
	})
}

// Credentials exposes the credential store for the auth handler.
func (c *Controller) Credentials() *CredentialStore {
	return c.creds
}

// SetAccessLevel persists an account's access level (negative bans it).
func (c *Controller) SetAccessLevel(ctx context.Context, account string, level int) error {
	return c.store.SetAccessLevel(ctx, account, level)
}

// UpdateLastServer persists the account's chosen game server.
func (c *Controller) UpdateLastServer(ctx context.Context, account string, serverID int) error {
	return c.store.UpdateLastServer(ctx, account, serverID)
}
