package gameserver

import (
	"crypto/subtle"
	"sync"

	"github.com/l1jgo/login/internal/auth"
	"go.uber.org/zap"
)

// KeyValidator checks a session key presented by a game server on handoff.
// Implemented by auth.Controller.
type KeyValidator interface {
	ValidateSessionKey(account string, key auth.SessionKey) bool
}

// Table is the registry of game-server definitions and live links, and the
// presence oracle over them. Pure queries; a missing or unauthenticated
// link is simply excluded, never an error.
type Table struct {
	defs      []Definition
	defByID   map[int]Definition
	sharedKey string
	validator KeyValidator

	mu    sync.RWMutex
	links map[int]*Link

	log *zap.Logger
}

func NewTable(defs []Definition, sharedKey string, log *zap.Logger) *Table {
	byID := make(map[int]Definition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return &Table{
		defs:      defs,
		defByID:   byID,
		sharedKey: sharedKey,
		links:     make(map[int]*Link),
		log:       log,
	}
}

// SetKeyValidator wires the session-key validator. Must be called before
// the listener starts accepting links.
func (t *Table) SetKeyValidator(v KeyValidator) {
	t.validator = v
}

// Definitions returns the static registry in id order.
func (t *Table) Definitions() []Definition {
	return t.defs
}

// Definition returns the static entry for a server id.
func (t *Table) Definition(id int) (Definition, bool) {
	d, ok := t.defByID[id]
	return d, ok
}

// Link returns the live link for a server id, if connected and authed.
func (t *Table) Link(id int) (*Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.links[id]
	if !ok || !l.IsAuthenticated() {
		return nil, false
	}
	return l, true
}

// LinkCount returns the number of authenticated links.
func (t *Table) LinkCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.links)
}

// IsAccountOnAny reports whether any authenticated game server claims the
// account is online. Short-circuits on the first match.
func (t *Table) IsAccountOnAny(login string) bool {
	_, ok := t.AccountServer(login)
	return ok
}

// AccountServer returns the link of the game server the account is active
// on, if any.
func (t *Table) AccountServer(login string) (*Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, l := range t.links {
		if l.IsAuthenticated() && l.HasAccount(login) {
			return l, true
		}
	}
	return nil, false
}

// authenticate validates a link's auth frame: known server id, matching
// shared key, no live link already holding the id.
func (t *Table) authenticate(l *Link, id int, key string) bool {
	if _, known := t.defByID[id]; !known {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(t.sharedKey)) != 1 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, taken := t.links[id]; taken {
		return false
	}
	t.links[id] = l
	return true
}

func (t *Table) unregister(l *Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.links[l.ServerID()]; ok && cur == l {
		delete(t.links, l.ServerID())
	}
}
