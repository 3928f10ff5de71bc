package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeStore is an in-memory AccountStore. Password "hashes" are the plain
// password, which is enough for pipeline tests.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*Account

	loadErr       error
	createErr     error
	lastActiveErr error

	created []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]*Account)}
}

func (s *fakeStore) put(login, password string, accessLevel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[login] = &Account{Login: login, PasswordHash: password, AccessLevel: accessLevel}
}

func (s *fakeStore) Load(ctx context.Context, login string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	a, ok := s.accounts[login]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) Create(ctx context.Context, login, password, ip string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	a := &Account{Login: login, PasswordHash: password}
	s.accounts[login] = a
	s.created = append(s.created, login)
	cp := *a
	return &cp, nil
}

func (s *fakeStore) ValidatePassword(hash, password string) bool {
	return hash == password
}

func (s *fakeStore) UpdateLastActive(ctx context.Context, login, ip string) error {
	return s.lastActiveErr
}

func (s *fakeStore) UpdateLastServer(ctx context.Context, login string, serverID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[login]; ok {
		a.LastServer = serverID
	}
	return nil
}

func (s *fakeStore) SetAccessLevel(ctx context.Context, login string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[login]; ok {
		a.AccessLevel = level
	}
	return nil
}

// fakeClient records the disconnect reason it was handed.
type fakeClient struct {
	account     string
	connectedAt time.Time
	progressed  atomic.Bool
	key         SessionKey

	mu           sync.Mutex
	disconnected bool
	reason       DisconnectReason
}

func newFakeClient(account string) *fakeClient {
	return &fakeClient{account: account, connectedAt: time.Now()}
}

func (c *fakeClient) Account() string        { return c.account }
func (c *fakeClient) ConnectedAt() time.Time { return c.connectedAt }
func (c *fakeClient) Progressed() bool       { return c.progressed.Load() }
func (c *fakeClient) SessionKey() SessionKey { return c.key }

func (c *fakeClient) Disconnect(reason DisconnectReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return
	}
	c.disconnected = true
	c.reason = reason
}

func (c *fakeClient) wasDisconnected() (bool, DisconnectReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected, c.reason
}

// fakePresence reports a fixed set of accounts as in-world.
type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
	calls  int
}

func newFakePresence(accounts ...string) *fakePresence {
	online := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		online[a] = true
	}
	return &fakePresence{online: online}
}

func (p *fakePresence) IsAccountOnAny(login string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.online[login]
}
