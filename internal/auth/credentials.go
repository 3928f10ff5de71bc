package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrInvalidCredentials covers unknown accounts, wrong passwords and store
// failures alike. Store failures fail closed: the caller is never told more
// than "invalid credentials" and never reaches an authenticated state.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore verifies a login/password pair against the account store,
// auto-provisioning unknown accounts when enabled. Failed attempts are
// reported to the ban tracker; a success clears the address's counter.
type CredentialStore struct {
	store      AccountStore
	bans       *BanTracker
	autoCreate bool
	log        *zap.Logger
}

func NewCredentialStore(store AccountStore, bans *BanTracker, autoCreate bool, log *zap.Logger) *CredentialStore {
	return &CredentialStore{
		store:      store,
		bans:       bans,
		autoCreate: autoCreate,
		log:        log,
	}
}

// Verify returns the account record when the password matches, or
// ErrInvalidCredentials for every failure.
func (s *CredentialStore) Verify(ctx context.Context, address, login, password string) (*Account, error) {
	return s.verify(ctx, address, login, password, true)
}

func (s *CredentialStore) verify(ctx context.Context, address, login, password string, allowCreate bool) (*Account, error) {
	account, err := s.store.Load(ctx, login)
	if err != nil {
		s.log.Error("account load failed", zap.String("login", login), zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	if account != nil {
		if !s.store.ValidatePassword(account.PasswordHash, password) {
			s.bans.RecordFailure(address)
			return nil, ErrInvalidCredentials
		}
		s.bans.ClearFailures(address)
		return account, nil
	}

	if !allowCreate || !s.autoCreate {
		s.bans.RecordFailure(address)
		return nil, ErrInvalidCredentials
	}

	if _, err := s.store.Create(ctx, login, password, address); err != nil {
		s.log.Warn("auto create account failed", zap.String("login", login), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	s.log.Info("auto created account", zap.String("login", login), zap.String("ip", address))

	// Single retry through the normal path; allowCreate=false stops recursion.
	return s.verify(ctx, address, login, password, false)
}
