package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/login/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

// AccountRepo implements auth.AccountStore over PostgreSQL.
type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Load(ctx context.Context, login string) (*auth.Account, error) {
	acc := &auth.Account{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT login, password_hash, access_level, last_server
		 FROM accounts WHERE login = $1`, login,
	).Scan(&acc.Login, &acc.PasswordHash, &acc.AccessLevel, &acc.LastServer)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *AccountRepo) Create(ctx context.Context, login, rawPassword, ip string) (*auth.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &auth.Account{
		Login:        login,
		PasswordHash: string(hash),
		LastServer:   1,
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO accounts (login, password_hash, last_ip, last_active)
		 VALUES ($1, $2, $3, NOW())`,
		acc.Login, acc.PasswordHash, ip,
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

func (r *AccountRepo) UpdateLastActive(ctx context.Context, login, ip string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_active = NOW(), last_ip = $2 WHERE login = $1`,
		login, ip,
	)
	return err
}

func (r *AccountRepo) UpdateLastServer(ctx context.Context, login string, serverID int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_server = $2 WHERE login = $1`,
		login, serverID,
	)
	return err
}

func (r *AccountRepo) SetAccessLevel(ctx context.Context, login string, level int) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET access_level = $2 WHERE login = $1`,
		login, level,
	)
	return err
}
