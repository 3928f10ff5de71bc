package persist

import (
	"context"
	"time"
)

// BanRow is one durable address ban. A nil ExpiresAt means permanent.
type BanRow struct {
	Address   string
	ExpiresAt *time.Time
}

// BanRepo stores administrative and threshold-promoted address bans so they
// survive restarts. Failure counters stay memory-only.
type BanRepo struct {
	db *DB
}

func NewBanRepo(db *DB) *BanRepo {
	return &BanRepo{db: db}
}

// LoadAll returns every ban that has not yet expired. Expired rows are
// dropped on the way out.
func (r *BanRepo) LoadAll(ctx context.Context) ([]BanRow, error) {
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM address_bans WHERE expires_at IS NOT NULL AND expires_at < NOW()`,
	); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT address, expires_at FROM address_bans`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []BanRow
	for rows.Next() {
		var b BanRow
		if err := rows.Scan(&b.Address, &b.ExpiresAt); err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

// Upsert writes a ban through; expiresAt nil means permanent.
func (r *BanRepo) Upsert(ctx context.Context, address string, expiresAt *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO address_bans (address, expires_at) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		address, expiresAt,
	)
	return err
}

// Delete removes a ban row; removing a missing row is not an error.
func (r *BanRepo) Delete(ctx context.Context, address string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM address_bans WHERE address = $1`, address,
	)
	return err
}
