package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/repository"
)

// compile-time check that *TokenDB implements repository.TokenRepository
var _ repository.TokenRepository = (*TokenDB)(nil)

// TokenDB stores one sealed token per profile.
type TokenDB struct {
	conn *sql.DB
}

// Save inserts or replaces the profile's token.
//
// UPSERT:
// "INSERT ... ON CONFLICT(profile) DO UPDATE" keeps the row's original
// created_at, so re-login on the same profile only moves updated_at.
// rec.CreatedAt and rec.UpdatedAt are filled in from what was written.
func (t *TokenDB) Save(ctx context.Context, rec *repository.TokenRecord) error {
	if rec.Profile == "" {
		return apperror.ValidationFailed("profile", "profile must not be empty")
	}
	if len(rec.Sealed) == 0 {
		return apperror.ValidationFailed("token", "token must not be empty")
	}

	now := time.Now().UTC()
	_, err := t.conn.ExecContext(ctx,
		`INSERT INTO tokens (profile, token_sealed, login, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET
			token_sealed = excluded.token_sealed,
			login        = excluded.login,
			updated_at   = excluded.updated_at`,
		rec.Profile,
		rec.Sealed,
		rec.Login,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving token for profile %s: %w", rec.Profile, err)
	}

	stored, err := t.Get(ctx, rec.Profile)
	if err != nil {
		return err
	}
	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// Get returns the profile's token record.
// Returns apperror.ErrNotFound if the profile has none.
func (t *TokenDB) Get(ctx context.Context, profile string) (*repository.TokenRecord, error) {
	var rec repository.TokenRecord

	err := t.conn.QueryRowContext(ctx,
		`SELECT profile, token_sealed, login, created_at, updated_at
		 FROM tokens WHERE profile = ?`,
		profile,
	).Scan(
		&rec.Profile,
		&rec.Sealed,
		&rec.Login,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("token", profile)
		}
		return nil, fmt.Errorf("sqlite: getting token for profile %s: %w", profile, err)
	}

	return &rec, nil
}

// Delete removes the profile's token. A missing token is not an error:
// logout must be idempotent.
func (t *TokenDB) Delete(ctx context.Context, profile string) error {
	_, err := t.conn.ExecContext(ctx, `DELETE FROM tokens WHERE profile = ?`, profile)
	if err != nil {
		return fmt.Errorf("sqlite: deleting token for profile %s: %w", profile, err)
	}
	return nil
}
