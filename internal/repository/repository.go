// Package repository declares the storage contracts the services depend on.
// Implementations live in subpackages (sqlite).
package repository

import (
	"context"
	"time"
)

// TokenRecord is a profile's stored GitHub token. The token itself is kept
// sealed; only the session layer can open it.
type TokenRecord struct {
	Profile   string
	Sealed    []byte
	Login     string // GitHub login the token belonged to when saved
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenRepository holds at most one token per profile.
type TokenRepository interface {
	// Save inserts or replaces the profile's token.
	Save(ctx context.Context, rec *TokenRecord) error
	// Get returns apperror.ErrNotFound when the profile has no token.
	Get(ctx context.Context, profile string) (*TokenRecord, error)
	// Delete removes the profile's token. Deleting a missing token is not
	// an error.
	Delete(ctx context.Context, profile string) error
}
