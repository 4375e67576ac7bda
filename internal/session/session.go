// Package session owns the authenticated state of one profile.
//
// A profile is the unit of isolation: one stored token, one dashboard
// snapshot, one commit-list snapshot. The server mints a profile id per
// browser session; the terminal client uses a single fixed profile.
//
// Consumers receive an explicit *Session. Nothing outside this package
// reads the token store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/cache"
	"github.com/sakif/ghdash/internal/github"
	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/repository"
)

// LocalProfile is the profile used by the terminal client.
const LocalProfile = "local"

// Session is an authenticated profile: its token, the user the token
// belongs to and a client carrying that token.
type Session struct {
	Profile string
	Token   string
	User    *model.UserProfile
	Client  *github.Client
}

// NewProfileID returns a fresh, unguessable-enough profile id.
func NewProfileID() string {
	return xid.New().String()
}

// Sealer protects tokens at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// ClientFactory builds a GitHub client with no token set.
type ClientFactory func() (*github.Client, error)

// Manager implements the three session transitions: restore on load,
// set on login and clear on logout.
type Manager struct {
	tokens    repository.TokenRepository
	sealer    Sealer
	cache     *cache.Cache
	newClient ClientFactory
	logger    *slog.Logger
}

// NewManager returns a Manager storing tokens sealed by sealer and clearing
// snapshots from the given cache.
func NewManager(
	tokens repository.TokenRepository,
	sealer Sealer,
	snapshots *cache.Cache,
	newClient ClientFactory,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		tokens:    tokens,
		sealer:    sealer,
		cache:     snapshots,
		newClient: newClient,
		logger:    logger,
	}
}

// Restore rebuilds the session for profile from its stored token.
//
// It fails with apperror.ErrAuth when there is no stored token, and also
// when GitHub rejects the stored one, in which case the token is cleared
// first (automatic logout). Transport failures are returned as-is and
// leave the token in place.
func (m *Manager) Restore(ctx context.Context, profile string) (*Session, error) {
	rec, err := m.tokens.Get(ctx, profile)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Auth("Not signed in")
	}
	if err != nil {
		return nil, fmt.Errorf("session: loading token for %s: %w", profile, err)
	}

	plaintext, err := m.sealer.Open(rec.Sealed)
	if err != nil {
		m.logger.Warn("stored token cannot be opened, clearing it",
			slog.String("profile", profile),
			slog.String("error", err.Error()),
		)
		m.clear(ctx, profile)
		return nil, apperror.Auth("Not signed in")
	}

	sess, err := m.validate(ctx, profile, string(plaintext))
	if err != nil {
		if errors.Is(err, apperror.ErrAPI) || errors.Is(err, apperror.ErrAuth) {
			m.logger.Info("stored token rejected by GitHub, logging out",
				slog.String("profile", profile),
				slog.String("error", err.Error()),
			)
			m.clear(ctx, profile)
			return nil, &apperror.AppError{
				Err:     apperror.ErrAuth,
				Message: "Stored GitHub token is no longer valid",
				Cause:   err,
			}
		}
		return nil, fmt.Errorf("session: validating stored token: %w", err)
	}

	return sess, nil
}

// Login validates token against GitHub and, only if it is accepted,
// stores it for profile. A rejected token leaves any existing session of
// the profile untouched. When the token belongs to a different account
// than the one stored before, the profile's cached snapshots are dropped.
func (m *Manager) Login(ctx context.Context, profile, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.Auth("Invalid GitHub token")
	}

	sess, err := m.validate(ctx, profile, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.logger.Info("login rejected",
			slog.String("profile", profile),
			slog.String("error", err.Error()),
		)
		return nil, &apperror.AppError{
			Err:     apperror.ErrAuth,
			Message: "Invalid GitHub token",
			Cause:   err,
		}
	}

	sealed, err := m.sealer.Seal([]byte(token))
	if err != nil {
		return nil, fmt.Errorf("session: sealing token: %w", err)
	}
	prevLogin, err := m.storedLogin(ctx, profile)
	if err != nil {
		return nil, err
	}
	rec := &repository.TokenRecord{Profile: profile, Sealed: sealed, Login: sess.User.Login}
	if err := m.tokens.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("session: saving token: %w", err)
	}
	if prevLogin != sess.User.Login {
		if err := m.cache.DiscardProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("session: clearing snapshots of %s: %w", profile, err)
		}
		if prevLogin != "" {
			m.logger.Info("account switched, snapshots cleared",
				slog.String("profile", profile),
				slog.String("from", prevLogin),
				slog.String("to", sess.User.Login),
			)
		}
	}

	m.logger.Info("signed in",
		slog.String("profile", profile),
		slog.String("login", sess.User.Login),
	)
	return sess, nil
}

// Logout deletes the profile's token and both cached snapshots.
// Logging out a profile that is not signed in is not an error.
func (m *Manager) Logout(ctx context.Context, profile string) error {
	err := errors.Join(
		m.tokens.Delete(ctx, profile),
		m.cache.DiscardProfile(ctx, profile),
	)
	if err != nil {
		return fmt.Errorf("session: logging out %s: %w", profile, err)
	}
	m.logger.Info("signed out", slog.String("profile", profile))
	return nil
}

// storedLogin returns the account login recorded with the profile's token,
// or "" when none is stored.
func (m *Manager) storedLogin(ctx context.Context, profile string) (string, error) {
	rec, err := m.tokens.Get(ctx, profile)
	if errors.Is(err, apperror.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: loading token for %s: %w", profile, err)
	}
	return rec.Login, nil
}

func (m *Manager) validate(ctx context.Context, profile, token string) (*Session, error) {
	client, err := m.newClient()
	if err != nil {
		return nil, fmt.Errorf("session: creating client: %w", err)
	}
	client.SetToken(token)

	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	return &Session{
		Profile: profile,
		Token:   token,
		User:    user,
		Client:  client,
	}, nil
}

func (m *Manager) clear(ctx context.Context, profile string) {
	if err := m.Logout(ctx, profile); err != nil {
		m.logger.Warn("failed to clear profile",
			slog.String("profile", profile),
			slog.String("error", err.Error()),
		)
	}
}
