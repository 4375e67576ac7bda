package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider wraps golang.org/x/oauth2 for the optional "Sign in with
// GitHub" button. It only obtains an access token; the token then goes
// through exactly the same validation and storage as a pasted PAT.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. The server redirects the user to GitHub's authorization endpoint.
// 2. The user approves the request on GitHub.
// 3. GitHub redirects back to the callback URL with a short-lived "code".
// 4. The server exchanges the code for an access token (server-to-server).
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// Scopes requested:
//   - "read:user" — profile, followers, following
//   - "repo"      — repository list and commit history, including private repos
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "repo"},
			Endpoint:     github.Endpoint,
		},
	}
}

// WithEndpoint overrides GitHub's OAuth endpoints (used in tests).
func (p *GitHubProvider) WithEndpoint(ep oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = ep
	return p
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is echoed back on the callback and must be checked against the
// value stored in the visitor's cookie (CSRF protection).
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a GitHub access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("auth: GitHub returned an empty access token")
	}
	return tok.AccessToken, nil
}
