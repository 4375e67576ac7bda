package github

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/sakif/ghdash/internal/apperror"
)

// mediaTypeCommitSearch is the preview media type GitHub historically
// required for /search/commits.
const mediaTypeCommitSearch = "application/vnd.github.cloak-preview"

// tokenSource hands the client's current PAT to oauth2.Transport.
//
// TokenType "token" makes oauth2 send the header GitHub documents for
// personal access tokens:
//
//	Authorization: token <PAT>
//
// The token never expires from oauth2's point of view (zero Expiry), so
// every request re-reads the current value and SetToken takes effect
// immediately.
type tokenSource struct {
	c *Client
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	tok := s.c.Token()
	if tok == "" {
		return nil, apperror.Auth("No GitHub token set")
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "token"}, nil
}

// transport sits under oauth2.Transport. It waits on the outbound rate
// limiter and switches the Accept header for commit search.
type transport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	if strings.HasSuffix(req.URL.Path, "/search/commits") {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("Accept", mediaTypeCommitSearch)
	}

	return t.base.RoundTrip(req)
}

// newLimiter converts a requests-per-minute budget into a token bucket that
// allows the whole minute's budget as a burst. perMinute <= 0 disables it.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
}
