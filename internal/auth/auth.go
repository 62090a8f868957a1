// Package auth obtains the access token the adapter sends on every request.
// Strategies form a small closed set selected by the auth.method config key;
// the adapter never renders a login flow itself.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/inkcms/gitbridge/internal/config"
)

// Credentials is the outcome of a completed login.
type Credentials struct {
	Token string
}

// Challenge is what a caller must do to continue a login. An empty
// AuthorizeURL means there is nothing to do.
type Challenge struct {
	AuthorizeURL string
	State        string
}

// Strategy is one way of obtaining credentials.
type Strategy interface {
	// Name returns the config key selecting this strategy.
	Name() string

	// BeginLogin starts a login and describes what the caller must do next.
	BeginLogin(ctx context.Context) (*Challenge, error)

	// CompleteLogin finishes a login started by BeginLogin.
	CompleteLogin(ctx context.Context, code, state string) (*Credentials, error)
}

// NewStrategy selects a strategy from the configuration.
func NewStrategy(cfg *config.Config) (Strategy, error) {
	switch cfg.Auth.Method {
	case "private_token":
		return &TokenStrategy{token: cfg.GitLab.Token}, nil
	case "oauth":
		oc := cfg.Auth.OAuth
		return &OAuthStrategy{
			cfg: &oauth2.Config{
				ClientID:     oc.ClientID,
				ClientSecret: oc.ClientSecret,
				RedirectURL:  oc.RedirectURL,
				Scopes:       oc.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:  oc.AuthURL,
					TokenURL: oc.TokenURL,
				},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.Auth.Method)
	}
}

// TokenStrategy uses a pre-provisioned private token; there is no flow.
type TokenStrategy struct {
	token string
}

// Name returns the config key selecting this strategy.
func (s *TokenStrategy) Name() string { return "private_token" }

// BeginLogin returns an empty challenge: the token is already at hand.
func (s *TokenStrategy) BeginLogin(ctx context.Context) (*Challenge, error) {
	if s.token == "" {
		return nil, errors.New("no private token configured")
	}
	return &Challenge{}, nil
}

// CompleteLogin returns the configured token.
func (s *TokenStrategy) CompleteLogin(ctx context.Context, code, state string) (*Credentials, error) {
	if s.token == "" {
		return nil, errors.New("no private token configured")
	}
	return &Credentials{Token: s.token}, nil
}

// OAuthStrategy runs the authorization-code flow against the service's
// OAuth provider.
type OAuthStrategy struct {
	cfg *oauth2.Config

	state string
}

// Name returns the config key selecting this strategy.
func (s *OAuthStrategy) Name() string { return "oauth" }

// BeginLogin generates a state nonce and returns the authorize URL the
// caller must visit.
func (s *OAuthStrategy) BeginLogin(ctx context.Context) (*Challenge, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating login state: %w", err)
	}
	s.state = hex.EncodeToString(buf)

	return &Challenge{
		AuthorizeURL: s.cfg.AuthCodeURL(s.state),
		State:        s.state,
	}, nil
}

// CompleteLogin exchanges the authorization code for an access token.
func (s *OAuthStrategy) CompleteLogin(ctx context.Context, code, state string) (*Credentials, error) {
	if s.state == "" || state != s.state {
		return nil, errors.New("login state mismatch")
	}

	tok, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	return &Credentials{Token: tok.AccessToken}, nil
}
