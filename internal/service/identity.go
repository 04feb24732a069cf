package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/workos/workos-go/v6/pkg/usermanagement"

	"lumen.app/companion/core/config"
)

// Identity is the profile an identity provider vouches for after login.
type Identity struct {
	Email     string
	Name      string
	Picture   string
	SubjectID string
}

type IdentityProvider interface {
	AuthorizationURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*Identity, error)
}

type workosIdentityProvider struct {
	cfg config.WorkOSConfig
}

// NewWorkOSIdentityProvider signs users in through WorkOS User Management
// with cfg.Provider (Google by default).
func NewWorkOSIdentityProvider(cfg config.WorkOSConfig) IdentityProvider {
	usermanagement.SetAPIKey(cfg.APIKey)
	if cfg.Provider == "" {
		cfg.Provider = "GoogleOAuth"
	}
	return &workosIdentityProvider{cfg: cfg}
}

func (p *workosIdentityProvider) AuthorizationURL(state string) (string, error) {
	url, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    p.cfg.ClientID,
		RedirectURI: p.cfg.RedirectURI,
		State:       state,
		Provider:    p.cfg.Provider,
	})
	if err != nil {
		return "", fmt.Errorf("generating authorization URL: %w", err)
	}
	return url.String(), nil
}

func (p *workosIdentityProvider) ExchangeCode(ctx context.Context, code string) (*Identity, error) {
	resp, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: p.cfg.ClientID,
		Code:     code,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticating with code: %w", err)
	}

	u := resp.User
	return &Identity{
		Email:     u.Email,
		Name:      displayName(u.FirstName, u.LastName, u.Email),
		Picture:   u.ProfilePictureURL,
		SubjectID: u.ID,
	}, nil
}

func displayName(first, last, email string) string {
	name := strings.TrimSpace(first + " " + last)
	if name != "" {
		return name
	}
	return email
}
