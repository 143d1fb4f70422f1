package session

import (
	"context"
	"encoding/json"

	"golang.org/x/oauth2"
)

// Provider is the part of the upstream provider the validator needs
type Provider interface {
	// CurrentUser probes the access token and returns the caller's profile
	CurrentUser(ctx context.Context, accessToken string) (json.RawMessage, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Authorizer is the part of the upstream provider the exchange flow needs
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}
