package session

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/internal/metrics"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/jrsteele09/spotifeye/token"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const TokenTypeBearer = "bearer"

// Session is handed to the client after a successful authorization code exchange
type Session struct {
	Token                string `json:"access_token"`
	TokenType            string `json:"token_type"`
	ProviderAccessToken  string `json:"spotify_access_token"`
	ProviderRefreshToken string `json:"spotify_refresh_token"`
	ExpiresIn            int64  `json:"expires_in"`
}

// Flow drives the authorization code grant and logout
type Flow struct {
	authorizer   Authorizer
	codec        *token.Codec
	registry     token.RevocationRegistry
	metrics      *metrics.Metrics
	requireState bool
	stateTTL     time.Duration
}

type FlowOption func(*Flow)

// WithStateCheck enables a signed, single-use state parameter on the consent redirect
func WithStateCheck(ttl time.Duration) FlowOption {
	return func(f *Flow) {
		f.requireState = true
		f.stateTTL = ttl
	}
}

func WithFlowMetrics(m *metrics.Metrics) FlowOption {
	return func(f *Flow) {
		f.metrics = m
	}
}

func NewFlow(authorizer Authorizer, codec *token.Codec, registry token.RevocationRegistry, options ...FlowOption) *Flow {
	f := &Flow{
		authorizer: authorizer,
		codec:      codec,
		registry:   registry,
		stateTTL:   10 * time.Minute,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Begin returns the provider consent URL
func (f *Flow) Begin(ctx context.Context) (string, error) {
	state := ""
	if f.requireState {
		var err error
		state, err = f.codec.IssueState(f.stateTTL)
		if err != nil {
			return "", apperrors.Wrapf(apperrors.ErrInternal, "issue state: %v", err)
		}
	}
	zerolog.Ctx(ctx).Debug().Bool("state", state != "").Msg("generated authorization URL")
	return f.authorizer.AuthCodeURL(state), nil
}

// Complete exchanges an authorization code and mints a session token. Provider
// rejections are returned as *spotify.ExchangeError.
func (f *Flow) Complete(ctx context.Context, code, state string) (*Session, error) {
	logger := zerolog.Ctx(ctx)

	if strings.TrimSpace(code) == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidParameter, "code is required")
	}
	if f.requireState {
		if err := f.consumeState(ctx, state); err != nil {
			logger.Warn().Err(err).Msg("authorization state rejected")
			f.metrics.Exchange(err)
			return nil, err
		}
	}

	tok, err := f.authorizer.Exchange(ctx, code)
	f.metrics.Exchange(err)
	if err != nil {
		logger.Error().Err(err).Msg("error getting access token")
		var exErr *spotify.ExchangeError
		if apperrors.As(err, &exErr) {
			return nil, exErr
		}
		return nil, spotify.NewExchangeError("")
	}
	if tok.AccessToken == "" {
		return nil, spotify.NewExchangeError("provider returned no access token")
	}

	raw, err := f.codec.Issue(token.Claims{
		ProviderAccessToken:  tok.AccessToken,
		ProviderRefreshToken: tok.RefreshToken,
	}, 0)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "issue session token: %v", err)
	}

	logger.Info().Msg("successfully created session token")
	return &Session{
		Token:                raw,
		TokenType:            TokenTypeBearer,
		ProviderAccessToken:  tok.AccessToken,
		ProviderRefreshToken: tok.RefreshToken,
		ExpiresIn:            f.expiresIn(tok),
	}, nil
}

// Logout revokes a session token. The signature must verify but expiry is ignored, so
// an expired session can still be logged out. Repeated calls succeed.
func (f *Flow) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return apperrors.ErrMissingCredentials
	}
	claims, err := f.codec.ParseIgnoringExpiry(raw)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("logout with invalid token")
		return apperrors.ErrInvalidCredentials
	}

	first, err := f.registry.TryRevoke(ctx, raw, claims.ExpiresAt)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("error revoking session token")
		return apperrors.Wrapf(apperrors.ErrInternal, "revoke")
	}
	if first {
		f.metrics.Revoked()
		zerolog.Ctx(ctx).Info().Str("jti", claims.ID).Msg("session token revoked")
	}
	return nil
}

func (f *Flow) consumeState(ctx context.Context, state string) error {
	claims, err := f.codec.ParseState(state)
	if err != nil {
		return spotify.NewExchangeError("invalid state parameter")
	}
	first, err := f.registry.TryRevoke(ctx, state, claims.ExpiresAt)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInternal, "record state: %v", err)
	}
	if !first {
		return spotify.NewExchangeError("state parameter already used")
	}
	return nil
}

// expiresIn reports the provider token lifetime in seconds, falling back to the
// session lifetime when the provider gave none
func (f *Flow) expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			return int64(d.Round(time.Second).Seconds())
		}
	}
	return int64(f.codec.DefaultTTL().Seconds())
}
