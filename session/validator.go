package session

import (
	"context"
	"encoding/json"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/internal/metrics"
	"github.com/jrsteele09/spotifeye/token"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Validated is the result of a successful validation. Profile is the probe's response
// body so callers serving the profile need no second upstream call.
type Validated struct {
	ProviderAccessToken string
	Profile             json.RawMessage
}

// RefreshedError rejects the current call after the provider token was refreshed. The
// caller must retry with SessionToken.
type RefreshedError struct {
	SessionToken string
}

func (e *RefreshedError) Error() string {
	return "provider access token expired; retry with the refreshed session token"
}

func (e *RefreshedError) Unwrap() error {
	return apperrors.ErrInvalidCredentials
}

// Validator authenticates session tokens against the codec, the revocation registry
// and the provider, refreshing the provider token when the probe reports it expired.
type Validator struct {
	codec     *token.Codec
	registry  token.RevocationRegistry
	provider  Provider
	metrics   *metrics.Metrics
	refreshes singleflight.Group
}

type ValidatorOption func(*Validator)

func WithValidatorMetrics(m *metrics.Metrics) ValidatorOption {
	return func(v *Validator) {
		v.metrics = m
	}
}

func NewValidator(codec *token.Codec, registry token.RevocationRegistry, provider Provider, options ...ValidatorOption) *Validator {
	v := &Validator{
		codec:    codec,
		registry: registry,
		provider: provider,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate runs a raw session token through signature, revocation and probe checks.
// Errors satisfy errors.Is against ErrMissingCredentials, ErrInvalidCredentials or
// ErrUpstreamError. A *RefreshedError carries a new session token.
func (v *Validator) Validate(ctx context.Context, raw string) (*Validated, error) {
	logger := zerolog.Ctx(ctx)

	if raw == "" {
		v.metrics.Validation(metrics.OutcomeMissing)
		return nil, apperrors.ErrMissingCredentials
	}

	claims, err := v.codec.Parse(raw)
	if err != nil {
		logger.Debug().Err(err).Msg("session token rejected")
		v.metrics.Validation(metrics.OutcomeInvalid)
		return nil, apperrors.ErrInvalidCredentials
	}

	revoked, err := v.registry.IsRevoked(ctx, raw)
	if err != nil {
		logger.Error().Err(err).Msg("revocation lookup failed")
		v.metrics.Validation(metrics.OutcomeInvalid)
		return nil, apperrors.ErrInvalidCredentials
	}
	if revoked {
		logger.Warn().Str("jti", claims.ID).Msg("attempted to use revoked session token")
		v.metrics.Validation(metrics.OutcomeRevoked)
		return nil, apperrors.ErrInvalidCredentials
	}

	profile, err := v.provider.CurrentUser(ctx, claims.ProviderAccessToken)
	switch {
	case err == nil:
		v.metrics.Validation(metrics.OutcomeValid)
		return &Validated{
			ProviderAccessToken: claims.ProviderAccessToken,
			Profile:             profile,
		}, nil
	case apperrors.Is(err, apperrors.ErrUpstreamExpired):
		return nil, v.refresh(ctx, raw, claims)
	default:
		logger.Error().Err(err).Msg("identity probe failed")
		v.metrics.Validation(metrics.OutcomeUpstream)
		return nil, apperrors.Wrapf(apperrors.ErrUpstreamError, "identity probe")
	}
}

// refresh exchanges the embedded refresh token once per raw session token, however many
// requests race on it. No lock is held across the upstream call.
func (v *Validator) refresh(ctx context.Context, raw string, claims *token.Claims) error {
	logger := zerolog.Ctx(ctx)

	if claims.ProviderRefreshToken == "" {
		logger.Info().Msg("provider token expired and no refresh token is embedded")
		v.metrics.Validation(metrics.OutcomeInvalid)
		return apperrors.ErrInvalidCredentials
	}

	logger.Info().Str("jti", claims.ID).Msg("provider token expired, attempting refresh")
	result, err, shared := v.refreshes.Do(raw, func() (any, error) {
		tok, err := v.provider.Refresh(context.WithoutCancel(ctx), claims.ProviderRefreshToken)
		v.metrics.Refresh(err)
		if err != nil {
			return "", err
		}
		return v.codec.Issue(token.Claims{
			ProviderAccessToken:  tok.AccessToken,
			ProviderRefreshToken: tok.RefreshToken,
		}, 0)
	})
	if err != nil {
		logger.Error().Err(err).Msg("error refreshing provider token")
		v.metrics.Validation(metrics.OutcomeInvalid)
		return apperrors.ErrInvalidCredentials
	}

	logger.Info().Bool("shared", shared).Msg("refreshed provider token")
	v.metrics.Validation(metrics.OutcomeRefreshed)
	return &RefreshedError{SessionToken: result.(string)}
}
