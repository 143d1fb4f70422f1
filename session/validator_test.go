package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/internal/metrics"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/jrsteele09/spotifeye/spotify/fakeprovider"
	"github.com/jrsteele09/spotifeye/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	secretStr        = "test_secret_key"
	testAccessToken  = "A"
	testRefreshToken = "R"
	testNewAccess    = "B"
	testProfile      = `{"id":"user-1","display_name":"Test User"}`
)

// testFixture holds all test dependencies
type testFixture struct {
	now       time.Time
	codec     *token.Codec
	registry  *token.InMemoryRevocationRegistry
	provider  *fakeprovider.Provider
	metrics   *metrics.Metrics
	validator *session.Validator
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{now: time.Now()}
	f.codec = token.NewCodec(token.NewHMACSigner(secretStr), token.WithNowFunc(func() time.Time { return f.now }))
	f.registry = token.NewInMemoryRevocationRegistry()
	f.provider = fakeprovider.New()
	f.metrics = metrics.New(prometheus.NewRegistry())
	f.validator = session.NewValidator(f.codec, f.registry, f.provider, session.WithValidatorMetrics(f.metrics))

	f.provider.AddAccessToken(testAccessToken, json.RawMessage(testProfile))
	return f
}

func (f *testFixture) issue(t *testing.T, access, refresh string) string {
	t.Helper()
	raw, err := f.codec.Issue(token.Claims{ProviderAccessToken: access, ProviderRefreshToken: refresh}, 0)
	require.NoError(t, err)
	return raw
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token returns probe profile", func(t *testing.T) {
		f := setupTestFixture(t)
		raw := f.issue(t, testAccessToken, testRefreshToken)

		v, err := f.validator.Validate(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, testAccessToken, v.ProviderAccessToken)
		require.JSONEq(t, testProfile, string(v.Profile))
		require.EqualValues(t, 1, f.provider.ProbeCalls())
		require.EqualValues(t, 0, f.provider.RefreshCalls())
		require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionValidations.WithLabelValues(metrics.OutcomeValid)))
	})

	t.Run("missing token", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.validator.Validate(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrMissingCredentials)
		require.EqualValues(t, 0, f.provider.ProbeCalls())
	})

	t.Run("garbage token", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.validator.Validate(ctx, "not.a.token")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.EqualValues(t, 0, f.provider.ProbeCalls())
	})

	t.Run("expired session token", func(t *testing.T) {
		f := setupTestFixture(t)
		raw := f.issue(t, testAccessToken, testRefreshToken)
		f.now = f.now.Add(token.DefaultSessionTTL + 2*time.Second)

		_, err := f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.EqualValues(t, 0, f.provider.ProbeCalls())
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		f := setupTestFixture(t)
		other := token.NewCodec(token.NewHMACSigner("another_secret"))
		raw, err := other.Issue(token.Claims{ProviderAccessToken: testAccessToken}, 0)
		require.NoError(t, err)

		_, err = f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("revoked token never validates", func(t *testing.T) {
		f := setupTestFixture(t)
		raw := f.issue(t, testAccessToken, testRefreshToken)
		require.NoError(t, f.registry.Revoke(ctx, raw, f.now.Add(time.Hour)))
		require.NoError(t, f.registry.Revoke(ctx, raw, f.now.Add(time.Hour)))

		for i := 0; i < 3; i++ {
			_, err := f.validator.Validate(ctx, raw)
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		}
		require.EqualValues(t, 0, f.provider.ProbeCalls())
		require.Equal(t, 3.0, testutil.ToFloat64(f.metrics.SessionValidations.WithLabelValues(metrics.OutcomeRevoked)))
	})

	t.Run("registry failure fails closed", func(t *testing.T) {
		f := setupTestFixture(t)
		v := session.NewValidator(f.codec, failingRegistry{}, f.provider)
		raw := f.issue(t, testAccessToken, testRefreshToken)

		_, err := v.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.EqualValues(t, 0, f.provider.ProbeCalls())
	})

	t.Run("non expiry probe failure is upstream error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.FailProbe(apperrors.Wrapf(apperrors.ErrUpstreamError, "boom"))
		raw := f.issue(t, testAccessToken, testRefreshToken)

		_, err := f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrUpstreamError)
		require.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.EqualValues(t, 0, f.provider.RefreshCalls())
	})
}

func TestValidator_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("expired provider token is refreshed", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.ExpireAccessToken(testAccessToken)
		f.provider.AddRefreshToken(testRefreshToken, &oauth2.Token{AccessToken: testNewAccess})
		raw := f.issue(t, testAccessToken, testRefreshToken)

		_, err := f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		var refreshed *session.RefreshedError
		require.ErrorAs(t, err, &refreshed)
		require.NotEmpty(t, refreshed.SessionToken)
		require.NotEqual(t, raw, refreshed.SessionToken)

		claims, err := f.codec.Parse(refreshed.SessionToken)
		require.NoError(t, err)
		require.Equal(t, testNewAccess, claims.ProviderAccessToken)
		require.Equal(t, testRefreshToken, claims.ProviderRefreshToken)
		require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokenRefreshes.WithLabelValues(metrics.ResultSuccess)))

		t.Run("new token validates", func(t *testing.T) {
			f.provider.AddAccessToken(testNewAccess, json.RawMessage(testProfile))
			v, err := f.validator.Validate(ctx, refreshed.SessionToken)
			require.NoError(t, err)
			require.Equal(t, testNewAccess, v.ProviderAccessToken)
		})
	})

	t.Run("rotated refresh token is embedded", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.ExpireAccessToken(testAccessToken)
		f.provider.AddRefreshToken(testRefreshToken, &oauth2.Token{AccessToken: testNewAccess, RefreshToken: "R2"})
		raw := f.issue(t, testAccessToken, testRefreshToken)

		_, err := f.validator.Validate(ctx, raw)
		var refreshed *session.RefreshedError
		require.ErrorAs(t, err, &refreshed)

		claims, err := f.codec.Parse(refreshed.SessionToken)
		require.NoError(t, err)
		require.Equal(t, "R2", claims.ProviderRefreshToken)
	})

	t.Run("no refresh token embedded", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.ExpireAccessToken(testAccessToken)
		raw := f.issue(t, testAccessToken, "")

		_, err := f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		var refreshed *session.RefreshedError
		require.False(t, errors.As(err, &refreshed))
		require.EqualValues(t, 0, f.provider.RefreshCalls())
	})

	t.Run("refresh rejected by provider", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.ExpireAccessToken(testAccessToken)
		raw := f.issue(t, testAccessToken, "unknown-refresh")

		_, err := f.validator.Validate(ctx, raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		var refreshed *session.RefreshedError
		require.False(t, errors.As(err, &refreshed))
		require.EqualValues(t, 1, f.provider.RefreshCalls())
		require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokenRefreshes.WithLabelValues(metrics.ResultFailure)))
	})

	t.Run("concurrent refreshes are coalesced", func(t *testing.T) {
		const callers = 8
		f := setupTestFixture(t)
		f.provider.ExpireAccessToken(testAccessToken)
		f.provider.AddRefreshToken(testRefreshToken, &oauth2.Token{AccessToken: testNewAccess})
		raw := f.issue(t, testAccessToken, testRefreshToken)

		var probes sync.WaitGroup
		probes.Add(callers)
		f.provider.SetProbeHook(func() {
			probes.Done()
			probes.Wait()
		})
		release := make(chan struct{})
		f.provider.SetRefreshHook(func() {
			<-release
		})

		var wg sync.WaitGroup
		tokens := make([]string, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.validator.Validate(ctx, raw)
				var refreshed *session.RefreshedError
				if assert.ErrorAs(t, err, &refreshed) {
					tokens[i] = refreshed.SessionToken
				}
			}(i)
		}

		probes.Wait()
		time.Sleep(100 * time.Millisecond)
		close(release)
		wg.Wait()

		require.EqualValues(t, 1, f.provider.RefreshCalls())
		for _, tok := range tokens {
			require.Equal(t, tokens[0], tok)
		}
	})
}

type failingRegistry struct{}

func (failingRegistry) Revoke(context.Context, string, time.Time) error {
	return errors.New("registry unavailable")
}

func (failingRegistry) TryRevoke(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("registry unavailable")
}

func (failingRegistry) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("registry unavailable")
}
