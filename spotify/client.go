package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/spotifeye/internal/config"
	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	spotifyendpoint "golang.org/x/oauth2/spotify"
)

const (
	DefaultAPIBaseURL = "https://api.spotify.com/v1"

	pathCurrentUser    = "/me"
	pathTopTracks      = "/me/top/tracks"
	pathTopArtists     = "/me/top/artists"
	pathRecentlyPlayed = "/me/player/recently-played"

	// maxErrorBody bounds how much of an upstream error body is read
	maxErrorBody = 64 << 10
)

// Client talks to the Spotify accounts service and Web API. All calls share one
// http.Client so the configured upstream timeout applies everywhere.
type Client struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// New builds a client from config. The public Spotify endpoints are used unless the
// config overrides them.
func New(cfg config.SpotifyConfig) *Client {
	endpoint := spotifyendpoint.Endpoint
	if u := cfg.GetAuthURL(); u != "" {
		endpoint.AuthURL = u
	}
	if u := cfg.GetTokenURL(); u != "" {
		endpoint.TokenURL = u
	}
	endpoint.AuthStyle = oauth2.AuthStyleInHeader

	apiBaseURL := cfg.GetAPIBaseURL()
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}

	timeout := cfg.GetUpstreamTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			RedirectURL:  cfg.GetRedirectURI(),
			Scopes:       cfg.GetScopes(),
			Endpoint:     endpoint,
		},
		apiBaseURL: apiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AuthCodeURL returns the consent screen URL. The state parameter is left out when
// state is empty.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a provider token pair
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, newExchangeError(err)
	}
	return tok, nil
}

// Refresh runs the refresh-token grant. The returned token keeps the old refresh token
// when the provider does not rotate it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "no refresh token")
	}
	src := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var rErr *oauth2.RetrieveError
		if apperrors.As(err, &rErr) {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "refresh rejected: %s", describeRetrieveError(rErr))
		}
		return nil, apperrors.Wrapf(apperrors.ErrUpstreamError, "refresh failed: %v", err)
	}
	return tok, nil
}

// CurrentUser is the identity probe. The raw profile body is returned unchanged.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (json.RawMessage, error) {
	body, err := c.get(ctx, accessToken, pathCurrentUser, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) TopTracks(ctx context.Context, accessToken string, limit int, timeRange TimeRange) ([]json.RawMessage, error) {
	return c.items(ctx, accessToken, pathTopTracks, url.Values{
		"limit":      {strconv.Itoa(limit)},
		"time_range": {string(timeRange)},
	})
}

func (c *Client) TopArtists(ctx context.Context, accessToken string, limit int, timeRange TimeRange) ([]json.RawMessage, error) {
	return c.items(ctx, accessToken, pathTopArtists, url.Values{
		"limit":      {strconv.Itoa(limit)},
		"time_range": {string(timeRange)},
	})
}

func (c *Client) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]json.RawMessage, error) {
	return c.items(ctx, accessToken, pathRecentlyPlayed, url.Values{
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) items(ctx context.Context, accessToken, path string, query url.Values) ([]json.RawMessage, error) {
	body, err := c.get(ctx, accessToken, path, query)
	if err != nil {
		return nil, err
	}
	var page struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrUpstreamError, "failed to decode %s", path)
	}
	if page.Items == nil {
		page.Items = []json.RawMessage{}
	}
	return page.Items, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values) ([]byte, error) {
	endpoint := c.apiBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("upstream request failed")
		return nil, apperrors.Wrapf(apperrors.ErrUpstreamError, "GET %s", path)
	}
	defer resp.Body.Close()

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newAPIError(resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrUpstreamError, "failed to read %s", path)
	}
	return body, nil
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func describeRetrieveError(err *oauth2.RetrieveError) string {
	switch {
	case err.ErrorDescription != "":
		return err.ErrorDescription
	case err.ErrorCode != "":
		return err.ErrorCode
	case err.Response != nil:
		return fmt.Sprintf("token endpoint returned %d", err.Response.StatusCode)
	default:
		return "token request rejected"
	}
}
