package spotify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/spotifeye/internal/config"
	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test_client_id"
	testClientSecret = "test_client_secret"
	testRedirectURI  = "http://127.0.0.1:8000/callback"
)

func newTestClient(t *testing.T, handler http.Handler) *spotify.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := config.Defaults()
	s.Spotify.ClientID = testClientID
	s.Spotify.ClientSecret = testClientSecret
	s.Spotify.RedirectURI = testRedirectURI
	s.Spotify.AuthURL = srv.URL + "/authorize"
	s.Spotify.TokenURL = srv.URL + "/api/token"
	s.Spotify.APIBaseURL = srv.URL + "/v1"
	return spotify.New(config.New(s))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_AuthCodeURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	u, err := url.Parse(c.AuthCodeURL("state-123"))
	require.NoError(t, err)
	require.Equal(t, "/authorize", u.Path)

	q := u.Query()
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "state-123", q.Get("state"))
	require.Contains(t, q.Get("scope"), "user-top-read")

	t.Run("empty state is omitted", func(t *testing.T) {
		u, err := url.Parse(c.AuthCodeURL(""))
		require.NoError(t, err)
		_, present := u.Query()["state"]
		require.False(t, present)
	})
}

func TestClient_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testClientID || pass != testClientSecret {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}
		_ = r.ParseForm()
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			switch r.PostForm.Get("code") {
			case "good-code":
				writeJSON(w, http.StatusOK, map[string]any{
					"access_token":  "access-A",
					"refresh_token": "refresh-R",
					"token_type":    "Bearer",
					"expires_in":    3600,
				})
			case "bare-code":
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			default:
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalid_grant",
					"error_description": "Invalid authorization code",
				})
			}
		case "refresh_token":
			switch r.PostForm.Get("refresh_token") {
			case "refresh-R":
				writeJSON(w, http.StatusOK, map[string]any{
					"access_token": "access-B",
					"token_type":   "Bearer",
					"expires_in":   3600,
				})
			default:
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalid_grant",
					"error_description": "Refresh token revoked",
				})
			}
		}
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		tok, err := c.Exchange(ctx, "good-code")
		require.NoError(t, err)
		require.Equal(t, "access-A", tok.AccessToken)
		require.Equal(t, "refresh-R", tok.RefreshToken)
	})

	t.Run("provider description surfaces", func(t *testing.T) {
		_, err := c.Exchange(ctx, "bad-code")
		require.ErrorIs(t, err, apperrors.ErrExchangeFailed)

		var exErr *spotify.ExchangeError
		require.ErrorAs(t, err, &exErr)
		require.Equal(t, "Invalid authorization code", exErr.Description)
	})

	t.Run("error code used without description", func(t *testing.T) {
		_, err := c.Exchange(ctx, "bare-code")
		var exErr *spotify.ExchangeError
		require.ErrorAs(t, err, &exErr)
		require.Equal(t, "invalid_request", exErr.Description)
	})

	t.Run("refresh keeps refresh token", func(t *testing.T) {
		tok, err := c.Refresh(ctx, "refresh-R")
		require.NoError(t, err)
		require.Equal(t, "access-B", tok.AccessToken)
		require.Equal(t, "refresh-R", tok.RefreshToken)
	})

	t.Run("refresh rejected", func(t *testing.T) {
		_, err := c.Refresh(ctx, "refresh-gone")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Contains(t, err.Error(), "Refresh token revoked")
	})

	t.Run("refresh without token", func(t *testing.T) {
		_, err := c.Refresh(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestClient_Resources(t *testing.T) {
	var lastQuery url.Values
	mux := http.NewServeMux()
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get("Authorization") {
			case "Bearer access-A":
				lastQuery = r.URL.Query()
				next(w, r)
			case "Bearer expired":
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"status": 401, "message": "The access token expired"},
				})
			case "Bearer throttled":
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error": map[string]any{"status": 429, "message": "API rate limit exceeded"},
				})
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}
	}
	mux.HandleFunc("GET /v1/me", authorized(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-1", "display_name": "Test User"})
	}))
	mux.HandleFunc("GET /v1/me/top/tracks", authorized(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{"id": "t1"}, {"id": "t2"}}})
	}))
	mux.HandleFunc("GET /v1/me/top/artists", authorized(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{"id": "a1"}}})
	}))
	mux.HandleFunc("GET /v1/me/player/recently-played", authorized(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{}})
	}))
	c := newTestClient(t, mux)
	ctx := context.Background()

	t.Run("current user", func(t *testing.T) {
		profile, err := c.CurrentUser(ctx, "access-A")
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"user-1","display_name":"Test User"}`, string(profile))
	})

	t.Run("expired access token", func(t *testing.T) {
		_, err := c.CurrentUser(ctx, "expired")
		require.ErrorIs(t, err, apperrors.ErrUpstreamExpired)

		var apiErr *spotify.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "The access token expired", apiErr.Message)
	})

	t.Run("other upstream failure", func(t *testing.T) {
		_, err := c.CurrentUser(ctx, "broken")
		require.ErrorIs(t, err, apperrors.ErrUpstreamError)
		require.NotErrorIs(t, err, apperrors.ErrUpstreamExpired)

		_, err = c.TopTracks(ctx, "throttled", 10, spotify.ShortTerm)
		var apiErr *spotify.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	})

	t.Run("top tracks forwards parameters", func(t *testing.T) {
		items, err := c.TopTracks(ctx, "access-A", 2, spotify.LongTerm)
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.JSONEq(t, `{"id":"t1"}`, string(items[0]))
		require.Equal(t, "2", lastQuery.Get("limit"))
		require.Equal(t, "long_term", lastQuery.Get("time_range"))
	})

	t.Run("top artists", func(t *testing.T) {
		items, err := c.TopArtists(ctx, "access-A", 20, spotify.MediumTerm)
		require.NoError(t, err)
		require.Len(t, items, 1)
	})

	t.Run("recently played empty", func(t *testing.T) {
		items, err := c.RecentlyPlayed(ctx, "access-A", 50)
		require.NoError(t, err)
		require.NotNil(t, items)
		require.Empty(t, items)
		require.Equal(t, "50", lastQuery.Get("limit"))
		require.Empty(t, lastQuery.Get("time_range"))
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		s := config.Defaults()
		s.Spotify.APIBaseURL = "http://127.0.0.1:1"
		unreachable := spotify.New(config.New(s))
		_, err := unreachable.CurrentUser(ctx, "access-A")
		require.ErrorIs(t, err, apperrors.ErrUpstreamError)
	})
}
