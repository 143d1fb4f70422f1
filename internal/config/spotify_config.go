package config

import (
	"strings"
	"time"
)

type SpotifyConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetAuthURL() string
	GetTokenURL() string
	GetAPIBaseURL() string
	GetUpstreamTimeout() time.Duration
}

type SpotifySettings struct {
	ClientID               string `toml:"client_id"`
	ClientSecret           string `toml:"client_secret"`
	RedirectURI            string `toml:"redirect_uri"`
	Scopes                 string `toml:"scopes"`
	AuthURL                string `toml:"auth_url"`
	TokenURL               string `toml:"token_url"`
	APIBaseURL             string `toml:"api_base_url"`
	UpstreamTimeoutSeconds int    `toml:"upstream_timeout_seconds"`
}

const defaultScopes = "user-read-private user-read-email user-top-read user-read-recently-played"

func (c mainConfig) GetClientID() string {
	return c.s.Spotify.ClientID
}

func (c mainConfig) GetClientSecret() string {
	return c.s.Spotify.ClientSecret
}

func (c mainConfig) GetRedirectURI() string {
	return c.s.Spotify.RedirectURI
}

// GetScopes splits the configured scope string on spaces and commas
func (c mainConfig) GetScopes() []string {
	return strings.FieldsFunc(c.s.Spotify.Scopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// GetAuthURL is empty unless overridden; the provider client then uses the public endpoint
func (c mainConfig) GetAuthURL() string {
	return c.s.Spotify.AuthURL
}

func (c mainConfig) GetTokenURL() string {
	return c.s.Spotify.TokenURL
}

func (c mainConfig) GetAPIBaseURL() string {
	return strings.TrimRight(c.s.Spotify.APIBaseURL, "/")
}

func (c mainConfig) GetUpstreamTimeout() time.Duration {
	return seconds(c.s.Spotify.UpstreamTimeoutSeconds)
}
