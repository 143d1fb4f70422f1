package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	SpotifyConfig
	SecurityConfig
	RevocationConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetHost() string
	GetPort() int
	GetAddr() string
	GetAPIPrefix() string
	GetFrontendURL() string
	GetFrontendCallbackURL() string
}

// Settings is the complete, immutable set of values the process runs with.
// It is built once by Load (or directly by tests) and never mutated afterwards.
type Settings struct {
	Server     ServerSettings     `toml:"server"`
	Frontend   FrontendSettings   `toml:"frontend"`
	Spotify    SpotifySettings    `toml:"spotify"`
	Security   SecuritySettings   `toml:"security"`
	Revocation RevocationSettings `toml:"revocation"`
	RateLimit  RateLimitSettings  `toml:"rate_limit"`
}

type ServerSettings struct {
	AppName   string `toml:"app_name"`
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	APIPrefix string `toml:"api_prefix"`
}

type FrontendSettings struct {
	URL                string   `toml:"url"`
	CallbackPath       string   `toml:"callback_path"`
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`
}

type mainConfig struct {
	s Settings
}

var _ Config = mainConfig{}

// New wraps already-built settings. Callers are expected to have run Validate.
func New(s Settings) Config {
	return mainConfig{s: s}
}

func (c mainConfig) GetAppName() string {
	return c.s.Server.AppName
}

func (c mainConfig) GetEnv() string {
	if c.s.Server.Env == "" {
		return "DEV"
	}
	return c.s.Server.Env
}

func (c mainConfig) GetLogLevel() string {
	return c.s.Server.LogLevel
}

func (c mainConfig) GetHost() string {
	return c.s.Server.Host
}

func (c mainConfig) GetPort() int {
	return c.s.Server.Port
}

// GetAddr returns the listen address in host:port form
func (c mainConfig) GetAddr() string {
	return net.JoinHostPort(c.s.Server.Host, strconv.Itoa(c.s.Server.Port))
}

// GetAPIPrefix returns the path every route is mounted under, without a trailing slash
func (c mainConfig) GetAPIPrefix() string {
	prefix := strings.TrimRight(c.s.Server.APIPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func (c mainConfig) GetFrontendURL() string {
	return strings.TrimRight(c.s.Frontend.URL, "/")
}

// GetFrontendCallbackURL is where the browser lands after login in redirect style
func (c mainConfig) GetFrontendCallbackURL() string {
	path := c.s.Frontend.CallbackPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.GetFrontendURL() + path
}

// Validate reports every missing or invalid setting at once
func (s Settings) Validate() error {
	var problems []string
	require := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, name+" is required")
		}
	}

	require(s.Spotify.ClientID, envSpotifyClientID)
	require(s.Spotify.ClientSecret, envSpotifyClientSecret)
	require(s.Spotify.RedirectURI, envSpotifyRedirectURI)
	require(s.Frontend.URL, envFrontendURL)
	require(s.Security.SecretKey, envSecretKey)

	if s.Security.AccessTokenExpireMinutes <= 0 {
		problems = append(problems, envAccessTokenExpireMinutes+" must be positive")
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("%s %d is out of range", envBackendPort, s.Server.Port))
	}
	if !s.Security.ResponseStyle.Valid() {
		problems = append(problems, fmt.Sprintf("%s %q must be one of json, redirect", envResponseStyle, s.Security.ResponseStyle))
	}
	switch s.Revocation.Backend {
	case RevocationBackendMemory:
	case RevocationBackendRedis:
		require(s.Revocation.RedisAddr, envRedisAddr)
	default:
		problems = append(problems, fmt.Sprintf("%s %q must be one of memory, redis", envRevocationBackend, s.Revocation.Backend))
	}
	if s.RateLimit.Enabled && (s.RateLimit.RPS <= 0 || s.RateLimit.Burst <= 0) {
		problems = append(problems, "rate limit rps and burst must be positive when enabled")
	}
	if s.Spotify.UpstreamTimeoutSeconds <= 0 {
		problems = append(problems, envUpstreamTimeoutSeconds+" must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
