package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
)

const (
	envConfigFile               = "CONFIG_FILE"
	envProjectName              = "PROJECT_NAME"
	envEnv                      = "ENV"
	envLogLevel                 = "LOG_LEVEL"
	envBackendHost              = "BACKEND_HOST"
	envBackendPort              = "BACKEND_PORT"
	envAPIPrefix                = "API_PREFIX"
	envFrontendURL              = "FRONTEND_URL"
	envFrontendCallbackPath     = "FRONTEND_CALLBACK_PATH"
	envCorsAllowedOrigins       = "CORS_ALLOWED_ORIGINS"
	envSpotifyClientID          = "SPOTIFY_CLIENT_ID"
	envSpotifyClientSecret      = "SPOTIFY_CLIENT_SECRET"
	envSpotifyRedirectURI       = "SPOTIFY_REDIRECT_URI"
	envSpotifyScopes            = "SPOTIFY_SCOPES"
	envSpotifyAuthURL           = "SPOTIFY_AUTH_URL"
	envSpotifyTokenURL          = "SPOTIFY_TOKEN_URL"
	envSpotifyAPIBaseURL        = "SPOTIFY_API_BASE_URL"
	envUpstreamTimeoutSeconds   = "UPSTREAM_TIMEOUT_SECONDS"
	envSecretKey                = "SECRET_KEY"
	envAccessTokenExpireMinutes = "ACCESS_TOKEN_EXPIRE_MINUTES"
	envResponseStyle            = "RESPONSE_STYLE"
	envOAuthStateCheck          = "OAUTH_STATE_CHECK"
	envRevocationBackend        = "REVOCATION_BACKEND"
	envRedisAddr                = "REDIS_ADDR"
	envRedisPassword            = "REDIS_PASSWORD"
	envRedisDB                  = "REDIS_DB"
	envRedisKeyPrefix           = "REDIS_KEY_PREFIX"
	envRateLimitEnabled         = "RATE_LIMIT_ENABLED"
	envRateLimitRPS             = "RATE_LIMIT_RPS"
	envRateLimitBurst           = "RATE_LIMIT_BURST"
)

// LookupFunc resolves an environment variable. os.LookupEnv is used when nil.
type LookupFunc func(key string) (string, bool)

type LoadOptions struct {
	// ConfigFile is an optional TOML file applied on top of the defaults. When empty,
	// CONFIG_FILE is consulted.
	ConfigFile string
	Lookup     LookupFunc
}

// Defaults returns the settings used when neither the config file nor the environment
// provide a value.
func Defaults() Settings {
	return Settings{
		Server: ServerSettings{
			AppName:  "SpotifEye",
			Env:      "DEV",
			LogLevel: "info",
			Host:     "0.0.0.0",
			Port:     8000,
		},
		Frontend: FrontendSettings{
			CallbackPath: "/callback",
		},
		Spotify: SpotifySettings{
			Scopes:                 defaultScopes,
			UpstreamTimeoutSeconds: 10,
		},
		Security: SecuritySettings{
			AccessTokenExpireMinutes: 30,
			ResponseStyle:            JSONStyle,
		},
		Revocation: RevocationSettings{
			Backend:        RevocationBackendMemory,
			RedisKeyPrefix: "spotifeye:",
		},
		RateLimit: RateLimitSettings{
			RPS:   5,
			Burst: 10,
		},
	}
}

// Load builds the process configuration once: defaults, then the optional TOML file,
// then environment variables. The result is validated; any problem wraps ErrConfiguration.
func Load(opts LoadOptions) (Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	s := Defaults()

	path := opts.ConfigFile
	if path == "" {
		path, _ = lookup(envConfigFile)
	}
	if path != "" {
		if err := decodeFile(path, &s); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(lookup, &s); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return New(s), nil
}

func decodeFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", apperrors.ErrConfiguration, err)
	}
	if err := toml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("%w: failed to parse config file %s: %v", apperrors.ErrConfiguration, path, err)
	}
	return nil
}

func applyEnv(lookup LookupFunc, s *Settings) error {
	e := envReader{lookup: lookup}

	e.setString(envProjectName, &s.Server.AppName)
	e.setString(envEnv, &s.Server.Env)
	e.setString(envLogLevel, &s.Server.LogLevel)
	e.setString(envBackendHost, &s.Server.Host)
	e.setInt(envBackendPort, &s.Server.Port)
	e.setString(envAPIPrefix, &s.Server.APIPrefix)

	e.setString(envFrontendURL, &s.Frontend.URL)
	e.setString(envFrontendCallbackPath, &s.Frontend.CallbackPath)
	e.setList(envCorsAllowedOrigins, &s.Frontend.CorsAllowedOrigins)

	e.setString(envSpotifyClientID, &s.Spotify.ClientID)
	e.setString(envSpotifyClientSecret, &s.Spotify.ClientSecret)
	e.setString(envSpotifyRedirectURI, &s.Spotify.RedirectURI)
	e.setString(envSpotifyScopes, &s.Spotify.Scopes)
	e.setString(envSpotifyAuthURL, &s.Spotify.AuthURL)
	e.setString(envSpotifyTokenURL, &s.Spotify.TokenURL)
	e.setString(envSpotifyAPIBaseURL, &s.Spotify.APIBaseURL)
	e.setInt(envUpstreamTimeoutSeconds, &s.Spotify.UpstreamTimeoutSeconds)

	e.setString(envSecretKey, &s.Security.SecretKey)
	e.setInt(envAccessTokenExpireMinutes, &s.Security.AccessTokenExpireMinutes)
	var style string
	if e.setString(envResponseStyle, &style) {
		s.Security.ResponseStyle = ResponseStyle(strings.ToLower(style))
	}
	e.setBool(envOAuthStateCheck, &s.Security.OAuthStateCheck)

	var backend string
	if e.setString(envRevocationBackend, &backend) {
		s.Revocation.Backend = RevocationBackend(strings.ToLower(backend))
	}
	e.setString(envRedisAddr, &s.Revocation.RedisAddr)
	e.setString(envRedisPassword, &s.Revocation.RedisPassword)
	e.setInt(envRedisDB, &s.Revocation.RedisDB)
	e.setString(envRedisKeyPrefix, &s.Revocation.RedisKeyPrefix)

	e.setBool(envRateLimitEnabled, &s.RateLimit.Enabled)
	e.setFloat(envRateLimitRPS, &s.RateLimit.RPS)
	e.setInt(envRateLimitBurst, &s.RateLimit.Burst)

	if len(e.problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfiguration, strings.Join(e.problems, "; "))
	}
	return nil
}

// envReader overlays set, non-empty environment variables onto settings fields
// and collects parse failures.
type envReader struct {
	lookup   LookupFunc
	problems []string
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) setString(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s %q is not a number", key, v))
		return
	}
	*dst = f
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Sprintf("%s %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	*dst = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}
