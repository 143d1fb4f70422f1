package config

import "time"

type SecurityConfig interface {
	GetSecretKey() string
	GetSessionTokenExpiry() time.Duration
	GetResponseStyle() ResponseStyle
	GetRequireOAuthState() bool
	GetOAuthStateExpiry() time.Duration
	GetEnableRateLimiting() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// ResponseStyle selects how /login and /callback hand results back to the browser
type ResponseStyle string

const (
	// JSONStyle returns JSON bodies from /login and /callback
	JSONStyle ResponseStyle = "json"
	// RedirectStyle redirects to the provider from /login and back to the frontend from /callback
	RedirectStyle ResponseStyle = "redirect"
)

func (r ResponseStyle) Valid() bool {
	return r == JSONStyle || r == RedirectStyle
}

type SecuritySettings struct {
	SecretKey                string        `toml:"secret_key"`
	AccessTokenExpireMinutes int           `toml:"access_token_expire_minutes"`
	ResponseStyle            ResponseStyle `toml:"response_style"`
	OAuthStateCheck          bool          `toml:"oauth_state_check"`
}

type RateLimitSettings struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

func (c mainConfig) GetSecretKey() string {
	return c.s.Security.SecretKey
}

func (c mainConfig) GetSessionTokenExpiry() time.Duration {
	return time.Duration(c.s.Security.AccessTokenExpireMinutes) * time.Minute
}

func (c mainConfig) GetResponseStyle() ResponseStyle {
	return c.s.Security.ResponseStyle
}

// GetRequireOAuthState enables signed, single-use state on the authorization redirect
func (c mainConfig) GetRequireOAuthState() bool {
	return c.s.Security.OAuthStateCheck
}

func (mainConfig) GetOAuthStateExpiry() time.Duration {
	return 10 * time.Minute
}

func (c mainConfig) GetEnableRateLimiting() bool {
	return c.s.RateLimit.Enabled
}

func (c mainConfig) GetRateLimitRPS() float64 {
	return c.s.RateLimit.RPS
}

func (c mainConfig) GetRateLimitBurst() int {
	return c.s.RateLimit.Burst
}
