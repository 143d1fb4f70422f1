package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
)

const (
	claimSubject      = "sub"
	claimRefreshToken = "refresh_token"
	claimType         = "typ"
	claimIssuedAt     = "iat"
	claimExpiry       = "exp"
	claimID           = "jti"

	typeSession = "session"
	typeState   = "state"

	// DefaultSessionTTL applies when neither the caller nor the codec options set a lifetime
	DefaultSessionTTL = 30 * time.Minute

	// MinTTL is the shortest lifetime a token can carry; exp has whole-second precision
	MinTTL = time.Second
)

// Claims is the decoded content of a session token. The provider access token is the
// subject; the provider refresh token is optional.
type Claims struct {
	ProviderAccessToken  string
	ProviderRefreshToken string
	ID                   string
	IssuedAt             time.Time
	ExpiresAt            time.Time
}

// Codec issues and parses self-contained session tokens. It is a pure transformation:
// revocation is the caller's concern.
type Codec struct {
	signer     Signer
	defaultTTL time.Duration
	nowFunc    func() time.Time
}

type CodecOption func(*Codec)

func WithDefaultTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.defaultTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(signer Signer, options ...CodecOption) *Codec {
	c := &Codec{
		signer: signer,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultSessionTTL
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// DefaultTTL is the lifetime used when Issue is called with ttl <= 0
func (c *Codec) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Issue signs a new session token carrying the provider tokens. Every call produces a
// distinct token value.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.ProviderAccessToken == "" {
		return "", errors.Wrap(ErrMalformed, "provider access token is required")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl < MinTTL {
		return "", errors.Errorf("token lifetime %s is shorter than %s", ttl, MinTTL)
	}

	now := c.nowFunc()
	mc := jwt.MapClaims{
		claimSubject:  claims.ProviderAccessToken,
		claimType:     typeSession,
		claimIssuedAt: now.Unix(),
		claimExpiry:   expiryUnix(now, ttl),
		claimID:       uuid.New().String(),
	}
	if claims.ProviderRefreshToken != "" {
		mc[claimRefreshToken] = claims.ProviderRefreshToken
	}

	return c.sign(mc)
}

// Parse verifies signature and expiry and returns the embedded claims
func (c *Codec) Parse(raw string) (*Claims, error) {
	return c.parseSession(raw, true)
}

// ParseIgnoringExpiry verifies the signature and shape of a session token but accepts
// it after its expiry. Used where an expired token is still meaningful, such as logout.
func (c *Codec) ParseIgnoringExpiry(raw string) (*Claims, error) {
	return c.parseSession(raw, false)
}

// IssueState mints a signed, short-lived value for the OAuth state parameter
func (c *Codec) IssueState(ttl time.Duration) (string, error) {
	if ttl < MinTTL {
		return "", errors.Errorf("state lifetime %s is shorter than %s", ttl, MinTTL)
	}
	now := c.nowFunc()
	return c.sign(jwt.MapClaims{
		claimType:     typeState,
		claimIssuedAt: now.Unix(),
		claimExpiry:   expiryUnix(now, ttl),
		claimID:       uuid.New().String(),
	})
}

// ParseState verifies a value produced by IssueState
func (c *Codec) ParseState(raw string) (*Claims, error) {
	mc, err := c.parse(raw, typeState, true)
	if err != nil {
		return nil, err
	}
	return claimsFromMap(mc), nil
}

// expiryUnix rounds now+ttl up to the next whole second, so a token never expires
// before its lifetime has elapsed. Tokens are valid while now < exp.
func expiryUnix(now time.Time, ttl time.Duration) int64 {
	exp := now.Add(ttl)
	secs := exp.Unix()
	if exp.After(time.Unix(secs, 0)) {
		secs++
	}
	return secs
}

func (c *Codec) sign(mc jwt.MapClaims) (string, error) {
	signed, err := c.signer.Sign(mc)
	if err != nil {
		return "", errors.Wrap(err, "Codec.sign")
	}
	return signed, nil
}

func (c *Codec) parseSession(raw string, checkExpiry bool) (*Claims, error) {
	mc, err := c.parse(raw, typeSession, checkExpiry)
	if err != nil {
		return nil, err
	}
	claims := claimsFromMap(mc)
	if claims.ProviderAccessToken == "" {
		return nil, errors.Wrap(ErrMalformed, "token missing subject claim")
	}
	return claims, nil
}

func (c *Codec) parse(raw, wantType string, checkExpiry bool) (jwt.MapClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.Wrap(ErrMalformed, "empty token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
	}
	if checkExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, c.signer.GetVerificationKey, opts...)
	if err != nil {
		return nil, classify(err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.Wrap(ErrMalformed, "error extracting claims")
	}
	if typ, _ := mc[claimType].(string); typ != wantType {
		return nil, errors.Wrapf(ErrMalformed, "unexpected token type %q", typ)
	}
	return mc, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(ErrExpired, err.Error())
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.Wrap(ErrInvalidSignature, err.Error())
	default:
		return errors.Wrap(ErrMalformed, err.Error())
	}
}

func claimsFromMap(mc jwt.MapClaims) *Claims {
	claims := &Claims{}
	claims.ProviderAccessToken, _ = mc[claimSubject].(string)
	claims.ProviderRefreshToken, _ = mc[claimRefreshToken].(string)
	claims.ID, _ = mc[claimID].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims
}
